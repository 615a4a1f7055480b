// Package knowledge wires the knowledge base maintenance commands.
package knowledge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/knowledge"
	flagutils "github.com/tyemirov/genopipe/internal/utils/flags"
)

const (
	buildCommandUseName          = "build"
	buildCommandShortDescription = "Import ClinVar records and phenotype catalogs into the knowledge base"
	clinvarFlagName              = "clinvar"
	clinvarFlagUsage             = "Path to a ClinVar VCF export (optionally gzipped)"
	catalogFlagName              = "phenotype-catalog"
	catalogFlagUsage             = "Path to a JSONL phenotype catalog"
	knowledgeDirFlagName         = "knowledge-dir"
	knowledgeDirFlagUsage        = "Directory holding the knowledge base stores"
	chromosomeFlagName           = "chromosome"
	chromosomeFlagUsage          = "Restrict the ClinVar import to one chromosome"
	limitFlagName                = "limit"
	limitFlagUsage               = "Stop the ClinVar import after this many records (0 imports everything)"

	defaultKnowledgeDirectory = "data/knowledge"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Configuration captures knowledge base maintenance defaults.
type Configuration struct {
	KnowledgeDirectory string `mapstructure:"knowledge_directory"`
}

// DefaultConfiguration provides baseline knowledge base configuration.
func DefaultConfiguration() Configuration {
	return Configuration{KnowledgeDirectory: defaultKnowledgeDirectory}
}

// Sanitize normalizes configuration values.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.KnowledgeDirectory = strings.TrimSpace(configuration.KnowledgeDirectory)
	if sanitized.KnowledgeDirectory == "" {
		sanitized.KnowledgeDirectory = defaultKnowledgeDirectory
	}
	return sanitized
}

// BuildCommandBuilder assembles the kb build command.
type BuildCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the kb build command.
func (builder *BuildCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   buildCommandUseName,
		Short: buildCommandShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(clinvarFlagName, "", clinvarFlagUsage)
	command.Flags().String(catalogFlagName, "", catalogFlagUsage)
	command.Flags().String(knowledgeDirFlagName, "", knowledgeDirFlagUsage)
	command.Flags().String(chromosomeFlagName, "", chromosomeFlagUsage)
	command.Flags().Int(limitFlagName, 0, limitFlagUsage)

	return command, nil
}

func (builder *BuildCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	clinvarPath := stringFlagValue(command, clinvarFlagName)
	catalogPath := stringFlagValue(command, catalogFlagName)
	if clinvarPath == "" && catalogPath == "" {
		return errors.New("at least one of --clinvar or --phenotype-catalog must be provided")
	}

	knowledgeDirectory := configuration.KnowledgeDirectory
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, knowledgeDirFlagName); flagError == nil && flagChanged {
		knowledgeDirectory = strings.TrimSpace(flagValue)
	}
	if knowledgeDirectory == "" {
		return errors.New("a knowledge directory must be provided via --knowledge-dir")
	}

	store, openError := knowledge.Open(knowledgeDirectory)
	if openError != nil {
		return openError
	}
	defer func() { _ = store.Close() }()

	if clinvarPath != "" {
		importOptions := knowledge.ImportOptions{}
		if chromosomeValue, _, chromosomeError := flagutils.StringFlag(command, chromosomeFlagName); chromosomeError == nil {
			importOptions.ChromosomeFilter = strings.TrimSpace(chromosomeValue)
		}
		if limitValue, _, limitError := flagutils.IntFlag(command, limitFlagName); limitError == nil && limitValue > 0 {
			importOptions.RecordLimit = limitValue
		}

		summary, importError := store.ImportClinVarVCF(clinvarPath, importOptions)
		if importError != nil {
			return importError
		}
		logger.Info(
			"clinvar_imported",
			zap.String("path", clinvarPath),
			zap.Int("imported", summary.ImportedCount),
			zap.Int("skipped", summary.SkippedCount),
		)
		fmt.Fprintf(command.OutOrStdout(), "Imported %d ClinVar records (%d skipped) into %s\n", summary.ImportedCount, summary.SkippedCount, knowledgeDirectory)
	}

	if catalogPath != "" {
		importedCount, importError := store.ImportDiseaseCatalogJSONL(catalogPath)
		if importError != nil {
			return importError
		}
		logger.Info(
			"catalog_imported",
			zap.String("path", catalogPath),
			zap.Int("imported", importedCount),
		)
		fmt.Fprintf(command.OutOrStdout(), "Imported %d catalog entries into %s\n", importedCount, knowledgeDirectory)
	}

	return nil
}

func (builder *BuildCommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *BuildCommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func stringFlagValue(command *cobra.Command, name string) string {
	if value, _, flagError := flagutils.StringFlag(command, name); flagError == nil {
		return strings.TrimSpace(value)
	}
	return ""
}
