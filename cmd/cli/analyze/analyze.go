// Package analyze wires the analysis pipeline commands: analyze, plan,
// run, and critic.
package analyze

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/plan"
	flagutils "github.com/tyemirov/genopipe/internal/utils/flags"
	"github.com/tyemirov/genopipe/pkg/pipeline"
)

const (
	analyzeCommandUseName          = "analyze"
	analyzeCommandShortDescription = "Run the variant analysis pipeline end to end"
)

// CommandBuilder assembles the analyze command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the analyze command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   analyzeCommandUseName,
		Short: analyzeCommandShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(vcfFlagName, "", vcfFlagUsage)
	command.Flags().String(outputDirFlagName, "", outputDirFlagUsage)
	bindSampleFlags(command)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	request, requestError := buildAnalysisRequest(command, configuration)
	if requestError != nil {
		return requestError
	}

	if dryRunRequested(command) {
		return preparePlanOnly(command, logger, request)
	}

	service, closeDependencies, serviceError := resolveService(command, logger, configuration)
	if serviceError != nil {
		return serviceError
	}
	defer func() { _ = closeDependencies() }()

	result, analyzeError := service.Analyze(command.Context(), request)
	if analyzeError != nil {
		return analyzeError
	}
	return outcomeError(result)
}

// outcomeError converts a non-successful run outcome into a command error
// so failures reach the exit code. The status table and findings line have
// already been printed by the time this runs.
func outcomeError(result pipeline.AnalysisResult) error {
	switch result.Outcome.Status {
	case engine.RunStatusHaltedOnError:
		return fmt.Errorf("run %s halted on error; inspect %s", result.Outcome.RunIdentifier, result.RunDirectory)
	case engine.RunStatusPartiallyFailed:
		return fmt.Errorf("run %s completed with failures; inspect %s", result.Outcome.RunIdentifier, result.RunDirectory)
	default:
		return nil
	}
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

// buildAnalysisRequest collects the analysis inputs shared by the analyze
// and plan commands.
func buildAnalysisRequest(command *cobra.Command, configuration Configuration) (pipeline.AnalysisRequest, error) {
	vcfPath := ""
	if flagValue, _, flagError := flagutils.StringFlag(command, vcfFlagName); flagError == nil {
		vcfPath = strings.TrimSpace(flagValue)
	}
	if vcfPath == "" {
		return pipeline.AnalysisRequest{}, errors.New("a variant call file must be provided via --vcf")
	}

	sample := resolveSampleContext(command)
	if sample.Identifier == "" {
		return pipeline.AnalysisRequest{}, errors.New("a sample identifier must be provided via --sample")
	}

	outputDirectory := configuration.OutputDirectory
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, outputDirFlagName); flagError == nil && flagChanged {
		outputDirectory = strings.TrimSpace(flagValue)
	}

	return pipeline.AnalysisRequest{
		Parameters: plan.RunParameters{
			AnalysisType:     plan.AnalysisTypeGermline,
			InputPath:        vcfPath,
			SampleIdentifier: sample.Identifier,
			Phenotype:        sample.Phenotype,
			OutputDirectory:  outputDirectory,
		},
		Settings: configuration.AnalysisSettings(),
		Runtime:  runtimeOptions(command, configuration),
	}, nil
}
