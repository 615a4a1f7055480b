package analyze

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/tasks"
	"github.com/tyemirov/genopipe/internal/utils"
	flagutils "github.com/tyemirov/genopipe/internal/utils/flags"
	"github.com/tyemirov/genopipe/pkg/pipeline"
)

const (
	vcfFlagName        = "vcf"
	vcfFlagUsage       = "Path to the variant call file to analyze (VCF, optionally gzipped)"
	outputDirFlagName  = "output-dir"
	outputDirFlagUsage = "Directory receiving timestamped run directories"

	runDirectoryArgumentName = "RUN_DIR"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

func lookupEnvironmentValue(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	return strings.TrimSpace(value), ok
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	if logger := provider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func bindSampleFlags(command *cobra.Command) {
	flagutils.BindSampleFlags(command, flagutils.SampleFlagValues{}, flagutils.SampleFlagDefinitions{
		Identifier: flagutils.SampleFlagDefinition{Name: flagutils.SampleFlagName, Usage: flagutils.SampleFlagUsage, Enabled: true},
		Phenotype:  flagutils.SampleFlagDefinition{Name: flagutils.PhenotypeFlagName, Usage: flagutils.PhenotypeFlagUsage, Enabled: true},
	})
}

// resolveSampleContext prefers values installed on the command context by
// the root command, falling back to direct flag lookups.
func resolveSampleContext(command *cobra.Command) utils.SampleContext {
	if command != nil {
		if sample, available := utils.NewCommandContextAccessor().SampleContext(command.Context()); available {
			return sample
		}
	}

	sample := utils.SampleContext{}
	if identifier, _, identifierError := flagutils.StringFlag(command, flagutils.SampleFlagName); identifierError == nil {
		sample.Identifier = strings.TrimSpace(identifier)
	}
	if phenotype, _, phenotypeError := flagutils.StringFlag(command, flagutils.PhenotypeFlagName); phenotypeError == nil {
		sample.Phenotype = strings.TrimSpace(phenotype)
	}
	return sample
}

// runtimeOptions maps the configuration onto engine runtime options and
// overlays whichever execution flags the invocation provided.
func runtimeOptions(command *cobra.Command, configuration Configuration) engine.RuntimeOptions {
	options := engine.RuntimeOptions{
		StopOnError: configuration.StopOnError,
		MaxWorkers:  configuration.MaxWorkers,
	}
	if configuration.RunTimeoutSeconds > 0 {
		options.Timeout = time.Duration(configuration.RunTimeoutSeconds) * time.Second
	}

	executionFlags, flagsAvailable := flagutils.ResolveExecutionFlags(command)
	if !flagsAvailable {
		return options
	}
	if executionFlags.StopOnErrorSet {
		options.StopOnError = executionFlags.StopOnError
	}
	if executionFlags.MaxWorkersSet && executionFlags.MaxWorkers > 0 {
		options.MaxWorkers = executionFlags.MaxWorkers
	}
	return options
}

func dryRunRequested(command *cobra.Command) bool {
	executionFlags, flagsAvailable := flagutils.ResolveExecutionFlags(command)
	return flagsAvailable && executionFlags.DryRun
}

func dependencyOptions(configuration Configuration) pipeline.DependenciesOptions {
	settings := configuration.AnalysisSettings()
	genosAPIToken, _ := lookupEnvironmentValue(configuration.Genos.APITokenEnv)
	return pipeline.DependenciesOptions{
		KnowledgeDirectory:   configuration.KnowledgeDirectory,
		GenosServerURL:       configuration.Genos.ServerURL,
		GenosAPIToken:        genosAPIToken,
		GenosModelName:       settings.GenosModelName,
		GenosPoolingMethod:   settings.GenosPoolingMethod,
		MockEmbedder:         configuration.Genos.Mock,
		LLMModel:             configuration.LLM.Model,
		LLMBaseURL:           configuration.LLM.BaseURL,
		LLMAPIKeyEnvironment: configuration.LLM.APIKeyEnv,
		RemoteAnnotation:     configuration.Evidence.RemoteAnnotation,
		RemoteBaseURL:        configuration.Evidence.RemoteBaseURL,
		GenomeAssembly:       configuration.Evidence.GenomeAssembly,
	}
}

// resolveService assembles the pipeline service with fully wired task
// collaborators. The returned closer releases whatever stores and clients
// the build opened.
func resolveService(command *cobra.Command, logger *zap.Logger, configuration Configuration) (*pipeline.Service, func() error, error) {
	dependenciesResult, dependenciesError := pipeline.BuildDependencies(
		pipeline.DependenciesConfig{LoggerProvider: func() *zap.Logger { return logger }},
		dependencyOptions(configuration),
	)
	if dependenciesError != nil {
		return nil, nil, dependenciesError
	}

	service := pipeline.NewService(pipeline.ServiceDependencies{
		Logger:       logger,
		TaskRegistry: dependenciesResult.TaskRegistry,
		Output:       command.OutOrStdout(),
		Errors:       command.ErrOrStderr(),
	})
	return service, dependenciesResult.Close, nil
}

// contractService assembles a pipeline service whose registry carries task
// contracts only. Plan compilation and consistency checks need contracts,
// not live collaborators, so no stores or clients are opened.
func contractService(command *cobra.Command, logger *zap.Logger) (*pipeline.Service, error) {
	taskRegistry, registryError := tasks.NewRegistry(tasks.Dependencies{Logger: logger})
	if registryError != nil {
		return nil, registryError
	}
	return pipeline.NewService(pipeline.ServiceDependencies{
		Logger:       logger,
		TaskRegistry: taskRegistry,
		Output:       command.OutOrStdout(),
		Errors:       command.ErrOrStderr(),
	}), nil
}

func preparePlanOnly(command *cobra.Command, logger *zap.Logger, request pipeline.AnalysisRequest) error {
	service, serviceError := contractService(command, logger)
	if serviceError != nil {
		return serviceError
	}

	compiledPlan, runDirectory, prepareError := service.PreparePlan(request)
	if prepareError != nil {
		return prepareError
	}

	fmt.Fprintf(command.OutOrStdout(), "Plan %s with %d tasks written to %s\n", compiledPlan.RunIdentifier, len(compiledPlan.Tasks), runDirectory)
	return nil
}
