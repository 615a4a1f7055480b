package analyze

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

const (
	runCommandUseName          = "run " + runDirectoryArgumentName
	runCommandShortDescription = "Execute a previously compiled plan from its run directory"
	resumeFlagName             = "resume"
	resumeFlagUsage            = "Skip tasks already recorded as succeeded"
)

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   runCommandUseName,
		Short: runCommandShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	command.Flags().Bool(resumeFlagName, false, resumeFlagUsage)

	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	runDirectory := strings.TrimSpace(arguments[0])
	if runDirectory == "" {
		return errors.New("a run directory must be provided")
	}

	options := runtimeOptions(command, configuration)
	if resumeValue, resumeError := command.Flags().GetBool(resumeFlagName); resumeError == nil {
		options.Resume = resumeValue
	}

	service, closeDependencies, serviceError := resolveService(command, logger, configuration)
	if serviceError != nil {
		return serviceError
	}
	defer func() { _ = closeDependencies() }()

	result, executeError := service.ExecutePlan(command.Context(), runDirectory, options)
	if executeError != nil {
		return executeError
	}
	return outcomeError(result)
}

func (builder *RunCommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}
