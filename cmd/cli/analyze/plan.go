package analyze

import (
	"github.com/spf13/cobra"
)

const (
	planCommandUseName          = "plan"
	planCommandShortDescription = "Compile and persist an analysis plan without executing it"
)

// PlanCommandBuilder assembles the plan command.
type PlanCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
}

// Build constructs the plan command.
func (builder *PlanCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   planCommandUseName,
		Short: planCommandShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(vcfFlagName, "", vcfFlagUsage)
	command.Flags().String(outputDirFlagName, "", outputDirFlagUsage)
	bindSampleFlags(command)

	return command, nil
}

func (builder *PlanCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	request, requestError := buildAnalysisRequest(command, configuration)
	if requestError != nil {
		return requestError
	}

	return preparePlanOnly(command, logger, request)
}

func (builder *PlanCommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}
