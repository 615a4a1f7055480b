package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	analyzecmd "github.com/tyemirov/genopipe/cmd/cli/analyze"
	knowledgecmd "github.com/tyemirov/genopipe/cmd/cli/knowledge"
	servecmd "github.com/tyemirov/genopipe/cmd/cli/serve"
)

// commandOperationRequirements maps command names, or parent/child composite keys, to the
// operation configuration sections the command reads defaults from.
var commandOperationRequirements = map[string][]string{
	analyzeCommandUseNameConstant:      {analyzeOperationNameConstant},
	planCommandUseNameConstant:         {analyzeOperationNameConstant},
	runCommandUseNameConstant:          {analyzeOperationNameConstant},
	criticCommandUseNameConstant:       {analyzeOperationNameConstant},
	serveCommandUseNameConstant:        {serveOperationNameConstant},
	knowledgeBuildCompositeKeyConstant: {knowledgeBuildOperationNameConstant},
}

var requiredOperationConfigurationNames = collectRequiredOperationConfigurationNames()

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	analyzeBuilder := analyzecmd.CommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.analyzeCommandConfiguration,
	}
	if analyzeCommand, analyzeBuildError := analyzeBuilder.Build(); analyzeBuildError == nil {
		configureCommandMetadata(analyzeCommand, analyzeCommandLongDescriptionConstant)
		cobraCommand.AddCommand(analyzeCommand)
	}

	planBuilder := analyzecmd.PlanCommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.analyzeCommandConfiguration,
	}
	if planCommand, planBuildError := planBuilder.Build(); planBuildError == nil {
		configureCommandMetadata(planCommand, planCommandLongDescriptionConstant)
		cobraCommand.AddCommand(planCommand)
	}

	runBuilder := analyzecmd.RunCommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.analyzeCommandConfiguration,
	}
	if runCommand, runBuildError := runBuilder.Build(); runBuildError == nil {
		configureCommandMetadata(runCommand, runCommandLongDescriptionConstant)
		cobraCommand.AddCommand(runCommand)
	}

	criticBuilder := analyzecmd.CriticCommandBuilder{
		LoggerProvider: loggerProvider,
	}
	if criticCommand, criticBuildError := criticBuilder.Build(); criticBuildError == nil {
		configureCommandMetadata(criticCommand, criticCommandLongDescriptionConstant, criticCommandAliasConstant)
		cobraCommand.AddCommand(criticCommand)
	}

	knowledgeNamespaceCommand := newNamespaceCommand(knowledgeNamespaceUseNameConstant, knowledgeNamespaceShortDescriptionConstant, knowledgeNamespaceAliasConstant)
	knowledgeBuildBuilder := knowledgecmd.BuildCommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.knowledgeBuildConfiguration,
	}
	if knowledgeBuildCommand, knowledgeBuildError := knowledgeBuildBuilder.Build(); knowledgeBuildError == nil {
		configureCommandMetadata(knowledgeBuildCommand, knowledgeBuildCommandLongDescriptionConstant)
		knowledgeNamespaceCommand.AddCommand(knowledgeBuildCommand)
	}
	if len(knowledgeNamespaceCommand.Commands()) > 0 {
		cobraCommand.AddCommand(knowledgeNamespaceCommand)
	}

	serveBuilder := servecmd.CommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.serveCommandConfiguration,
		VersionProvider: func() string {
			return application.versionResolver()
		},
	}
	if serveCommand, serveBuildError := serveBuilder.Build(); serveBuildError == nil {
		configureCommandMetadata(serveCommand, serveCommandLongDescriptionConstant, serveCommandAliasConstant)
		cobraCommand.AddCommand(serveCommand)
	}
}

func configureCommandMetadata(command *cobra.Command, longDescription string, aliases ...string) {
	if command == nil {
		return
	}

	if len(strings.TrimSpace(longDescription)) > 0 {
		command.Long = longDescription
	}

	for _, alias := range aliases {
		command.Aliases = appendUnique(command.Aliases, alias)
	}
}

func appendUnique(values []string, candidate string) []string {
	trimmedCandidate := strings.TrimSpace(candidate)
	if len(trimmedCandidate) == 0 {
		return values
	}

	for _, value := range values {
		if value == trimmedCandidate {
			return values
		}
	}

	return append(values, trimmedCandidate)
}

func newNamespaceCommand(useName string, shortDescription string, aliases ...string) *cobra.Command {
	namespaceCommand := &cobra.Command{
		Use:           useName,
		Short:         shortDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	for _, alias := range aliases {
		namespaceCommand.Aliases = appendUnique(namespaceCommand.Aliases, alias)
	}

	return namespaceCommand
}

func collectRequiredOperationConfigurationNames() []string {
	uniqueNames := make(map[string]struct{})
	for _, operationNames := range commandOperationRequirements {
		for _, operationName := range operationNames {
			uniqueNames[operationName] = struct{}{}
		}
	}

	collectedNames := make([]string, 0, len(uniqueNames))
	for operationName := range uniqueNames {
		collectedNames = append(collectedNames, operationName)
	}

	sort.Strings(collectedNames)

	return collectedNames
}
