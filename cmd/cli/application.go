// Package cli assembles the genopipe command-line application, wiring
// configuration loading, logging, and the analysis command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	analyzecmd "github.com/tyemirov/genopipe/cmd/cli/analyze"
	knowledgecmd "github.com/tyemirov/genopipe/cmd/cli/knowledge"
	servecmd "github.com/tyemirov/genopipe/cmd/cli/serve"
	"github.com/tyemirov/genopipe/internal/utils"
	flagutils "github.com/tyemirov/genopipe/internal/utils/flags"
	"github.com/tyemirov/genopipe/internal/version"
)

const (
	applicationNameConstant             = "genopipe"
	applicationShortDescriptionConstant = "Command-line interface for the genopipe variant analysis pipeline"
	applicationLongDescriptionConstant  = "genopipe compiles germline variant analysis plans, executes them as dependency-ordered task graphs, and audits recorded runs for internal consistency."

	configFileFlagNameConstant  = "config"
	configFileFlagUsageConstant = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant    = "log-level"
	logLevelFlagUsageConstant   = "Override the configured log level."
	logFormatFlagNameConstant   = "log-format"
	logFormatFlagUsageConstant  = "Override the configured log format (structured or console)."

	configurationInitializationFlagNameConstant                      = "init"
	configurationInitializationFlagUsageConstant                     = "Write the embedded default configuration to the local working directory (./config.yaml) or the user configuration directory ($HOME/.genopipe/config.yaml)"
	configurationInitializationDefaultScopeConstant                  = "local"
	configurationInitializationForceFlagNameConstant                 = "force"
	configurationInitializationForceFlagUsageConstant                = "Overwrite an existing configuration file when initializing."
	configurationInitializationScopeLocalConstant                    = "local"
	configurationInitializationScopeUserConstant                     = "user"
	configurationInitializationUnsupportedScopeTemplateConstant      = "unsupported initialization scope %q"
	configurationInitializationWorkingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	configurationInitializationWorkingDirectoryEmptyErrorConstant    = "working directory is empty"
	configurationInitializationHomeDirectoryErrorTemplateConstant    = "unable to determine user home directory: %w"
	configurationInitializationHomeDirectoryEmptyErrorConstant       = "user home directory is empty"
	configurationInitializationContentUnavailableErrorConstant       = "embedded configuration content is unavailable"
	configurationInitializationDirectoryErrorTemplateConstant        = "unable to ensure configuration directory %s: %w"
	configurationInitializationExistingFileTemplateConstant          = "configuration file already exists at %s (use --force to overwrite)"
	configurationInitializationExistingDirectoryTemplateConstant     = "configuration path %s is a directory"
	configurationInitializationDirectoryConflictTemplateConstant     = "configuration directory path %s is not a directory"
	configurationInitializationWriteErrorTemplateConstant            = "unable to write configuration file %s: %w"
	configurationInitializationSuccessMessageConstant                = "configuration file created"

	commonConfigurationKeyConstant                     = "common"
	commonLogLevelConfigKeyConstant                    = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                   = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant                          = "GENOPIPE"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationFileNameConstant                      = configurationNameConstant + "." + configurationTypeConstant
	configurationDirectoryPermissionConstant           = 0o755
	configurationFilePermissionConstant                = 0o600
	defaultConfigurationSearchPathConstant             = "."
	userConfigurationDirectoryNameConstant             = ".genopipe"
	configurationSearchPathEnvironmentVariableConstant = "GENOPIPE_CONFIG_SEARCH_PATH"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"

	configurationLoadErrorTemplateConstant          = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant             = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                 = "unable to flush logger: %w"
	loggerNotInitializedMessageConstant             = "logger not initialized"
	configurationInitializedMessageConstant         = "configuration initialized"
	configurationInitializedConsoleTemplateConstant = "%s | log level=%s | log format=%s | config file=%s"
	configurationLogLevelFieldConstant              = "log_level"
	configurationLogFormatFieldConstant             = "log_format"
	configurationFileFieldConstant                  = "config_file"
	rootCommandInfoMessageConstant                  = "genopipe CLI executed"
	rootCommandDebugMessageConstant                 = "genopipe CLI diagnostics"
	logFieldCommandNameConstant                     = "command_name"
	logFieldArgumentCountConstant                   = "argument_count"
	logFieldArgumentsConstant                       = "arguments"

	analyzeOperationNameConstant                        = "analyze"
	serveOperationNameConstant                          = "serve"
	knowledgeBuildOperationNameConstant                 = "kb-build"
	operationDecodeErrorMessageConstant                 = "unable to decode operation defaults"
	operationNameLogFieldConstant                       = "operation"
	duplicateOperationConfigurationTemplateConstant     = "duplicate configuration for operation %q"
	missingOperationConfigurationTemplateConstant       = "missing configuration for operation %q"
	missingOperationConfigurationSkippedMessageConstant = "operation configuration missing; continuing without defaults"
	unknownCommandNamePlaceholderConstant               = "unknown"

	analyzeCommandUseNameConstant                = "analyze"
	analyzeCommandLongDescriptionConstant        = "analyze compiles a germline analysis plan for the provided variant call file, executes the task graph, and records results, the report, and critic findings in a timestamped run directory."
	planCommandUseNameConstant                   = "plan"
	planCommandLongDescriptionConstant           = "plan compiles and persists an analysis plan without executing it so the run can be inspected or launched later with run."
	runCommandUseNameConstant                    = "run"
	runCommandLongDescriptionConstant            = "run executes a previously compiled plan from its run directory, reusing recorded successes when resuming."
	criticCommandUseNameConstant                 = "critic"
	criticCommandAliasConstant                   = "check"
	criticCommandLongDescriptionConstant         = "critic replays the consistency checks over a recorded run directory and reports findings without re-executing tasks."
	serveCommandUseNameConstant                  = "serve"
	serveCommandAliasConstant                    = "webui"
	serveCommandLongDescriptionConstant          = "serve exposes recorded runs over HTTP, including run listings, task status, reports, and critic findings."
	knowledgeNamespaceUseNameConstant            = "kb"
	knowledgeNamespaceAliasConstant              = "knowledge"
	knowledgeNamespaceShortDescriptionConstant   = "Knowledge base maintenance commands"
	knowledgeBuildCommandUseNameConstant         = "build"
	knowledgeBuildCommandLongDescriptionConstant = "kb build imports ClinVar VCF records and phenotype catalog entries into the local knowledge base index."
	knowledgeBuildCompositeKeyConstant           = knowledgeNamespaceUseNameConstant + "/" + knowledgeBuildCommandUseNameConstant

	versionFlagNameConstant                = "version"
	versionFlagUsageConstant               = "Print the application version and exit"
	versionOutputTemplateConstant          = "genopipe version: %s\n"
	versionCommandUseNameConstant          = "version"
	versionCommandShortDescriptionConstant = "Print the genopipe version"
	versionCommandLongDescriptionConstant  = "version prints the current genopipe release identifier."
)

// loggerOutputsFactory builds paired diagnostic and console loggers for a log level and format.
type loggerOutputsFactory interface {
	CreateLoggerOutputs(logLevel utils.LogLevel, logFormat utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application owns the root Cobra command and the shared services the subcommands draw on.
type Application struct {
	rootCommand                       *cobra.Command
	configurationLoader               *utils.ConfigurationLoader
	loggerFactory                     loggerOutputsFactory
	logger                            *zap.Logger
	consoleLogger                     *zap.Logger
	configuration                     ApplicationConfiguration
	configurationMetadata             utils.LoadedConfiguration
	configurationFilePath             string
	logLevelFlagValue                 string
	logFormatFlagValue                string
	commandContextAccessor            utils.CommandContextAccessor
	operationConfigurations           OperationConfigurations
	embeddedOperationConfigurations   OperationConfigurations
	configurationInitializationScope  string
	configurationInitializationForced bool
	versionFlag                       bool
	versionResolver                   func() string
	exitFunction                      func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)

	embeddedConfigurationContent, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationContent, embeddedConfigurationType)
	application.embeddedOperationConfigurations = loadEmbeddedOperationConfigurations()

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}

			versionRequested := application.versionFlag
			if command != nil {
				if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
					versionRequested = flagValue
				}
			}

			if versionRequested {
				application.printVersion()
				application.exitFunction(0)
			}

			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(
		&application.configurationInitializationScope,
		configurationInitializationFlagNameConstant,
		configurationInitializationDefaultScopeConstant,
		flagutils.FormatChoiceUsage(
			configurationInitializationFlagUsageConstant,
			configurationInitializationScopeLocalConstant,
			configurationInitializationScopeUserConstant,
		),
	)
	cobraCommand.PersistentFlags().BoolVar(
		&application.configurationInitializationForced,
		configurationInitializationForceFlagNameConstant,
		false,
		configurationInitializationForceFlagUsageConstant,
	)

	flagutils.BindExecutionFlags(cobraCommand, flagutils.ExecutionDefaults{}, flagutils.ExecutionFlagDefinitions{
		DryRun:      flagutils.ExecutionFlagDefinition{Name: flagutils.DryRunFlagName, Usage: flagutils.DryRunFlagUsage, Enabled: true},
		StopOnError: flagutils.ExecutionFlagDefinition{Name: flagutils.StopOnErrorFlagName, Usage: flagutils.StopOnErrorFlagUsage, Enabled: true},
		MaxWorkers:  flagutils.ExecutionFlagDefinition{Name: flagutils.MaxWorkersFlagName, Usage: flagutils.MaxWorkersFlagUsage, Enabled: true},
	})

	cobraCommand.PersistentFlags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion()
			return nil
		},
	}
	cobraCommand.AddCommand(versionCommand)

	application.registerCommands(cobraCommand)

	application.rootCommand = cobraCommand

	return application
}

// Execute parses os.Args, runs the command tree, and flushes loggers before returning.
func (application *Application) Execute() error {
	normalizedArguments := flagutils.NormalizeToggleArguments(os.Args[1:])
	normalizedArguments = normalizeInitializationScopeArguments(normalizedArguments)
	application.rootCommand.SetArgs(normalizedArguments)

	executionError := application.rootCommand.Execute()
	flushError := application.flushLogger()
	if executionError != nil {
		return executionError
	}

	return flushError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// normalizeInitializationScopeArguments rewrites a bare --init flag into --init=local so the
// scope value stays optional on the command line.
func normalizeInitializationScopeArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return arguments
	}

	initializationFlagToken := "--" + configurationInitializationFlagNameConstant
	normalizedArguments := make([]string, 0, len(arguments))
	for argumentIndex := 0; argumentIndex < len(arguments); argumentIndex++ {
		argument := arguments[argumentIndex]
		if argument == initializationFlagToken+"=" {
			normalizedArguments = append(normalizedArguments, initializationFlagToken+"="+configurationInitializationDefaultScopeConstant)
			continue
		}

		if argument == initializationFlagToken {
			nextArgumentMissing := argumentIndex+1 >= len(arguments)
			if nextArgumentMissing || strings.HasPrefix(arguments[argumentIndex+1], "-") {
				normalizedArguments = append(normalizedArguments, initializationFlagToken+"="+configurationInitializationDefaultScopeConstant)
				continue
			}
		}

		normalizedArguments = append(normalizedArguments, argument)
	}

	return normalizedArguments
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	environmentSearchPath := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(environmentSearchPath) > 0 {
		rawSegments := strings.Split(environmentSearchPath, string(os.PathListSeparator))
		searchPaths := make([]string, 0, len(rawSegments))
		for _, rawSegment := range rawSegments {
			trimmedSegment := strings.TrimSpace(rawSegment)
			if len(trimmedSegment) == 0 {
				continue
			}

			searchPaths = append(searchPaths, trimmedSegment)
		}

		if len(searchPaths) > 0 {
			return searchPaths
		}

		return []string{defaultConfigurationSearchPathConstant}
	}

	searchPaths := []string{defaultConfigurationSearchPathConstant}
	searchPaths = append(searchPaths, application.resolveUserConfigurationDirectoryPaths()...)

	return searchPaths
}

func (application *Application) resolveUserConfigurationDirectoryPaths() []string {
	candidateBaseDirectories := make([]string, 0, 3)

	xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant))
	if len(xdgConfigHome) > 0 {
		candidateBaseDirectories = append(candidateBaseDirectories, xdgConfigHome)
	}

	if userConfigDirectory, userConfigError := os.UserConfigDir(); userConfigError == nil {
		trimmedUserConfigDirectory := strings.TrimSpace(userConfigDirectory)
		if len(trimmedUserConfigDirectory) > 0 {
			candidateBaseDirectories = append(candidateBaseDirectories, trimmedUserConfigDirectory)
		}
	}

	if homeDirectory, homeDirectoryError := os.UserHomeDir(); homeDirectoryError == nil {
		trimmedHomeDirectory := strings.TrimSpace(homeDirectory)
		if len(trimmedHomeDirectory) > 0 {
			candidateBaseDirectories = append(candidateBaseDirectories, trimmedHomeDirectory)
		}
	}

	seenDirectories := make(map[string]struct{}, len(candidateBaseDirectories))
	userDirectories := make([]string, 0, len(candidateBaseDirectories))
	for _, baseDirectory := range candidateBaseDirectories {
		userDirectory := filepath.Join(baseDirectory, userConfigurationDirectoryNameConstant)
		if _, alreadySeen := seenDirectories[userDirectory]; alreadySeen {
			continue
		}

		seenDirectories[userDirectory] = struct{}{}
		userDirectories = append(userDirectories, userDirectory)
	}

	return userDirectories
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	operationConfigurations, operationConfigurationError := newOperationConfigurations(application.configuration.Operations)
	if operationConfigurationError != nil {
		return operationConfigurationError
	}

	application.operationConfigurations = operationConfigurations
	if validationError := application.validateOperationConfigurations(command); validationError != nil {
		return validationError
	}

	application.operationConfigurations = application.operationConfigurations.MergeDefaults(application.embeddedOperationConfigurations)

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}

	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithExecutionFlags(updatedContext, flagutils.CollectExecutionFlags(command))
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)

		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// InitializeForCommand loads configuration and rebuilds loggers as if the named command were
// about to run, without executing any command logic.
func (application *Application) InitializeForCommand(commandUse string) error {
	return application.initializeConfiguration(&cobra.Command{Use: commandUse})
}

// ConfigFileUsed reports the configuration file path resolved during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return utils.LogFormat(application.configuration.Common.LogFormat) == utils.LogFormatConsole
}

func (application *Application) logConfigurationInitialization() {
	if application.logger == nil {
		return
	}

	if application.humanReadableLoggingEnabled() {
		application.logger.Debug(fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
		))

		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
}

func (application *Application) analyzeCommandConfiguration() analyzecmd.Configuration {
	configuration := analyzecmd.DefaultConfiguration()
	application.applyAnalysisDefaults(&configuration)
	application.decodeOperationConfiguration(analyzeOperationNameConstant, &configuration)

	return configuration.Sanitize()
}

func (application *Application) applyAnalysisDefaults(configuration *analyzecmd.Configuration) {
	if configuration == nil {
		return
	}

	analysisDefaults := application.configuration.Analysis
	if len(strings.TrimSpace(analysisDefaults.OutputDirectory)) > 0 {
		configuration.OutputDirectory = analysisDefaults.OutputDirectory
	}

	if len(strings.TrimSpace(analysisDefaults.ReferenceFASTA)) > 0 {
		configuration.ReferenceFASTA = analysisDefaults.ReferenceFASTA
	}

	if len(strings.TrimSpace(analysisDefaults.KnowledgeDirectory)) > 0 {
		configuration.KnowledgeDirectory = analysisDefaults.KnowledgeDirectory
	}

	if analysisDefaults.MaxWorkers > 0 {
		configuration.MaxWorkers = analysisDefaults.MaxWorkers
	}

	if analysisDefaults.RunTimeoutSeconds > 0 {
		configuration.RunTimeoutSeconds = analysisDefaults.RunTimeoutSeconds
	}

	configuration.StopOnError = analysisDefaults.StopOnError
}

func (application *Application) serveCommandConfiguration() servecmd.Configuration {
	configuration := servecmd.DefaultConfiguration()
	if len(strings.TrimSpace(application.configuration.Analysis.OutputDirectory)) > 0 {
		configuration.RunsDirectory = application.configuration.Analysis.OutputDirectory
	}

	application.decodeOperationConfiguration(serveOperationNameConstant, &configuration)

	return configuration.Sanitize()
}

func (application *Application) knowledgeBuildConfiguration() knowledgecmd.Configuration {
	configuration := knowledgecmd.DefaultConfiguration()
	if len(strings.TrimSpace(application.configuration.Analysis.KnowledgeDirectory)) > 0 {
		configuration.KnowledgeDirectory = application.configuration.Analysis.KnowledgeDirectory
	}

	application.decodeOperationConfiguration(knowledgeBuildOperationNameConstant, &configuration)

	return configuration.Sanitize()
}

func (application *Application) decodeOperationConfiguration(operationName string, target any) {
	decodeError := application.operationConfigurations.decode(operationName, target)
	if decodeError == nil {
		return
	}

	var missingConfigurationError MissingOperationConfigurationError
	if errors.As(decodeError, &missingConfigurationError) {
		return
	}

	if application.logger != nil {
		application.logger.Warn(
			operationDecodeErrorMessageConstant,
			zap.String(operationNameLogFieldConstant, operationName),
			zap.Error(decodeError),
		)
	}
}

func (application *Application) validateOperationConfigurations(command *cobra.Command) error {
	if len(application.configuration.Operations) == 0 {
		return nil
	}

	for _, operationName := range application.operationsRequiredForCommand(command) {
		_, lookupError := application.operationConfigurations.Lookup(operationName)
		if lookupError == nil {
			continue
		}

		var missingConfigurationError MissingOperationConfigurationError
		if errors.As(lookupError, &missingConfigurationError) {
			application.logMissingOperationConfiguration(command, missingConfigurationError.OperationName)
			continue
		}

		return lookupError
	}

	return nil
}

func (application *Application) logMissingOperationConfiguration(command *cobra.Command, operationName string) {
	if application.logger == nil {
		return
	}

	commandName := unknownCommandNamePlaceholderConstant
	if command != nil {
		if len(strings.TrimSpace(command.Name())) > 0 {
			commandName = command.Name()
		} else if command.Parent() != nil && len(strings.TrimSpace(command.Parent().Name())) > 0 {
			commandName = command.Parent().Name()
		}
	}

	application.logger.Info(
		missingOperationConfigurationSkippedMessageConstant,
		zap.String(logFieldCommandNameConstant, commandName),
		zap.String(operationNameLogFieldConstant, operationName),
	)
}

func (application *Application) operationsRequiredForCommand(command *cobra.Command) []string {
	if command == nil {
		return requiredOperationConfigurationNames
	}

	commandName := strings.TrimSpace(command.Name())
	if len(commandName) == 0 {
		return requiredOperationConfigurationNames
	}

	if requirements, requirementsFound := commandOperationRequirements[commandName]; requirementsFound {
		return requirements
	}

	parentCommand := command.Parent()
	if parentCommand == nil {
		return nil
	}

	parentName := strings.TrimSpace(parentCommand.Name())
	if len(parentName) > 0 {
		compositeKey := parentName + "/" + commandName
		if requirements, requirementsFound := commandOperationRequirements[compositeKey]; requirementsFound {
			return requirements
		}
	}

	return application.operationsRequiredForCommand(parentCommand)
}

func (application *Application) handleConfigurationInitialization(command *cobra.Command) (bool, error) {
	if !application.configurationInitializationRequested(command) {
		return false, nil
	}

	initializationPlan, planError := application.resolveConfigurationInitializationPlan(application.configurationInitializationScope)
	if planError != nil {
		return true, planError
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if len(configurationContent) == 0 {
		return true, errors.New(configurationInitializationContentUnavailableErrorConstant)
	}

	if writeError := application.writeConfigurationFile(initializationPlan, configurationContent); writeError != nil {
		return true, writeError
	}

	if application.logger != nil {
		application.logger.Info(
			configurationInitializationSuccessMessageConstant,
			zap.String(configurationFileFieldConstant, initializationPlan.FilePath),
		)
	}

	return true, nil
}

func (application *Application) configurationInitializationRequested(command *cobra.Command) bool {
	return application.persistentFlagChanged(command, configurationInitializationFlagNameConstant)
}

func (application *Application) resolveConfigurationInitializationPlan(initializationScope string) (configurationInitializationPlan, error) {
	normalizedScope := strings.ToLower(strings.TrimSpace(initializationScope))
	switch normalizedScope {
	case configurationInitializationScopeLocalConstant:
		workingDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationWorkingDirectoryErrorTemplateConstant, workingDirectoryError)
		}

		if len(strings.TrimSpace(workingDirectory)) == 0 {
			return configurationInitializationPlan{}, errors.New(configurationInitializationWorkingDirectoryEmptyErrorConstant)
		}

		return configurationInitializationPlan{
			DirectoryPath: workingDirectory,
			FilePath:      filepath.Join(workingDirectory, configurationFileNameConstant),
		}, nil
	case configurationInitializationScopeUserConstant:
		homeDirectory, homeDirectoryError := os.UserHomeDir()
		if homeDirectoryError != nil {
			return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationHomeDirectoryErrorTemplateConstant, homeDirectoryError)
		}

		if len(strings.TrimSpace(homeDirectory)) == 0 {
			return configurationInitializationPlan{}, errors.New(configurationInitializationHomeDirectoryEmptyErrorConstant)
		}

		configurationDirectory := filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant)

		return configurationInitializationPlan{
			DirectoryPath: configurationDirectory,
			FilePath:      filepath.Join(configurationDirectory, configurationFileNameConstant),
		}, nil
	default:
		return configurationInitializationPlan{}, fmt.Errorf(configurationInitializationUnsupportedScopeTemplateConstant, initializationScope)
	}
}

func (application *Application) writeConfigurationFile(initializationPlan configurationInitializationPlan, configurationContent []byte) error {
	directoryInfo, directoryStatError := os.Stat(initializationPlan.DirectoryPath)
	switch {
	case directoryStatError == nil:
		if !directoryInfo.IsDir() {
			return fmt.Errorf(configurationInitializationDirectoryConflictTemplateConstant, initializationPlan.DirectoryPath)
		}
	case errors.Is(directoryStatError, os.ErrNotExist):
		if mkdirError := os.MkdirAll(initializationPlan.DirectoryPath, configurationDirectoryPermissionConstant); mkdirError != nil {
			return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, initializationPlan.DirectoryPath, mkdirError)
		}
	default:
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, initializationPlan.DirectoryPath, directoryStatError)
	}

	fileInfo, fileStatError := os.Stat(initializationPlan.FilePath)
	if fileStatError == nil {
		if fileInfo.IsDir() {
			return fmt.Errorf(configurationInitializationExistingDirectoryTemplateConstant, initializationPlan.FilePath)
		}

		if !application.configurationInitializationForced {
			return fmt.Errorf(configurationInitializationExistingFileTemplateConstant, initializationPlan.FilePath)
		}
	} else if !errors.Is(fileStatError, os.ErrNotExist) {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, initializationPlan.FilePath, fileStatError)
	}

	if writeError := os.WriteFile(initializationPlan.FilePath, configurationContent, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, initializationPlan.FilePath, writeError)
	}

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil {
		return initializationError
	}

	if initializationHandled {
		return nil
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)
	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}

	return application.syncLoggerInstance(application.consoleLogger)
}

func (application *Application) syncLoggerInstance(loggerInstance *zap.Logger) error {
	if loggerInstance == nil {
		return nil
	}

	syncError := loggerInstance.Sync()
	if syncError == nil {
		return nil
	}

	// Syncing stderr fails on platforms where the descriptor does not support fsync.
	if errors.Is(syncError, syscall.ENOTSUP) ||
		errors.Is(syncError, syscall.EINVAL) ||
		errors.Is(syncError, syscall.EBADF) ||
		errors.Is(syncError, syscall.ENOTTY) {
		return nil
	}

	return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	if command.PersistentFlags().Changed(flagName) {
		return true
	}

	if command.InheritedFlags().Changed(flagName) {
		return true
	}

	rootCommand := command.Root()
	if rootCommand != nil && rootCommand != command && rootCommand.PersistentFlags().Changed(flagName) {
		return true
	}

	return false
}

func (application *Application) resolveVersion() string {
	return strings.TrimSpace(version.Detect(version.Dependencies{}))
}

func (application *Application) printVersion() {
	fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, application.versionResolver())
}
