// Package serve wires the command publishing recorded analysis runs over
// HTTP.
package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	flagutils "github.com/tyemirov/genopipe/internal/utils/flags"
	"github.com/tyemirov/genopipe/internal/webui"
)

const (
	serveCommandUseName          = "serve"
	serveCommandShortDescription = "Serve recorded analysis runs over HTTP"
	addressFlagName              = "address"
	addressFlagUsage             = "Listen address for the web server"
	runsDirFlagName              = "runs-dir"
	runsDirFlagUsage             = "Directory holding recorded run directories"

	defaultRunsDirectory  = "runs"
	shutdownGraceDuration = 5 * time.Second
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// Configuration captures web server defaults.
type Configuration struct {
	Address       string `mapstructure:"address"`
	RunsDirectory string `mapstructure:"runs_directory"`
}

// DefaultConfiguration provides baseline web server configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Address:       webui.DefaultAddress,
		RunsDirectory: defaultRunsDirectory,
	}
}

// Sanitize normalizes configuration values.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Address = strings.TrimSpace(configuration.Address)
	if sanitized.Address == "" {
		sanitized.Address = webui.DefaultAddress
	}
	sanitized.RunsDirectory = strings.TrimSpace(configuration.RunsDirectory)
	if sanitized.RunsDirectory == "" {
		sanitized.RunsDirectory = defaultRunsDirectory
	}
	return sanitized
}

// CommandBuilder assembles the serve command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
	VersionProvider       func() string
}

// Build constructs the serve command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   serveCommandUseName,
		Short: serveCommandShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(addressFlagName, "", addressFlagUsage)
	command.Flags().String(runsDirFlagName, "", runsDirFlagUsage)

	return command, nil
}

// run serves until the command context is cancelled or the process receives
// SIGINT or SIGTERM, then drains in-flight requests.
func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	listenAddress := configuration.Address
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, addressFlagName); flagError == nil && flagChanged {
		listenAddress = strings.TrimSpace(flagValue)
	}
	runsDirectory := configuration.RunsDirectory
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, runsDirFlagName); flagError == nil && flagChanged {
		runsDirectory = strings.TrimSpace(flagValue)
	}

	server, serverError := webui.NewServer(webui.Dependencies{
		Logger:        logger,
		RunsDirectory: runsDirectory,
		Version:       builder.resolveVersion(),
	})
	if serverError != nil {
		return serverError
	}

	if startError := server.Start(listenAddress); startError != nil {
		return startError
	}
	fmt.Fprintf(command.OutOrStdout(), "Serving recorded runs from %s on %s\n", runsDirectory, server.Address())

	waitContext, stopNotifier := signal.NotifyContext(command.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stopNotifier()
	<-waitContext.Done()

	shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), shutdownGraceDuration)
	defer cancelShutdown()
	return server.Shutdown(shutdownContext)
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveVersion() string {
	if builder.VersionProvider == nil {
		return ""
	}
	return strings.TrimSpace(builder.VersionProvider())
}
