package analyze

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/genopipe/internal/critic"
)

const (
	criticCommandUseName          = "critic " + runDirectoryArgumentName
	criticCommandShortDescription = "Re-run consistency checks over a recorded run"
)

// CriticCommandBuilder assembles the critic command.
type CriticCommandBuilder struct {
	LoggerProvider LoggerProvider
}

// Build constructs the critic command.
func (builder *CriticCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   criticCommandUseName,
		Short: criticCommandShortDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	return command, nil
}

func (builder *CriticCommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := resolveLogger(builder.LoggerProvider)

	runDirectory := strings.TrimSpace(arguments[0])
	if runDirectory == "" {
		return errors.New("a run directory must be provided")
	}

	service, serviceError := contractService(command, logger)
	if serviceError != nil {
		return serviceError
	}

	findings, critiqueError := service.Critique(runDirectory)
	if critiqueError != nil {
		return critiqueError
	}

	for _, finding := range findings.Findings {
		taskList := ""
		if len(finding.TaskIdentifiers) > 0 {
			taskList = " [" + strings.Join(finding.TaskIdentifiers, ", ") + "]"
		}
		fmt.Fprintf(command.OutOrStdout(), "  %s %s%s: %s\n", finding.Severity, finding.Check, taskList, finding.Message)
	}

	if findings.OverallStatus() == critic.OverallStatusError {
		return fmt.Errorf("consistency checks found errors in %s", runDirectory)
	}
	return nil
}
