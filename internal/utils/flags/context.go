package flags

import "github.com/spf13/cobra"

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Compile and validate without executing tasks"
	// StopOnErrorFlagName exposes the shared stop-on-error flag name.
	StopOnErrorFlagName = "stop-on-error"
	// StopOnErrorFlagUsage describes the shared stop-on-error flag purpose.
	StopOnErrorFlagUsage = "Halt the run when a task fails"
	// MaxWorkersFlagName exposes the shared worker limit flag name.
	MaxWorkersFlagName = "max-workers"
	// MaxWorkersFlagUsage describes the shared worker limit flag purpose.
	MaxWorkersFlagUsage = "Maximum number of tasks executing concurrently"
	// SampleFlagName exposes the shared sample identifier flag name.
	SampleFlagName = "sample"
	// SampleFlagUsage describes the shared sample identifier flag purpose.
	SampleFlagUsage = "Sample identifier recorded in plans and reports"
	// PhenotypeFlagName exposes the shared phenotype flag name.
	PhenotypeFlagName = "phenotype"
	// PhenotypeFlagUsage describes the shared phenotype flag purpose.
	PhenotypeFlagUsage = "Phenotype description guiding evidence retrieval"
)

// SampleFlagDefinition captures configuration for sample context flags.
type SampleFlagDefinition struct {
	Name    string
	Usage   string
	Enabled bool
}

// SampleFlagDefinitions groups sample context flag definitions.
type SampleFlagDefinitions struct {
	Identifier SampleFlagDefinition
	Phenotype  SampleFlagDefinition
}

// SampleFlagValues stores sample context flag values.
type SampleFlagValues struct {
	Identifier string
	Phenotype  string
}

// BindSampleFlags attaches sample context flags to the provided command.
func BindSampleFlags(command *cobra.Command, defaults SampleFlagValues, definitions SampleFlagDefinitions) *SampleFlagValues {
	values := defaults
	if command == nil {
		return &values
	}

	persistentFlagSet := command.PersistentFlags()
	if definitions.Identifier.Enabled && len(definitions.Identifier.Name) > 0 {
		persistentFlagSet.StringVar(&values.Identifier, definitions.Identifier.Name, defaults.Identifier, definitions.Identifier.Usage)
	}
	if definitions.Phenotype.Enabled && len(definitions.Phenotype.Name) > 0 {
		persistentFlagSet.StringVar(&values.Phenotype, definitions.Phenotype.Name, defaults.Phenotype, definitions.Phenotype.Usage)
	}

	return &values
}
