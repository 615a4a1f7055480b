package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	missingParameterErrorTemplateConstant        = "%w: %s is required"
	unsupportedAnalysisTypeErrorTemplateConstant = "%w: unsupported analysis type %q"
	unregisteredTaskTypeErrorTemplateConstant    = "%w: task type %q is not registered"

	inputPathParameterNameConstant        = "input path"
	sampleIdentifierParameterNameConstant = "sample identifier"
	outputDirectoryParameterNameConstant  = "output directory"
)

// CompilerDependencies describes the collaborators used while compiling plans.
type CompilerDependencies struct {
	TaskRegistry      *registry.Registry
	AnalysisSettings  AnalysisSettings
	IdentifierFactory func() string
	Clock             func() time.Time
}

// Compiler builds validated plans from run parameters.
type Compiler struct {
	dependencies CompilerDependencies
}

// NewCompiler constructs a Compiler, filling defaults for absent collaborators.
func NewCompiler(dependencies CompilerDependencies) *Compiler {
	prepared := dependencies
	prepared.AnalysisSettings = prepared.AnalysisSettings.Sanitized()
	if prepared.IdentifierFactory == nil {
		prepared.IdentifierFactory = uuid.NewString
	}
	if prepared.Clock == nil {
		prepared.Clock = time.Now
	}
	return &Compiler{dependencies: prepared}
}

// Compile instantiates the template selected by the run parameters, validates
// the resulting task graph, and returns the compiled plan. No plan is
// produced when any validation fails.
func (compiler *Compiler) Compile(parameters RunParameters) (*Plan, error) {
	normalizedParameters, parameterError := normalizeRunParameters(parameters)
	if parameterError != nil {
		return nil, parameterError
	}

	var tasks []TaskSpec
	switch normalizedParameters.AnalysisType {
	case AnalysisTypeGermline:
		tasks = germlineTaskSpecs(normalizedParameters, compiler.dependencies.AnalysisSettings)
	default:
		return nil, fmt.Errorf(unsupportedAnalysisTypeErrorTemplateConstant, ErrInvalidConfiguration, normalizedParameters.AnalysisType)
	}

	if compiler.dependencies.TaskRegistry != nil {
		for _, task := range tasks {
			if _, registered := compiler.dependencies.TaskRegistry.Contract(task.Type); !registered {
				return nil, fmt.Errorf(unregisteredTaskTypeErrorTemplateConstant, ErrInvalidConfiguration, task.Type)
			}
		}
	}

	compiledPlan := &Plan{
		FormatVersion: CurrentFormatVersion,
		RunIdentifier: compiler.dependencies.IdentifierFactory(),
		CreatedAt:     compiler.dependencies.Clock().UTC().Truncate(time.Second),
		Parameters:    normalizedParameters,
		Tasks:         tasks,
	}
	if finalizeError := compiledPlan.finalize(); finalizeError != nil {
		return nil, finalizeError
	}
	return compiledPlan, nil
}

func normalizeRunParameters(parameters RunParameters) (RunParameters, error) {
	normalized := RunParameters{
		AnalysisType:     strings.TrimSpace(parameters.AnalysisType),
		InputPath:        strings.TrimSpace(parameters.InputPath),
		SampleIdentifier: strings.TrimSpace(parameters.SampleIdentifier),
		Phenotype:        strings.TrimSpace(parameters.Phenotype),
		OutputDirectory:  strings.TrimSpace(parameters.OutputDirectory),
	}
	if len(normalized.AnalysisType) == 0 {
		normalized.AnalysisType = AnalysisTypeGermline
	}
	if len(normalized.InputPath) == 0 {
		return RunParameters{}, fmt.Errorf(missingParameterErrorTemplateConstant, ErrInvalidConfiguration, inputPathParameterNameConstant)
	}
	if len(normalized.SampleIdentifier) == 0 {
		return RunParameters{}, fmt.Errorf(missingParameterErrorTemplateConstant, ErrInvalidConfiguration, sampleIdentifierParameterNameConstant)
	}
	if len(normalized.OutputDirectory) == 0 {
		return RunParameters{}, fmt.Errorf(missingParameterErrorTemplateConstant, ErrInvalidConfiguration, outputDirectoryParameterNameConstant)
	}
	return normalized, nil
}
