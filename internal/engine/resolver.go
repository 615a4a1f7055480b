package engine

import (
	"errors"
	"fmt"

	"github.com/tyemirov/genopipe/internal/plan"
)

const (
	unresolvedReferenceTemplateConstant = "%w: task %q is not in a succeeded state"
	missingOutputKeyTemplateConstant    = "%w: task %q published no output %q"
)

var (
	// ErrUnresolvedReference indicates a reference to a task that has not
	// succeeded at resolution time. Dependency-ordered scheduling makes this
	// structurally impossible; observing it means the executor misordered
	// the run, so resolution treats it as fatal for the owning task.
	ErrUnresolvedReference = errors.New("unresolved output reference")
	// ErrMissingOutputKey indicates a reference to an output key absent from
	// the target task's published outputs.
	ErrMissingOutputKey = errors.New("missing output key")
)

// resolveTaskConfiguration substitutes every output reference in the
// configuration with the referenced task's published output. Resolution is
// total and eager: the whole configuration resolves in one pass immediately
// before the task body is invoked, and the first failure aborts it.
func resolveTaskConfiguration(configuration map[string]any, runContext *RunContext) (map[string]any, error) {
	resolved := make(map[string]any, len(configuration))
	for configurationKey, configurationValue := range configuration {
		resolvedValue, resolveError := resolveConfigurationValue(configurationValue, runContext)
		if resolveError != nil {
			return nil, resolveError
		}
		resolved[configurationKey] = resolvedValue
	}
	return resolved, nil
}

func resolveConfigurationValue(configurationValue any, runContext *RunContext) (any, error) {
	switch typedValue := configurationValue.(type) {
	case string:
		if reference, wholeString := plan.WholeStringReference(typedValue); wholeString {
			return lookupReferencedOutput(reference, runContext)
		}
		return plan.ReplaceReferences(typedValue, func(reference plan.OutputReference) (string, error) {
			outputValue, lookupError := lookupReferencedOutput(reference, runContext)
			if lookupError != nil {
				return "", lookupError
			}
			return formatOutputValue(outputValue), nil
		})
	case map[string]any:
		resolvedMapping := make(map[string]any, len(typedValue))
		for mappingKey, mappingValue := range typedValue {
			resolvedValue, resolveError := resolveConfigurationValue(mappingValue, runContext)
			if resolveError != nil {
				return nil, resolveError
			}
			resolvedMapping[mappingKey] = resolvedValue
		}
		return resolvedMapping, nil
	case []any:
		resolvedSequence := make([]any, 0, len(typedValue))
		for _, element := range typedValue {
			resolvedElement, resolveError := resolveConfigurationValue(element, runContext)
			if resolveError != nil {
				return nil, resolveError
			}
			resolvedSequence = append(resolvedSequence, resolvedElement)
		}
		return resolvedSequence, nil
	default:
		return configurationValue, nil
	}
}

func lookupReferencedOutput(reference plan.OutputReference, runContext *RunContext) (any, error) {
	result, exists := runContext.SnapshotResult(reference.TaskIdentifier)
	if !exists || result.Status != TaskStatusSucceeded {
		return nil, fmt.Errorf(unresolvedReferenceTemplateConstant, ErrUnresolvedReference, reference.TaskIdentifier)
	}
	outputValue, keyExists := result.Outputs[reference.OutputKey]
	if !keyExists {
		return nil, fmt.Errorf(missingOutputKeyTemplateConstant, ErrMissingOutputKey, reference.TaskIdentifier, reference.OutputKey)
	}
	return outputValue, nil
}

func formatOutputValue(outputValue any) string {
	switch typedValue := outputValue.(type) {
	case string:
		return typedValue
	case fmt.Stringer:
		return typedValue.String()
	default:
		return fmt.Sprintf("%v", typedValue)
	}
}
