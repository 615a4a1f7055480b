package plan

import (
	"fmt"
	"regexp"
	"sort"
)

const (
	referencePatternConstant          = `\$\{output\.([A-Za-z0-9_-]+)\.([A-Za-z0-9_-]+)\}`
	referenceTemplateConstant         = "${output.%s.%s}"
	undeclaredReferenceErrorTemplate  = "%w: task %q references %q without declaring it as a dependency"
	referenceResolveFailedErrTemplate = "unable to resolve reference %s: %w"
)

var referenceExpression = regexp.MustCompile(referencePatternConstant)

// OutputReference is a typed pointer to another task's named output, parsed
// once from its textual configuration form.
type OutputReference struct {
	TaskIdentifier string
	OutputKey      string
}

// String renders the reference in its textual configuration form.
func (reference OutputReference) String() string {
	return fmt.Sprintf(referenceTemplateConstant, reference.TaskIdentifier, reference.OutputKey)
}

// ParseReferences extracts every output reference embedded in the provided
// configuration value, descending into nested mappings and sequences.
// Mapping keys are visited in sorted order so the result is deterministic.
func ParseReferences(configurationValue any) []OutputReference {
	collected := []OutputReference{}
	collectReferences(configurationValue, &collected)
	return collected
}

func collectReferences(configurationValue any, collected *[]OutputReference) {
	switch typedValue := configurationValue.(type) {
	case string:
		for _, match := range referenceExpression.FindAllStringSubmatch(typedValue, -1) {
			*collected = append(*collected, OutputReference{TaskIdentifier: match[1], OutputKey: match[2]})
		}
	case map[string]any:
		mappingKeys := make([]string, 0, len(typedValue))
		for mappingKey := range typedValue {
			mappingKeys = append(mappingKeys, mappingKey)
		}
		sort.Strings(mappingKeys)
		for _, mappingKey := range mappingKeys {
			collectReferences(typedValue[mappingKey], collected)
		}
	case []any:
		for _, element := range typedValue {
			collectReferences(element, collected)
		}
	}
}

// WholeStringReference reports whether the candidate string consists of
// exactly one output reference, returning the parsed reference when it does.
func WholeStringReference(candidate string) (OutputReference, bool) {
	match := referenceExpression.FindStringSubmatch(candidate)
	if match == nil || match[0] != candidate {
		return OutputReference{}, false
	}
	return OutputReference{TaskIdentifier: match[1], OutputKey: match[2]}, true
}

// ReplaceReferences substitutes every embedded output reference in the
// candidate string using the provided resolver. The first resolution failure
// aborts the substitution.
func ReplaceReferences(candidate string, resolve func(OutputReference) (string, error)) (string, error) {
	var resolutionError error
	replaced := referenceExpression.ReplaceAllStringFunc(candidate, func(matched string) string {
		if resolutionError != nil {
			return matched
		}
		submatch := referenceExpression.FindStringSubmatch(matched)
		reference := OutputReference{TaskIdentifier: submatch[1], OutputKey: submatch[2]}
		resolvedValue, resolveError := resolve(reference)
		if resolveError != nil {
			resolutionError = fmt.Errorf(referenceResolveFailedErrTemplate, reference, resolveError)
			return matched
		}
		return resolvedValue
	})
	if resolutionError != nil {
		return "", resolutionError
	}
	return replaced, nil
}

// buildReferenceIndex parses every task's configuration references and
// verifies each one names a declared dependency of the referencing task.
func buildReferenceIndex(tasks []TaskSpec) (map[string][]OutputReference, error) {
	referenceIndex := map[string][]OutputReference{}
	for _, task := range tasks {
		references := ParseReferences(task.Config)
		if len(references) == 0 {
			continue
		}

		declaredDependencies := make(map[string]struct{}, len(task.DependsOn))
		for _, dependencyIdentifier := range task.DependsOn {
			declaredDependencies[dependencyIdentifier] = struct{}{}
		}

		for _, reference := range references {
			if _, declared := declaredDependencies[reference.TaskIdentifier]; !declared {
				return nil, fmt.Errorf(undeclaredReferenceErrorTemplate, ErrUndeclaredDependency, task.Identifier, reference.TaskIdentifier)
			}
		}
		referenceIndex[task.Identifier] = references
	}
	return referenceIndex, nil
}
