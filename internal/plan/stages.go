package plan

import "fmt"

const (
	duplicateTaskErrorTemplateConstant  = "%w: duplicate task identifier %q"
	selfDependencyErrorTemplateConstant = "%w: task %q depends on itself"
	unknownDependencyErrorTemplate      = "%w: task %q depends on unknown task %q"
)

// planTaskStages orders tasks into dependency stages. Every task appears in
// exactly one stage, after the stages containing all of its dependencies.
// Tasks inside a stage keep their declaration order.
func planTaskStages(tasks []TaskSpec) ([][]string, error) {
	knownIdentifiers := make(map[string]struct{}, len(tasks))
	inDegree := make(map[string]int, len(tasks))
	adjacency := make(map[string][]string, len(tasks))

	for _, task := range tasks {
		if _, exists := knownIdentifiers[task.Identifier]; exists {
			return nil, fmt.Errorf(duplicateTaskErrorTemplateConstant, ErrInvalidConfiguration, task.Identifier)
		}
		knownIdentifiers[task.Identifier] = struct{}{}
		inDegree[task.Identifier] = 0
	}

	for _, task := range tasks {
		for _, dependencyIdentifier := range task.DependsOn {
			if dependencyIdentifier == task.Identifier {
				return nil, fmt.Errorf(selfDependencyErrorTemplateConstant, ErrCyclicDependency, task.Identifier)
			}
			if _, exists := knownIdentifiers[dependencyIdentifier]; !exists {
				return nil, fmt.Errorf(unknownDependencyErrorTemplate, ErrUnknownDependency, task.Identifier, dependencyIdentifier)
			}
			adjacency[dependencyIdentifier] = append(adjacency[dependencyIdentifier], task.Identifier)
			inDegree[task.Identifier]++
		}
	}

	stageLayout := [][]string{}
	scheduled := make(map[string]struct{}, len(tasks))
	scheduledCount := 0

	for scheduledCount < len(tasks) {
		readyIdentifiers := []string{}
		for _, task := range tasks {
			if _, alreadyScheduled := scheduled[task.Identifier]; alreadyScheduled {
				continue
			}
			if inDegree[task.Identifier] == 0 {
				readyIdentifiers = append(readyIdentifiers, task.Identifier)
			}
		}

		if len(readyIdentifiers) == 0 {
			return nil, ErrCyclicDependency
		}

		for _, readyIdentifier := range readyIdentifiers {
			scheduled[readyIdentifier] = struct{}{}
			scheduledCount++
			for _, dependentIdentifier := range adjacency[readyIdentifier] {
				inDegree[dependentIdentifier]--
			}
		}

		stageLayout = append(stageLayout, readyIdentifiers)
	}

	return stageLayout, nil
}
