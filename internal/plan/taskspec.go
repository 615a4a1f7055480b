// Package plan compiles declarative analysis task graphs, validates their
// dependency structure, and persists them for later execution or resume.
package plan

import "time"

// CurrentFormatVersion identifies the plan document format produced by this build.
const CurrentFormatVersion = "v1.0.0"

// TaskSpec describes one unit of work inside a Plan.
type TaskSpec struct {
	Identifier string         `yaml:"id"`
	Type       string         `yaml:"type"`
	DependsOn  []string       `yaml:"depends_on,omitempty"`
	Config     map[string]any `yaml:"config,omitempty"`
}

// RunParameters captures the inputs used to compile a Plan.
type RunParameters struct {
	AnalysisType     string `yaml:"analysis_type"`
	InputPath        string `yaml:"input_path"`
	SampleIdentifier string `yaml:"sample_id"`
	Phenotype        string `yaml:"phenotype,omitempty"`
	OutputDirectory  string `yaml:"output_directory"`
}

// Plan is a compiled task graph for one analysis run. Plans are read-only
// after compilation; persisting and reloading a plan yields an equal value.
type Plan struct {
	FormatVersion string        `yaml:"format_version"`
	RunIdentifier string        `yaml:"run_id"`
	CreatedAt     time.Time     `yaml:"created_at"`
	Parameters    RunParameters `yaml:"parameters"`
	Tasks         []TaskSpec    `yaml:"tasks"`

	referenceIndex map[string][]OutputReference
	stageLayout    [][]string
}

// NewPlan assembles a plan from explicit task specs, validating the
// dependency graph the same way Compile does. Callers that do not use the
// built-in analysis templates construct their plans here.
func NewPlan(runIdentifier string, parameters RunParameters, tasks []TaskSpec, createdAt time.Time) (*Plan, error) {
	assembledPlan := &Plan{
		FormatVersion: CurrentFormatVersion,
		RunIdentifier: runIdentifier,
		CreatedAt:     createdAt.UTC().Truncate(time.Second),
		Parameters:    parameters,
		Tasks:         tasks,
	}
	if finalizeError := assembledPlan.finalize(); finalizeError != nil {
		return nil, finalizeError
	}
	return assembledPlan, nil
}

// TaskByIdentifier returns the task spec with the given identifier.
func (analysisPlan *Plan) TaskByIdentifier(taskIdentifier string) (TaskSpec, bool) {
	for _, task := range analysisPlan.Tasks {
		if task.Identifier == taskIdentifier {
			return task, true
		}
	}
	return TaskSpec{}, false
}

// Stages returns the execution stages computed during validation. Tasks in one
// stage have no dependency relation and may execute concurrently; stages run
// in order. Within a stage, tasks keep their declaration order.
func (analysisPlan *Plan) Stages() [][]string {
	stages := make([][]string, 0, len(analysisPlan.stageLayout))
	for _, stage := range analysisPlan.stageLayout {
		stages = append(stages, append([]string{}, stage...))
	}
	return stages
}

// TaskReferences returns the output references parsed from the identified
// task's configuration during validation.
func (analysisPlan *Plan) TaskReferences(taskIdentifier string) []OutputReference {
	references, exists := analysisPlan.referenceIndex[taskIdentifier]
	if !exists {
		return nil
	}
	return append([]OutputReference{}, references...)
}

// TransitiveDependencies returns every task identifier reachable through the
// identified task's dependency declarations, the task itself excluded.
func (analysisPlan *Plan) TransitiveDependencies(taskIdentifier string) map[string]struct{} {
	dependenciesByTask := make(map[string][]string, len(analysisPlan.Tasks))
	for _, task := range analysisPlan.Tasks {
		dependenciesByTask[task.Identifier] = task.DependsOn
	}

	closure := map[string]struct{}{}
	pending := append([]string{}, dependenciesByTask[taskIdentifier]...)
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		if _, visited := closure[current]; visited {
			continue
		}
		closure[current] = struct{}{}
		pending = append(pending, dependenciesByTask[current]...)
	}
	return closure
}

// finalize validates the task graph and caches the derived stage layout and
// reference index. Both Compile and Load finish through finalize so compiled
// and reloaded plans carry identical derived state.
func (analysisPlan *Plan) finalize() error {
	stageLayout, stageError := planTaskStages(analysisPlan.Tasks)
	if stageError != nil {
		return stageError
	}
	referenceIndex, referenceError := buildReferenceIndex(analysisPlan.Tasks)
	if referenceError != nil {
		return referenceError
	}
	analysisPlan.stageLayout = stageLayout
	analysisPlan.referenceIndex = referenceIndex
	return nil
}
