package critic

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/engine"
	"github.com/tyemirov/genopipe/internal/plan"
	"github.com/tyemirov/genopipe/internal/registry"
)

const (
	missingReferenceMessageTemplateConstant  = "task %s requires output %s from %s, which is missing or null"
	extraEntitiesMessageTemplateConstant     = "task %s references %d entities absent from upstream %s"
	narrowedEntitiesMessageTemplateConstant  = "task %s covers %d of %d entities from %s without being a declared filter"
	valueRangeMessageTemplateConstant        = "task %s output %s=%v falls outside the expected range [%g, %g]"
	skippedDependencyMessageTemplateConstant = "task %s succeeded although its dependency %s was skipped, which dependency ordering should make impossible"
	scoreEvidenceMessageTemplateConstant     = "top impact score %.2f exceeds the high-impact threshold %.2f but the evidence lookup returned no supporting records"
	defaultHighImpactThresholdConstant       = 0.7
)

// Dependencies configures collaborators for the consistency checker.
type Dependencies struct {
	TaskRegistry *registry.Registry
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Checker runs the post-hoc cross-task consistency checks over a finished
// run. Every check is independent and all of them run regardless of what the
// earlier ones find.
type Checker struct {
	dependencies Dependencies
}

// NewChecker constructs a Checker, filling optional collaborators with inert
// defaults.
func NewChecker(dependencies Dependencies) *Checker {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	return &Checker{dependencies: dependencies}
}

// Check inspects the plan and its recorded results and reports every
// inconsistency it finds. It never fails; findings are the only output.
func (checker *Checker) Check(analysisPlan *plan.Plan, taskResults []engine.TaskResult) FindingsReport {
	report := FindingsReport{
		GeneratedAt: checker.dependencies.Clock().UTC().Truncate(time.Second),
	}
	if analysisPlan == nil {
		return report
	}
	report.RunIdentifier = analysisPlan.RunIdentifier

	resultsByIdentifier := make(map[string]engine.TaskResult, len(taskResults))
	for _, taskResult := range taskResults {
		resultsByIdentifier[taskResult.TaskIdentifier] = taskResult
	}

	report.Findings = append(report.Findings, checker.checkReferentialCompleteness(analysisPlan, resultsByIdentifier)...)
	report.Findings = append(report.Findings, checker.checkCoverage(analysisPlan, resultsByIdentifier)...)
	report.Findings = append(report.Findings, checker.checkValueRanges(analysisPlan, resultsByIdentifier)...)
	report.Findings = append(report.Findings, checker.checkSkippedImpact(analysisPlan, resultsByIdentifier)...)
	report.Findings = append(report.Findings, checker.checkScoreEvidence(analysisPlan, resultsByIdentifier)...)

	checker.dependencies.Logger.Info(
		"consistency_check_complete",
		zap.String("run_id", report.RunIdentifier),
		zap.Int("findings", len(report.Findings)),
		zap.String("status", report.OverallStatus()),
	)
	return report
}

// checkReferentialCompleteness verifies that every output reference in the
// plan resolves to a present, non-null value once its target has succeeded.
func (checker *Checker) checkReferentialCompleteness(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult) []Finding {
	var findings []Finding
	for _, taskSpec := range analysisPlan.Tasks {
		for _, reference := range analysisPlan.TaskReferences(taskSpec.Identifier) {
			targetResult, targetExists := resultsByIdentifier[reference.TaskIdentifier]
			if !targetExists || targetResult.Status != engine.TaskStatusSucceeded {
				continue
			}
			referencedValue, valueExists := targetResult.Outputs[reference.OutputKey]
			if valueExists && referencedValue != nil {
				continue
			}
			findings = append(findings, Finding{
				Severity:        SeverityError,
				Check:           CheckReferentialCompleteness,
				TaskIdentifiers: []string{reference.TaskIdentifier, taskSpec.Identifier},
				OutputKey:       reference.OutputKey,
				Message:         fmt.Sprintf(missingReferenceMessageTemplateConstant, taskSpec.Identifier, reference.OutputKey, reference.TaskIdentifier),
			})
		}
	}
	return findings
}

// checkCoverage compares the primary entity sets of dependent tasks. An
// upstream set must cover the downstream set; narrowing is tolerated only
// for task types declared as intentional filters.
func (checker *Checker) checkCoverage(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult) []Finding {
	var findings []Finding
	for _, taskSpec := range analysisPlan.Tasks {
		downstreamEntities, downstreamContract, downstreamTracked := checker.primaryEntities(taskSpec, resultsByIdentifier)
		if !downstreamTracked {
			continue
		}
		for _, dependencyIdentifier := range taskSpec.DependsOn {
			dependencySpec, dependencyExists := analysisPlan.TaskByIdentifier(dependencyIdentifier)
			if !dependencyExists {
				continue
			}
			upstreamEntities, _, upstreamTracked := checker.primaryEntities(dependencySpec, resultsByIdentifier)
			if !upstreamTracked {
				continue
			}

			if extraCount := countMissing(downstreamEntities, upstreamEntities); extraCount > 0 {
				findings = append(findings, Finding{
					Severity:        SeverityWarning,
					Check:           CheckCoverage,
					TaskIdentifiers: []string{dependencyIdentifier, taskSpec.Identifier},
					OutputKey:       downstreamContract.PrimaryEntityKey,
					Message:         fmt.Sprintf(extraEntitiesMessageTemplateConstant, taskSpec.Identifier, extraCount, dependencyIdentifier),
				})
			}

			if downstreamContract.IntentionalFilter {
				continue
			}
			if narrowedCount := countMissing(upstreamEntities, downstreamEntities); narrowedCount > 0 {
				findings = append(findings, Finding{
					Severity:        SeverityWarning,
					Check:           CheckCoverage,
					TaskIdentifiers: []string{dependencyIdentifier, taskSpec.Identifier},
					OutputKey:       downstreamContract.PrimaryEntityKey,
					Message:         fmt.Sprintf(narrowedEntitiesMessageTemplateConstant, taskSpec.Identifier, len(downstreamEntities), len(upstreamEntities), dependencyIdentifier),
				})
			}
		}
	}
	return findings
}

// checkValueRanges verifies numeric outputs against the ranges declared in
// the producing task type's contract.
func (checker *Checker) checkValueRanges(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult) []Finding {
	var findings []Finding
	for _, taskSpec := range analysisPlan.Tasks {
		taskResult, resultExists := resultsByIdentifier[taskSpec.Identifier]
		if !resultExists || taskResult.Status != engine.TaskStatusSucceeded {
			continue
		}
		contract, contractExists := checker.contractForType(taskSpec.Type)
		if !contractExists || len(contract.NumericRanges) == 0 {
			continue
		}

		rangeKeys := make([]string, 0, len(contract.NumericRanges))
		for rangeKey := range contract.NumericRanges {
			rangeKeys = append(rangeKeys, rangeKey)
		}
		sort.Strings(rangeKeys)

		for _, rangeKey := range rangeKeys {
			outputValue, outputExists := taskResult.Outputs[rangeKey]
			if !outputExists {
				continue
			}
			numeric, isNumeric := numericValue(outputValue)
			if !isNumeric {
				continue
			}
			expectedRange := contract.NumericRanges[rangeKey]
			if expectedRange.Contains(numeric) {
				continue
			}
			findings = append(findings, Finding{
				Severity:        SeverityWarning,
				Check:           CheckValueRange,
				TaskIdentifiers: []string{taskSpec.Identifier},
				OutputKey:       rangeKey,
				Message:         fmt.Sprintf(valueRangeMessageTemplateConstant, taskSpec.Identifier, rangeKey, outputValue, expectedRange.Minimum, expectedRange.Maximum),
			})
		}
	}
	return findings
}

// checkSkippedImpact asserts the invariant that no succeeded task has a
// skipped task anywhere in its dependency closure. Skip propagation makes
// this impossible; a finding here points at an executor defect.
func (checker *Checker) checkSkippedImpact(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult) []Finding {
	var findings []Finding
	for _, taskSpec := range analysisPlan.Tasks {
		taskResult, resultExists := resultsByIdentifier[taskSpec.Identifier]
		if !resultExists || taskResult.Status != engine.TaskStatusSucceeded {
			continue
		}

		closure := analysisPlan.TransitiveDependencies(taskSpec.Identifier)
		closureMembers := make([]string, 0, len(closure))
		for closureMember := range closure {
			closureMembers = append(closureMembers, closureMember)
		}
		sort.Strings(closureMembers)

		for _, closureMember := range closureMembers {
			memberResult, memberExists := resultsByIdentifier[closureMember]
			if !memberExists || memberResult.Status != engine.TaskStatusSkipped {
				continue
			}
			findings = append(findings, Finding{
				Severity:        SeverityError,
				Check:           CheckSkippedImpact,
				TaskIdentifiers: []string{closureMember, taskSpec.Identifier},
				Message:         fmt.Sprintf(skippedDependencyMessageTemplateConstant, taskSpec.Identifier, closureMember),
			})
		}
	}
	return findings
}

// checkScoreEvidence flags runs where scoring found a high-impact variant
// yet the evidence lookup came back empty. The threshold comes from the
// scoring task's own configuration so the check tracks the run's settings.
func (checker *Checker) checkScoreEvidence(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult) []Finding {
	scoringSpec, scoringResult, scoringFound := findSucceededTaskOfType(analysisPlan, resultsByIdentifier, plan.TaskTypeScoring)
	evidenceSpec, evidenceResult, evidenceFound := findSucceededTaskOfType(analysisPlan, resultsByIdentifier, plan.TaskTypeEvidence)
	if !scoringFound || !evidenceFound {
		return nil
	}

	maxScore, hasMaxScore := numericValue(scoringResult.Outputs["max_score"])
	evidenceCount, hasEvidenceCount := numericValue(evidenceResult.Outputs["evidence_count"])
	if !hasMaxScore || !hasEvidenceCount {
		return nil
	}

	highImpactThreshold := defaultHighImpactThresholdConstant
	if configuredThreshold, hasThreshold := numericValue(scoringSpec.Config["high_impact_threshold"]); hasThreshold {
		highImpactThreshold = configuredThreshold
	}

	if maxScore <= highImpactThreshold || evidenceCount > 0 {
		return nil
	}
	return []Finding{{
		Severity:        SeverityWarning,
		Check:           CheckScoreEvidence,
		TaskIdentifiers: []string{scoringSpec.Identifier, evidenceSpec.Identifier},
		Message:         fmt.Sprintf(scoreEvidenceMessageTemplateConstant, maxScore, highImpactThreshold),
	}}
}

// primaryEntities extracts the primary entity set for a task; tracked is
// false when the task has no entity contract or has not succeeded.
func (checker *Checker) primaryEntities(taskSpec plan.TaskSpec, resultsByIdentifier map[string]engine.TaskResult) (map[string]struct{}, registry.Contract, bool) {
	contract, contractExists := checker.contractForType(taskSpec.Type)
	if !contractExists || len(contract.PrimaryEntityKey) == 0 {
		return nil, contract, false
	}
	taskResult, resultExists := resultsByIdentifier[taskSpec.Identifier]
	if !resultExists || taskResult.Status != engine.TaskStatusSucceeded {
		return nil, contract, false
	}
	entityValue, entityExists := taskResult.Outputs[contract.PrimaryEntityKey]
	if !entityExists {
		return nil, contract, false
	}
	return entityStringSet(entityValue), contract, true
}

func (checker *Checker) contractForType(taskType string) (registry.Contract, bool) {
	if checker.dependencies.TaskRegistry == nil {
		return registry.Contract{}, false
	}
	return checker.dependencies.TaskRegistry.Contract(taskType)
}

func findSucceededTaskOfType(analysisPlan *plan.Plan, resultsByIdentifier map[string]engine.TaskResult, taskType string) (plan.TaskSpec, engine.TaskResult, bool) {
	for _, taskSpec := range analysisPlan.Tasks {
		if taskSpec.Type != taskType {
			continue
		}
		taskResult, resultExists := resultsByIdentifier[taskSpec.Identifier]
		if !resultExists || taskResult.Status != engine.TaskStatusSucceeded {
			continue
		}
		return taskSpec, taskResult, true
	}
	return plan.TaskSpec{}, engine.TaskResult{}, false
}

// entityStringSet normalizes an output value holding entity identifiers.
// Both decoded YAML lists and native string slices occur in practice.
func entityStringSet(entityValue any) map[string]struct{} {
	entities := map[string]struct{}{}
	switch typedValue := entityValue.(type) {
	case []string:
		for _, entity := range typedValue {
			entities[entity] = struct{}{}
		}
	case []any:
		for _, entity := range typedValue {
			entities[fmt.Sprintf("%v", entity)] = struct{}{}
		}
	}
	return entities
}

// countMissing counts members of the candidate set absent from the base set.
func countMissing(candidates map[string]struct{}, base map[string]struct{}) int {
	missing := 0
	for candidate := range candidates {
		if _, present := base[candidate]; !present {
			missing++
		}
	}
	return missing
}

// numericValue coerces the numeric types that reach outputs through YAML
// decoding and native task bodies.
func numericValue(candidate any) (float64, bool) {
	switch typedValue := candidate.(type) {
	case int:
		return float64(typedValue), true
	case int32:
		return float64(typedValue), true
	case int64:
		return float64(typedValue), true
	case uint:
		return float64(typedValue), true
	case uint64:
		return float64(typedValue), true
	case float32:
		return float64(typedValue), true
	case float64:
		return typedValue, true
	default:
		return 0, false
	}
}
