package plan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/registry"
)

type compilerStubRunner struct{}

func (compilerStubRunner) Invoke(context.Context, map[string]any, registry.RunEnvironment) (map[string]any, error) {
	return map[string]any{}, nil
}

func buildCompilerRegistry(t *testing.T, taskTypes ...string) *registry.Registry {
	t.Helper()
	taskRegistry := registry.NewRegistry()
	for _, taskType := range taskTypes {
		require.NoError(t, taskRegistry.Register(registry.Contract{TaskType: taskType}, compilerStubRunner{}))
	}
	return taskRegistry
}

func germlineTaskTypes() []string {
	return []string{
		TaskTypeVariantFilter,
		TaskTypeSequenceContext,
		TaskTypeGenosEmbedding,
		TaskTypeScoring,
		TaskTypeEvidence,
		TaskTypeReport,
	}
}

func buildTestRunParameters() RunParameters {
	return RunParameters{
		InputPath:        "/data/sample.vcf",
		SampleIdentifier: "NA12878",
		Phenotype:        "dilated cardiomyopathy",
		OutputDirectory:  "/runs/na12878",
	}
}

func TestCompileProducesValidatedGermlinePlan(t *testing.T) {
	compiler := NewCompiler(CompilerDependencies{
		TaskRegistry: buildCompilerRegistry(t, germlineTaskTypes()...),
	})

	compiledPlan, err := compiler.Compile(buildTestRunParameters())
	require.NoError(t, err)

	require.Equal(t, CurrentFormatVersion, compiledPlan.FormatVersion)
	require.NotEmpty(t, compiledPlan.RunIdentifier)
	require.False(t, compiledPlan.CreatedAt.IsZero())
	require.Equal(t, AnalysisTypeGermline, compiledPlan.Parameters.AnalysisType)
	require.Len(t, compiledPlan.Tasks, 6)

	stages := compiledPlan.Stages()
	require.Equal(t, [][]string{
		{TaskTypeVariantFilter},
		{TaskTypeSequenceContext},
		{TaskTypeGenosEmbedding},
		{TaskTypeScoring},
		{TaskTypeEvidence},
		{TaskTypeReport},
	}, stages)

	scoringReferences := compiledPlan.TaskReferences(TaskTypeScoring)
	require.Contains(t, scoringReferences, OutputReference{TaskIdentifier: TaskTypeGenosEmbedding, OutputKey: "embeddings_file"})
	require.Contains(t, scoringReferences, OutputReference{TaskIdentifier: TaskTypeSequenceContext, OutputKey: "contexts_file"})
}

func TestCompileBakesReportPresentationSettings(t *testing.T) {
	testCases := []struct {
		name             string
		settings         AnalysisSettings
		expectedFormat   string
		expectedSections []any
	}{
		{
			name:             "defaults",
			settings:         AnalysisSettings{},
			expectedFormat:   "markdown",
			expectedSections: []any{"summary", "top_variants", "evidence", "recommendations"},
		},
		{
			name:             "html_with_section_subset",
			settings:         AnalysisSettings{ReportFormat: "html", ReportSections: []string{"summary", "top_variants"}},
			expectedFormat:   "html",
			expectedSections: []any{"summary", "top_variants"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			compiler := NewCompiler(CompilerDependencies{
				TaskRegistry:     buildCompilerRegistry(t, germlineTaskTypes()...),
				AnalysisSettings: testCase.settings,
			})

			compiledPlan, err := compiler.Compile(buildTestRunParameters())
			require.NoError(t, err)

			reportTask, found := compiledPlan.TaskByIdentifier(TaskTypeReport)
			require.True(t, found)
			require.Equal(t, testCase.expectedFormat, reportTask.Config["format"])
			require.Equal(t, testCase.expectedSections, reportTask.Config["include_sections"])
		})
	}
}

func TestCompileIsDeterministicUpToTimestamps(t *testing.T) {
	fixedMoment := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	buildCompiler := func() *Compiler {
		return NewCompiler(CompilerDependencies{
			TaskRegistry:      buildCompilerRegistry(t, germlineTaskTypes()...),
			IdentifierFactory: func() string { return "fixed-run" },
			Clock:             func() time.Time { return fixedMoment },
		})
	}

	firstPlan, firstError := buildCompiler().Compile(buildTestRunParameters())
	require.NoError(t, firstError)
	secondPlan, secondError := buildCompiler().Compile(buildTestRunParameters())
	require.NoError(t, secondError)

	require.Equal(t, firstPlan, secondPlan)
}

func TestCompileRejectsMissingParameters(t *testing.T) {
	testCases := []struct {
		name       string
		parameters RunParameters
	}{
		{
			name: "missing_input_path",
			parameters: RunParameters{
				SampleIdentifier: "NA12878",
				OutputDirectory:  "/runs/na12878",
			},
		},
		{
			name: "missing_sample_identifier",
			parameters: RunParameters{
				InputPath:       "/data/sample.vcf",
				OutputDirectory: "/runs/na12878",
			},
		},
		{
			name: "missing_output_directory",
			parameters: RunParameters{
				InputPath:        "/data/sample.vcf",
				SampleIdentifier: "NA12878",
			},
		},
	}

	compiler := NewCompiler(CompilerDependencies{})
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := compiler.Compile(testCase.parameters)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestCompileRejectsUnsupportedAnalysisType(t *testing.T) {
	compiler := NewCompiler(CompilerDependencies{})
	parameters := buildTestRunParameters()
	parameters.AnalysisType = "somatic"

	_, err := compiler.Compile(parameters)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	require.ErrorContains(t, err, "somatic")
}

func TestCompileRejectsUnregisteredTaskType(t *testing.T) {
	compiler := NewCompiler(CompilerDependencies{
		TaskRegistry: buildCompilerRegistry(t, TaskTypeVariantFilter),
	})

	_, err := compiler.Compile(buildTestRunParameters())
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	require.ErrorContains(t, err, "is not registered")
}

func TestTransitiveDependenciesFollowsClosure(t *testing.T) {
	compiler := NewCompiler(CompilerDependencies{})
	compiledPlan, err := compiler.Compile(buildTestRunParameters())
	require.NoError(t, err)

	reportClosure := compiledPlan.TransitiveDependencies(TaskTypeReport)
	require.Contains(t, reportClosure, TaskTypeScoring)
	require.Contains(t, reportClosure, TaskTypeEvidence)
	require.Contains(t, reportClosure, TaskTypeVariantFilter)
	require.Contains(t, reportClosure, TaskTypeSequenceContext)
	require.Contains(t, reportClosure, TaskTypeGenosEmbedding)
	require.NotContains(t, reportClosure, TaskTypeReport)

	filterClosure := compiledPlan.TransitiveDependencies(TaskTypeVariantFilter)
	require.Empty(t, filterClosure)
}
