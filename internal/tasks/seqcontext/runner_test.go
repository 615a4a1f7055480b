package seqcontext_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
)

const (
	referenceFixtureConstant = ">22\n" +
		"ACGTACGTACGTACGTACGT\n" +
		"TTTTCCCCGGGGAAAATTTT\n" +
		"ACGTACGTAC\n"
	variantsFixtureConstant = "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"22\t25\trs777\tC\tA\t90\tPASS\tAF=0.0002;CSQ=missense_variant\n" +
		"22\t30\t.\tG\tT\t85\tPASS\tAF=0.0001\n"
	testWindowSizeConstant = 5
)

type stubEnvironment struct{}

func (stubEnvironment) RunIdentifier() string                     { return "run-test" }
func (stubEnvironment) ArtifactsDirectory() string                { return "" }
func (stubEnvironment) TaskOutputs(string) (map[string]any, bool) { return nil, false }

func writeFixture(testInstance *testing.T, name string, contents string) string {
	testInstance.Helper()
	fixturePath := filepath.Join(testInstance.TempDir(), name)
	require.NoError(testInstance, os.WriteFile(fixturePath, []byte(contents), 0o644))
	return fixturePath
}

func contextConfiguration(variantsPath string, referencePath string, outputDirectory string) map[string]any {
	return map[string]any{
		"variants_file":   variantsPath,
		"reference_fasta": referencePath,
		"window_size":     testWindowSizeConstant,
		"contexts_file":   filepath.Join(outputDirectory, "contexts.jsonl"),
	}
}

func TestRunnerExtractsWindowsFromReference(testInstance *testing.T) {
	variantsPath := writeFixture(testInstance, "variants.vcf", variantsFixtureConstant)
	referencePath := writeFixture(testInstance, "genome.fa", referenceFixtureConstant)
	configuration := contextConfiguration(variantsPath, referencePath, testInstance.TempDir())

	runner := seqcontext.NewRunner(seqcontext.Dependencies{})
	outputs, invokeError := runner.Invoke(context.Background(), configuration, stubEnvironment{})
	require.NoError(testInstance, invokeError)

	require.Equal(testInstance, 2, outputs["context_count"])
	require.Equal(testInstance, []string{"rs777", "22:30"}, outputs["variant_ids"])
	require.Equal(testInstance, configuration["contexts_file"], outputs["contexts_file"])

	records, readError := seqcontext.ReadContexts(configuration["contexts_file"].(string))
	require.NoError(testInstance, readError)
	require.Len(testInstance, records, 2)

	firstRecord := records[0]
	require.Equal(testInstance, "rs777", firstRecord.VariantIdentifier)
	require.Equal(testInstance, "22", firstRecord.Chromosome)
	require.Equal(testInstance, 25, firstRecord.Position)
	require.Equal(testInstance, "AF=0.0002;CSQ=missense_variant", firstRecord.Info)
	require.Equal(testInstance, testWindowSizeConstant, firstRecord.WindowSize)
	require.Len(testInstance, firstRecord.ReferenceSequence, 2*testWindowSizeConstant+1)
	require.Len(testInstance, firstRecord.AlternateSequence, 2*testWindowSizeConstant+1)
	require.Equal(testInstance, byte('C'), firstRecord.ReferenceSequence[testWindowSizeConstant])
	require.Equal(testInstance, byte('A'), firstRecord.AlternateSequence[testWindowSizeConstant])
}

func TestRunnerSkipsVariantsWithoutWindows(testInstance *testing.T) {
	variantsPath := writeFixture(testInstance, "variants.vcf", "##fileformat=VCFv4.2\n"+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"+
		"22\t25\trs777\tC\tA\t90\tPASS\tAF=0.0002\n"+
		"99\t10\trs888\tA\tT\t90\tPASS\tAF=0.0001\n")
	referencePath := writeFixture(testInstance, "genome.fa", referenceFixtureConstant)
	configuration := contextConfiguration(variantsPath, referencePath, testInstance.TempDir())

	runner := seqcontext.NewRunner(seqcontext.Dependencies{})
	outputs, invokeError := runner.Invoke(context.Background(), configuration, stubEnvironment{})
	require.NoError(testInstance, invokeError)

	require.Equal(testInstance, 1, outputs["context_count"])
	require.Equal(testInstance, []string{"rs777"}, outputs["variant_ids"])
}

func TestRunnerFallsBackToMockSequences(testInstance *testing.T) {
	variantsPath := writeFixture(testInstance, "variants.vcf", variantsFixtureConstant)
	absentReference := filepath.Join(testInstance.TempDir(), "missing.fa")
	configuration := contextConfiguration(variantsPath, absentReference, testInstance.TempDir())

	runner := seqcontext.NewRunner(seqcontext.Dependencies{})
	outputs, invokeError := runner.Invoke(context.Background(), configuration, stubEnvironment{})
	require.NoError(testInstance, invokeError)
	require.Equal(testInstance, 2, outputs["context_count"])

	records, readError := seqcontext.ReadContexts(configuration["contexts_file"].(string))
	require.NoError(testInstance, readError)
	require.Len(testInstance, records[0].ReferenceSequence, 2*testWindowSizeConstant+1)

	repeatOutputs, repeatError := runner.Invoke(context.Background(), configuration, stubEnvironment{})
	require.NoError(testInstance, repeatError)
	require.Equal(testInstance, outputs["context_count"], repeatOutputs["context_count"])

	repeatRecords, repeatReadError := seqcontext.ReadContexts(configuration["contexts_file"].(string))
	require.NoError(testInstance, repeatReadError)
	require.Equal(testInstance, records, repeatRecords)
}

func TestRunnerValidatesConfiguration(testInstance *testing.T) {
	variantsPath := writeFixture(testInstance, "variants.vcf", variantsFixtureConstant)
	referencePath := writeFixture(testInstance, "genome.fa", referenceFixtureConstant)

	testCases := []struct {
		name            string
		mutate          func(configuration map[string]any)
		expectedMessage string
	}{
		{
			name:            "missing_variants_file",
			mutate:          func(configuration map[string]any) { delete(configuration, "variants_file") },
			expectedMessage: "variants_file",
		},
		{
			name:            "missing_contexts_file",
			mutate:          func(configuration map[string]any) { delete(configuration, "contexts_file") },
			expectedMessage: "contexts_file",
		},
		{
			name:            "non_positive_window",
			mutate:          func(configuration map[string]any) { configuration["window_size"] = 0 },
			expectedMessage: "window_size",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			configuration := contextConfiguration(variantsPath, referencePath, subTest.TempDir())
			testCase.mutate(configuration)

			runner := seqcontext.NewRunner(seqcontext.Dependencies{})
			_, invokeError := runner.Invoke(context.Background(), configuration, stubEnvironment{})
			require.Error(subTest, invokeError)
			require.Contains(subTest, invokeError.Error(), testCase.expectedMessage)
		})
	}
}

func TestReadContextsReportsMalformedLines(testInstance *testing.T) {
	contextsPath := writeFixture(testInstance, "contexts.jsonl", "{\"variant_id\":\"rs1\"}\nnot-json\n")

	_, readError := seqcontext.ReadContexts(contextsPath)
	require.Error(testInstance, readError)
	require.Contains(testInstance, readError.Error(), "line 2")
}

func TestWriteContextsRoundTrip(testInstance *testing.T) {
	contextsPath := filepath.Join(testInstance.TempDir(), "nested", "contexts.jsonl")
	written := []seqcontext.ContextRecord{
		{VariantIdentifier: "rs1", Chromosome: "22", Position: 25, Reference: "C", Alternate: "A", Info: "AF=0.1", ReferenceSequence: "ACGTC", AlternateSequence: "ACGTA", WindowSize: 2},
	}
	require.NoError(testInstance, seqcontext.WriteContexts(contextsPath, written))

	loaded, readError := seqcontext.ReadContexts(contextsPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, written, loaded)
}
