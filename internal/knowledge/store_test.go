package knowledge_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/knowledge"
)

const (
	leukodystrophyDiseaseConstant = "Metachromatic leukodystrophy"
	breastCancerDiseaseConstant   = "Breast-ovarian cancer, familial 1"
	lynchSyndromeDiseaseConstant  = "Lynch syndrome"
	pathogenicConstant            = "Pathogenic"
	benignConstant                = "Benign"
)

func openTestStore(testInstance *testing.T) *knowledge.Store {
	testInstance.Helper()
	store, openError := knowledge.Open(filepath.Join(testInstance.TempDir(), "knowledge"))
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { store.Close() })
	return store
}

func TestVariantKeyStripsChromosomePrefix(testInstance *testing.T) {
	require.Equal(testInstance, "17:43094464:A:G", knowledge.VariantKey("chr17", 43094464, "A", "G"))
	require.Equal(testInstance, "17:43094464:A:G", knowledge.VariantKey("17", 43094464, "A", "G"))
}

func TestStoreRoundTrip(testInstance *testing.T) {
	store := openTestStore(testInstance)

	storedRecord := knowledge.ClinVarRecord{
		Chromosome:           "22",
		Position:             51063477,
		Reference:            "G",
		Alternate:            "A",
		VariantIdentifier:    "VCV000002",
		ClinicalSignificance: pathogenicConstant,
		DiseaseName:          leukodystrophyDiseaseConstant,
		Info:                 "CLNSIG=Pathogenic",
	}
	require.NoError(testInstance, store.Put(storedRecord))

	loadedRecord, found, lookupError := store.Lookup("chr22", 51063477, "G", "A")
	require.NoError(testInstance, lookupError)
	require.True(testInstance, found)
	require.Equal(testInstance, storedRecord, loadedRecord)

	_, found, lookupError = store.Lookup("22", 51063477, "G", "C")
	require.NoError(testInstance, lookupError)
	require.False(testInstance, found)

	recordCount, countError := store.Count()
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, recordCount)
}

func TestStoreSurvivesReopen(testInstance *testing.T) {
	storeDirectory := filepath.Join(testInstance.TempDir(), "knowledge")

	store, openError := knowledge.Open(storeDirectory)
	require.NoError(testInstance, openError)
	require.NoError(testInstance, store.Put(knowledge.ClinVarRecord{
		Chromosome:           "13",
		Position:             32340301,
		Reference:            "T",
		Alternate:            "C",
		ClinicalSignificance: benignConstant,
		DiseaseName:          breastCancerDiseaseConstant,
	}))
	require.NoError(testInstance, store.Close())

	reopenedStore, reopenError := knowledge.Open(storeDirectory)
	require.NoError(testInstance, reopenError)
	defer reopenedStore.Close()

	loadedRecord, found, lookupError := reopenedStore.Lookup("13", 32340301, "T", "C")
	require.NoError(testInstance, lookupError)
	require.True(testInstance, found)
	require.Equal(testInstance, breastCancerDiseaseConstant, loadedRecord.DiseaseName)
}

func TestSearchDiseasesRanksByPhenotype(testInstance *testing.T) {
	store := openTestStore(testInstance)

	require.NoError(testInstance, store.PutBatch([]knowledge.ClinVarRecord{
		{Chromosome: "17", Position: 43094464, Reference: "A", Alternate: "G", ClinicalSignificance: pathogenicConstant, DiseaseName: breastCancerDiseaseConstant},
		{Chromosome: "2", Position: 47414420, Reference: "C", Alternate: "T", ClinicalSignificance: pathogenicConstant, DiseaseName: lynchSyndromeDiseaseConstant},
		{Chromosome: "7", Position: 117559590, Reference: "G", Alternate: "A", ClinicalSignificance: benignConstant},
	}))

	matches, searchError := store.SearchDiseases("hereditary breast cancer", 10)
	require.NoError(testInstance, searchError)
	require.Len(testInstance, matches, 1)
	require.Equal(testInstance, "17:43094464:A:G", matches[0].VariantKey)
	require.Equal(testInstance, breastCancerDiseaseConstant, matches[0].DiseaseName)
	require.Equal(testInstance, pathogenicConstant, matches[0].Significance)
	require.Equal(testInstance, float64(1), matches[0].Similarity)
}

func TestSearchDiseasesSkipsBlankQueries(testInstance *testing.T) {
	store := openTestStore(testInstance)

	matches, searchError := store.SearchDiseases("  ", 5)
	require.NoError(testInstance, searchError)
	require.Empty(testInstance, matches)

	matches, searchError = store.SearchDiseases("cancer", 0)
	require.NoError(testInstance, searchError)
	require.Empty(testInstance, matches)
}

func writeClinVarFixture(testInstance *testing.T) string {
	testInstance.Helper()
	fixtureLines := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"22\t51063477\t3000\tG\tA\t.\t.\tCLNSIG=Pathogenic;CLNDN=Metachromatic_leukodystrophy\n" +
		"22\t51065338\t3001\tC\tT\t.\t.\tCLNSIG=Benign;CLNDN=not_provided\n" +
		"17\t43094464\t3002\tA\tG\t.\t.\tCLNDN=Breast-ovarian_cancer\n"
	fixturePath := filepath.Join(testInstance.TempDir(), "clinvar.vcf")
	require.NoError(testInstance, os.WriteFile(fixturePath, []byte(fixtureLines), 0o644))
	return fixturePath
}

func TestImportClinVarVCFFiltersAndNormalizes(testInstance *testing.T) {
	store := openTestStore(testInstance)
	fixturePath := writeClinVarFixture(testInstance)

	summary, importError := store.ImportClinVarVCF(fixturePath, knowledge.ImportOptions{ChromosomeFilter: "22"})
	require.NoError(testInstance, importError)
	require.Equal(testInstance, 2, summary.ImportedCount)
	require.Equal(testInstance, 1, summary.SkippedCount)

	loadedRecord, found, lookupError := store.Lookup("22", 51063477, "G", "A")
	require.NoError(testInstance, lookupError)
	require.True(testInstance, found)
	require.Equal(testInstance, "3000", loadedRecord.VariantIdentifier)
	require.Equal(testInstance, pathogenicConstant, loadedRecord.ClinicalSignificance)
	require.Equal(testInstance, leukodystrophyDiseaseConstant, loadedRecord.DiseaseName)

	_, found, lookupError = store.Lookup("17", 43094464, "A", "G")
	require.NoError(testInstance, lookupError)
	require.False(testInstance, found)
}

func TestImportClinVarVCFDefaultsMissingSignificance(testInstance *testing.T) {
	store := openTestStore(testInstance)
	fixturePath := writeClinVarFixture(testInstance)

	_, importError := store.ImportClinVarVCF(fixturePath, knowledge.ImportOptions{})
	require.NoError(testInstance, importError)

	loadedRecord, found, lookupError := store.Lookup("17", 43094464, "A", "G")
	require.NoError(testInstance, lookupError)
	require.True(testInstance, found)
	require.Equal(testInstance, "Unknown", loadedRecord.ClinicalSignificance)
	require.Equal(testInstance, "Breast-ovarian cancer", loadedRecord.DiseaseName)
}

func TestImportClinVarVCFHonorsRecordLimit(testInstance *testing.T) {
	store := openTestStore(testInstance)
	fixturePath := writeClinVarFixture(testInstance)

	summary, importError := store.ImportClinVarVCF(fixturePath, knowledge.ImportOptions{RecordLimit: 2})
	require.NoError(testInstance, importError)
	require.Equal(testInstance, 2, summary.ImportedCount)

	recordCount, countError := store.Count()
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 2, recordCount)
}

func TestImportClinVarVCFReportsMissingFile(testInstance *testing.T) {
	store := openTestStore(testInstance)

	_, importError := store.ImportClinVarVCF(filepath.Join(testInstance.TempDir(), "absent.vcf"), knowledge.ImportOptions{})
	require.Error(testInstance, importError)
	require.Contains(testInstance, importError.Error(), "open clinvar file")
}

func TestSearchDiseasesHonorsLimit(testInstance *testing.T) {
	store := openTestStore(testInstance)

	records := make([]knowledge.ClinVarRecord, 0, 4)
	for recordIndex := 0; recordIndex < 4; recordIndex++ {
		records = append(records, knowledge.ClinVarRecord{
			Chromosome:           "1",
			Position:             1000 + recordIndex,
			Reference:            "A",
			Alternate:            "T",
			ClinicalSignificance: pathogenicConstant,
			DiseaseName:          fmt.Sprintf("Familial cancer syndrome %d", recordIndex),
		})
	}
	require.NoError(testInstance, store.PutBatch(records))

	matches, searchError := store.SearchDiseases("cancer", 2)
	require.NoError(testInstance, searchError)
	require.Len(testInstance, matches, 2)
}
