package knowledge_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/knowledge"
)

const (
	hbocDiseaseConstant       = "Hereditary breast and ovarian cancer syndrome"
	liFraumeniDiseaseConstant = "Li-Fraumeni syndrome"
	brcaVariantKeyConstant    = "17:43045677:G:A"
)

func writeCatalogFixture(testInstance *testing.T, lines ...string) string {
	testInstance.Helper()
	catalogPath := filepath.Join(testInstance.TempDir(), "catalog.jsonl")
	require.NoError(testInstance, os.WriteFile(catalogPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return catalogPath
}

func TestImportDiseaseCatalogEnrichesSearch(testInstance *testing.T) {
	store := openTestStore(testInstance)
	require.NoError(testInstance, store.Put(knowledge.ClinVarRecord{
		Chromosome:           "17",
		Position:             43045677,
		Reference:            "G",
		Alternate:            "A",
		ClinicalSignificance: pathogenicConstant,
		DiseaseName:          breastCancerDiseaseConstant,
	}))

	catalogPath := writeCatalogFixture(testInstance,
		`{"disease_name":"`+hbocDiseaseConstant+`","synonyms":["HBOC"],"description":"BRCA1 and BRCA2 associated cancer predisposition","variant_keys":["`+brcaVariantKeyConstant+`"]}`,
		"",
		`{"disease_name":"`+liFraumeniDiseaseConstant+`","description":"TP53 associated cancer predisposition"}`,
	)

	importedCount, importError := store.ImportDiseaseCatalogJSONL(catalogPath)
	require.NoError(testInstance, importError)
	require.Equal(testInstance, 2, importedCount)

	matches, searchError := store.SearchDiseases("hereditary BRCA1 breast cancer", 5)
	require.NoError(testInstance, searchError)
	require.NotEmpty(testInstance, matches)
	require.Equal(testInstance, brcaVariantKeyConstant, matches[0].VariantKey)
	require.Equal(testInstance, hbocDiseaseConstant, matches[0].DiseaseName)
	require.Equal(testInstance, pathogenicConstant, matches[0].Significance)

	standaloneMatches, standaloneError := store.SearchDiseases("Li-Fraumeni TP53", 5)
	require.NoError(testInstance, standaloneError)
	require.NotEmpty(testInstance, standaloneMatches)
	require.Equal(testInstance, "catalog:3", standaloneMatches[0].VariantKey)
	require.Equal(testInstance, liFraumeniDiseaseConstant, standaloneMatches[0].DiseaseName)
	require.Empty(testInstance, standaloneMatches[0].Significance)
}

func TestImportDiseaseCatalogSkipsUnnamedEntries(testInstance *testing.T) {
	store := openTestStore(testInstance)

	catalogPath := writeCatalogFixture(testInstance,
		`{"description":"entry without a disease name"}`,
		`{"disease_name":"`+lynchSyndromeDiseaseConstant+`"}`,
	)

	importedCount, importError := store.ImportDiseaseCatalogJSONL(catalogPath)
	require.NoError(testInstance, importError)
	require.Equal(testInstance, 1, importedCount)
}

func TestImportDiseaseCatalogReportsMalformedLines(testInstance *testing.T) {
	store := openTestStore(testInstance)

	catalogPath := writeCatalogFixture(testInstance,
		`{"disease_name":"`+lynchSyndromeDiseaseConstant+`"}`,
		`{not json`,
	)

	_, importError := store.ImportDiseaseCatalogJSONL(catalogPath)
	require.Error(testInstance, importError)
	require.Contains(testInstance, importError.Error(), "line 2")
}

func TestImportDiseaseCatalogMissingFile(testInstance *testing.T) {
	store := openTestStore(testInstance)

	_, importError := store.ImportDiseaseCatalogJSONL(filepath.Join(testInstance.TempDir(), "absent.jsonl"))
	require.Error(testInstance, importError)
}
