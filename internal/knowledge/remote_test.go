package knowledge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/genopipe/internal/knowledge"
)

const (
	annotatedVariantPathConstant = "/variant/chr22:g.51063477G>A"
	annotationPayloadConstant    = `{
		"_id": "chr22:g.51063477G>A",
		"clinvar": {
			"variant_id": "VCV000002",
			"rcv": [
				{
					"clinical_significance": "Pathogenic",
					"review_status": "criteria provided, multiple submitters",
					"conditions": [{"name": "Metachromatic leukodystrophy"}]
				}
			]
		},
		"gnomad_genome": {
			"af": {"af": 0.000123},
			"ac": {"ac": 7},
			"an": {"an": 56885}
		},
		"dbnsfp": {
			"sift": {"pred": ["D", "T"]},
			"polyphen2_hdiv": {"pred": "P"},
			"revel": {"score": 0.87}
		}
	}`
)

func newRemoteTestClient(testInstance *testing.T, handler http.HandlerFunc) *knowledge.RemoteClient {
	testInstance.Helper()
	server := httptest.NewServer(handler)
	testInstance.Cleanup(server.Close)

	client := knowledge.NewRemoteClient(knowledge.RemoteConfig{BaseURL: server.URL, RequestTimeout: 5 * time.Second})
	testInstance.Cleanup(func() { client.Close() })
	return client
}

func TestRemoteClientParsesAnnotations(testInstance *testing.T) {
	client := newRemoteTestClient(testInstance, func(writer http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, annotatedVariantPathConstant, request.URL.Path)
		require.Equal(testInstance, "hg38", request.URL.Query().Get("assembly"))
		require.Contains(testInstance, request.URL.Query().Get("fields"), "clinvar")
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(annotationPayloadConstant))
	})

	evidence, queryError := client.QueryVariant(context.Background(), "chr22", 51063477, "G", "A")
	require.NoError(testInstance, queryError)
	require.False(testInstance, evidence.Empty())

	require.NotNil(testInstance, evidence.ClinVar)
	require.Equal(testInstance, "VCV000002", evidence.ClinVar.VariantIdentifier)
	require.Equal(testInstance, "Pathogenic", evidence.ClinVar.ClinicalSignificance)
	require.Equal(testInstance, "Metachromatic leukodystrophy", evidence.ClinVar.DiseaseName)
	require.Equal(testInstance, "criteria provided, multiple submitters", evidence.ClinVar.ReviewStatus)

	require.NotNil(testInstance, evidence.GnomAD)
	require.InDelta(testInstance, 0.000123, evidence.GnomAD.AlleleFrequency, 1e-9)
	require.Equal(testInstance, 7, evidence.GnomAD.AlleleCount)
	require.Equal(testInstance, 56885, evidence.GnomAD.AlleleNumber)

	require.NotNil(testInstance, evidence.Predictions)
	require.Equal(testInstance, "D", evidence.Predictions.SIFT)
	require.Equal(testInstance, "P", evidence.Predictions.PolyPhen)
	require.InDelta(testInstance, 0.87, evidence.Predictions.REVELScore, 1e-9)
}

func TestRemoteClientReturnsEmptyForUnknownVariant(testInstance *testing.T) {
	client := newRemoteTestClient(testInstance, func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, `{"success": false, "error": "variant not found"}`, http.StatusNotFound)
	})

	evidence, queryError := client.QueryVariant(context.Background(), "1", 12345, "A", "T")
	require.NoError(testInstance, queryError)
	require.True(testInstance, evidence.Empty())
}

func TestRemoteClientReportsErrorStatus(testInstance *testing.T) {
	client := newRemoteTestClient(testInstance, func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "bad request", http.StatusBadRequest)
	})

	_, queryError := client.QueryVariant(context.Background(), "1", 12345, "A", "T")
	require.Error(testInstance, queryError)
	require.Contains(testInstance, queryError.Error(), "400")
}

func TestRemoteEvidenceEmpty(testInstance *testing.T) {
	require.True(testInstance, knowledge.RemoteEvidence{}.Empty())
	require.False(testInstance, knowledge.RemoteEvidence{ClinVar: &knowledge.RemoteClinVar{}}.Empty())
}
