package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	defaultMyVariantBaseURLConstant = "https://myvariant.info/v1"
	defaultGenomeAssemblyConstant   = "hg38"
	myVariantFieldsConstant         = "clinvar,gnomad_exome,gnomad_genome,dbnsfp,cadd"
	variantEndpointTemplateConstant = "/variant/%s"
	hgvsIdentifierTemplateConstant  = "chr%s:g.%d%s>%s"
	assemblyParameterConstant       = "assembly"
	fieldsParameterConstant         = "fields"
	remoteRequestTimeoutConstant    = 30 * time.Second
	remoteRetryCountConstant        = 3
	remoteRetryWaitConstant         = 500 * time.Millisecond
	remoteQueryTemplateConstant     = "query remote knowledge for %s: %w"
	remoteStatusTemplateConstant    = "remote knowledge returned status %d for %s"
)

// RemoteConfig configures the remote annotation client.
type RemoteConfig struct {
	BaseURL        string
	GenomeAssembly string
	RequestTimeout time.Duration
}

// RemoteClinVar is the ClinVar assertion reported by the remote service.
type RemoteClinVar struct {
	VariantIdentifier    string
	ClinicalSignificance string
	DiseaseName          string
	ReviewStatus         string
}

// RemoteFrequency is the population frequency reported by the remote
// service.
type RemoteFrequency struct {
	AlleleFrequency float64
	AlleleCount     int
	AlleleNumber    int
}

// RemotePredictions are in-silico predictions reported by the remote
// service.
type RemotePredictions struct {
	SIFT       string
	PolyPhen   string
	REVELScore float64
}

// RemoteEvidence aggregates what the remote service knows about one
// variant. Sections are nil when the service reports nothing.
type RemoteEvidence struct {
	ClinVar     *RemoteClinVar
	GnomAD      *RemoteFrequency
	Predictions *RemotePredictions
}

// Empty reports whether the remote service knew nothing.
func (evidence RemoteEvidence) Empty() bool {
	return evidence.ClinVar == nil && evidence.GnomAD == nil && evidence.Predictions == nil
}

// RemoteClient queries a MyVariant.info style annotation service.
type RemoteClient struct {
	httpClient     *resty.Client
	genomeAssembly string
}

// NewRemoteClient builds a client from the provided configuration,
// filling defaults for empty fields.
func NewRemoteClient(configuration RemoteConfig) *RemoteClient {
	baseURL := strings.TrimRight(configuration.BaseURL, "/")
	if len(baseURL) == 0 {
		baseURL = defaultMyVariantBaseURLConstant
	}
	genomeAssembly := configuration.GenomeAssembly
	if len(genomeAssembly) == 0 {
		genomeAssembly = defaultGenomeAssemblyConstant
	}
	requestTimeout := configuration.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = remoteRequestTimeoutConstant
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(remoteRetryCountConstant).
		SetRetryWaitTime(remoteRetryWaitConstant)

	return &RemoteClient{httpClient: httpClient, genomeAssembly: genomeAssembly}
}

// Close releases the underlying transport.
func (client *RemoteClient) Close() error {
	return client.httpClient.Close()
}

// QueryVariant fetches remote annotations for one variant. Variants the
// service has never seen yield empty evidence without an error.
func (client *RemoteClient) QueryVariant(executionContext context.Context, chromosome string, position int, referenceAllele string, alternateAllele string) (RemoteEvidence, error) {
	normalizedChromosome := strings.TrimPrefix(chromosome, chromosomePrefixConstant)
	hgvsIdentifier := fmt.Sprintf(hgvsIdentifierTemplateConstant, normalizedChromosome, position, referenceAllele, alternateAllele)

	var payload map[string]any
	response, requestError := client.httpClient.R().
		SetContext(executionContext).
		SetQueryParam(assemblyParameterConstant, client.genomeAssembly).
		SetQueryParam(fieldsParameterConstant, myVariantFieldsConstant).
		SetResult(&payload).
		Get(fmt.Sprintf(variantEndpointTemplateConstant, url.PathEscape(hgvsIdentifier)))
	if requestError != nil {
		return RemoteEvidence{}, fmt.Errorf(remoteQueryTemplateConstant, hgvsIdentifier, requestError)
	}
	if response.StatusCode() == http.StatusNotFound {
		return RemoteEvidence{}, nil
	}
	if response.IsError() {
		return RemoteEvidence{}, fmt.Errorf(remoteStatusTemplateConstant, response.StatusCode(), hgvsIdentifier)
	}

	return parseRemoteEvidence(payload), nil
}

// The annotation service mixes scalars and lists for the same field
// depending on the variant, so parsing probes each shape in turn.
func parseRemoteEvidence(payload map[string]any) RemoteEvidence {
	evidence := RemoteEvidence{}

	if clinvarSection, found := sectionMap(payload, "clinvar"); found {
		remoteClinVar := RemoteClinVar{VariantIdentifier: stringField(clinvarSection, "variant_id")}
		if assertion, assertionFound := firstSectionMap(clinvarSection, "rcv"); assertionFound {
			remoteClinVar.ClinicalSignificance = stringField(assertion, "clinical_significance")
			remoteClinVar.ReviewStatus = stringField(assertion, "review_status")
			remoteClinVar.DiseaseName = conditionName(assertion["conditions"])
		}
		evidence.ClinVar = &remoteClinVar
	}

	if frequencySection, found := sectionMap(payload, "gnomad_genome"); found {
		evidence.GnomAD = &RemoteFrequency{
			AlleleFrequency: nestedFloatField(frequencySection, "af", "af"),
			AlleleCount:     int(nestedFloatField(frequencySection, "ac", "ac")),
			AlleleNumber:    int(nestedFloatField(frequencySection, "an", "an")),
		}
	}

	if predictionSection, found := sectionMap(payload, "dbnsfp"); found {
		evidence.Predictions = &RemotePredictions{
			SIFT:       nestedStringField(predictionSection, "sift", "pred"),
			PolyPhen:   nestedStringField(predictionSection, "polyphen2_hdiv", "pred"),
			REVELScore: nestedFloatField(predictionSection, "revel", "score"),
		}
	}

	return evidence
}

func sectionMap(payload map[string]any, key string) (map[string]any, bool) {
	return asMap(payload[key])
}

func firstSectionMap(payload map[string]any, key string) (map[string]any, bool) {
	return asMap(firstElement(payload[key]))
}

func asMap(value any) (map[string]any, bool) {
	mapped, ok := value.(map[string]any)
	return mapped, ok
}

func firstElement(value any) any {
	if elements, ok := value.([]any); ok {
		if len(elements) == 0 {
			return nil
		}
		return elements[0]
	}
	return value
}

func conditionName(conditions any) string {
	switch typedConditions := firstElement(conditions).(type) {
	case map[string]any:
		return stringField(typedConditions, "name")
	case string:
		return typedConditions
	default:
		return ""
	}
}

func stringField(section map[string]any, key string) string {
	if text, ok := section[key].(string); ok {
		return text
	}
	return ""
}

func nestedStringField(section map[string]any, key string, nestedKey string) string {
	nestedSection, found := firstSectionMap(section, key)
	if !found {
		return ""
	}
	if text, ok := firstElement(nestedSection[nestedKey]).(string); ok {
		return text
	}
	return ""
}

func nestedFloatField(section map[string]any, key string, nestedKey string) float64 {
	nestedSection, found := firstSectionMap(section, key)
	if !found {
		return 0
	}
	if number, ok := firstElement(nestedSection[nestedKey]).(float64); ok {
		return number
	}
	return 0
}
