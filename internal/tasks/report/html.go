package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/tyemirov/genopipe/internal/tasks/evidence"
	"github.com/tyemirov/genopipe/internal/tasks/scoring"
)

const (
	pageTemplateNameConstant   = "report_page"
	renderPageTemplateConstant = "render html report: %w"
)

var reportPageTemplate = template.Must(template.New(pageTemplateNameConstant).Parse(pageTemplateConstant))

// reportPageView is the data the HTML page template renders.
type reportPageView struct {
	SampleIdentifier string
	Phenotype        string
	GeneratedAt      string
	TotalVariants    int
	HighCount        int
	ModerateCount    int
	LowCount         int
	Variants         []variantView
	Recommendations  []recommendationView
}

type variantView struct {
	Identifier    string
	Locus         string
	Reference     string
	Alternate     string
	Score         string
	BadgeClass    string
	BadgeLabel    string
	Explanation   string
	SourceNames   string
	EvidenceLines []string
}

type recommendationView struct {
	Title string
	Body  string
}

// renderPageReport renders the standalone HTML report page. Unlike the
// Markdown renderer the page always carries every section.
func renderPageReport(content reportContent) (string, error) {
	var buffer bytes.Buffer
	if executeError := reportPageTemplate.Execute(&buffer, buildPageView(content)); executeError != nil {
		return "", fmt.Errorf(renderPageTemplateConstant, executeError)
	}
	return buffer.String(), nil
}

func buildPageView(content reportContent) reportPageView {
	highCount, moderateCount, lowCount := impactCounts(content.Rows)
	return reportPageView{
		SampleIdentifier: content.SampleIdentifier,
		Phenotype:        content.Phenotype,
		GeneratedAt:      content.GeneratedAt.Format(timestampLayoutConstant),
		TotalVariants:    len(content.Rows),
		HighCount:        highCount,
		ModerateCount:    moderateCount,
		LowCount:         lowCount,
		Variants:         buildVariantViews(content),
		Recommendations:  pageRecommendations(highCount, moderateCount),
	}
}

func buildVariantViews(content reportContent) []variantView {
	views := make([]variantView, 0, content.TopVariants)
	for _, row := range topScoredRows(content.Rows, content.TopVariants) {
		variantEvidence := content.Evidence[row.VariantIdentifier]
		views = append(views, variantView{
			Identifier:    row.VariantIdentifier,
			Locus:         fmt.Sprintf("%s:%d", row.Chromosome, row.Position),
			Reference:     row.Reference,
			Alternate:     row.Alternate,
			Score:         fmt.Sprintf("%.2f", row.FinalScore),
			BadgeClass:    badgeClass(row.ImpactLevel),
			BadgeLabel:    badgeLabel(row.ImpactLevel),
			Explanation:   row.Explanation,
			SourceNames:   strings.Join(nonPredictionSourceNames(variantEvidence.Sources), ", "),
			EvidenceLines: sourceDetailLines(variantEvidence.Sources),
		})
	}
	return views
}

func badgeClass(impactLevel string) string {
	switch impactLevel {
	case scoring.ImpactLevelHigh:
		return "high"
	case scoring.ImpactLevelModerate:
		return "moderate"
	default:
		return "low"
	}
}

func badgeLabel(impactLevel string) string {
	switch impactLevel {
	case scoring.ImpactLevelHigh:
		return "High risk"
	case scoring.ImpactLevelModerate:
		return "Moderate risk"
	default:
		return "Low risk"
	}
}

func nonPredictionSourceNames(sources []evidence.Source) []string {
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		if source.Name == evidence.SourceNamePrediction {
			continue
		}
		names = append(names, source.Name)
	}
	return names
}

func sourceDetailLines(sources []evidence.Source) []string {
	lines := make([]string, 0, len(sources))
	for _, source := range sources {
		lines = append(lines, formatSourceDetail(source))
	}
	return lines
}

func formatSourceDetail(source evidence.Source) string {
	switch source.Name {
	case evidence.SourceNameClinVar:
		return clinvarDetail(source.Data)
	case evidence.SourceNameGnomAD:
		return gnomadDetail(source.Data)
	case evidence.SourceNameOMIM:
		return omimDetail(source.Data)
	case evidence.SourceNameDbNSFP:
		return fmt.Sprintf("dbNSFP: SIFT=%s, PolyPhen=%s, REVEL=%s",
			scoreText(source.Data["sift"]),
			scoreText(source.Data["polyphen"]),
			scoreText(source.Data["revel_score"]),
		)
	case evidence.SourceNamePhenotype:
		return fmt.Sprintf("Phenotype match: %s (similarity %s)",
			stringText(source.Data["disease_name"]),
			scoreText(source.Data["similarity"]),
		)
	case evidence.SourceNamePrediction:
		return fmt.Sprintf("Prediction: score=%s, impact=%s",
			scoreText(source.Data["final_score"]),
			stringText(source.Data["impact_level"]),
		)
	default:
		return fmt.Sprintf("%s: %v", source.Name, source.Data)
	}
}

func clinvarDetail(data map[string]any) string {
	if found, isFound := data["found"].(bool); !isFound || !found {
		message := stringText(data["message"])
		if message == "N/A" {
			message = "Not found"
		}
		return fmt.Sprintf("ClinVar: %s", message)
	}
	significance, isSignificance := data["clinical_significance"].(string)
	if !isSignificance || len(significance) == 0 {
		significance = stringText(data["significance"])
	}
	return fmt.Sprintf("ClinVar: %s; %s", significance, stringText(data["disease_name"]))
}

func gnomadDetail(data map[string]any) string {
	if found, isFound := data["found"].(bool); isFound && found {
		return fmt.Sprintf("gnomAD: AF=%s", frequencyText(data["allele_frequency"]))
	}
	return "gnomAD: Not found"
}

func omimDetail(data map[string]any) string {
	found, isFound := data["found"].(bool)
	if !isFound || !found {
		return "OMIM: Not found"
	}
	diseases := diseaseList(data["diseases"])
	if len(diseases) == 0 {
		return "OMIM: No disease link"
	}
	return fmt.Sprintf("OMIM: %s", strings.Join(diseases, ", "))
}

// diseaseList accepts both in-process string slices and the []any form
// produced by a JSON round trip.
func diseaseList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		diseases := make([]string, 0, len(typed))
		for _, entry := range typed {
			if text, isText := entry.(string); isText {
				diseases = append(diseases, text)
			}
		}
		return diseases
	default:
		return nil
	}
}

func stringText(value any) string {
	text, isText := value.(string)
	if !isText || len(text) == 0 {
		return "N/A"
	}
	return text
}

func scoreText(value any) string {
	number, isNumber := value.(float64)
	if !isNumber {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", number)
}

func frequencyText(value any) string {
	number, isNumber := value.(float64)
	if !isNumber {
		return "0"
	}
	return fmt.Sprintf("%.6g", number)
}

func pageRecommendations(highCount int, moderateCount int) []recommendationView {
	recommendations := []recommendationView{}
	if highCount > 0 {
		recommendations = append(recommendations,
			recommendationView{Title: "Consult a genetic counselor", Body: "High-risk variants were found; seek a professional interpretation."},
			recommendationView{Title: "Order clinical validation", Body: "Confirm each high-risk site with Sanger sequencing."},
		)
	}
	if moderateCount > 0 {
		recommendations = append(recommendations,
			recommendationView{Title: "Watch for related symptoms", Body: "Note any features or symptoms associated with the affected genes."},
		)
	}
	return append(recommendations,
		recommendationView{Title: "Keep healthy habits", Body: "Genetics is one part of health; lifestyle matters just as much."},
		recommendationView{Title: "Schedule regular checkups", Body: "A comprehensive annual exam is recommended."},
	)
}

const pageTemplateConstant = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Genomic Variant Analysis Report</title>
<style>
:root {
  --primary-color: #2c3e50;
  --accent-color: #3498db;
  --danger-color: #e74c3c;
  --warning-color: #f1c40f;
  --success-color: #27ae60;
}
body { font-family: "Helvetica Neue", Arial, sans-serif; background: #f8f9fa; color: #333; line-height: 1.6; margin: 0; padding: 20px; }
.container { max-width: 1000px; margin: 0 auto; }
.header { text-align: center; padding: 40px 0; background: linear-gradient(135deg, var(--primary-color), var(--accent-color)); color: white; border-radius: 12px; margin-bottom: 30px; }
.header h1 { margin: 0; font-size: 2.5em; }
.header p { opacity: 0.8; margin-top: 10px; }
.card { background: #ffffff; padding: 30px; border-radius: 12px; box-shadow: 0 2px 4px rgba(0,0,0,0.05); margin-bottom: 25px; }
.card h2 { color: var(--primary-color); border-bottom: 2px solid #f0f0f0; padding-bottom: 10px; margin-top: 0; }
.summary-grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 20px; text-align: center; }
.stat-box { padding: 20px; border-radius: 8px; background: #f8f9fa; }
.stat-value { font-size: 2.5em; font-weight: bold; color: var(--accent-color); }
.stat-value.danger { color: var(--danger-color); }
.stat-value.safe { color: var(--success-color); }
.note { margin-top: 20px; padding: 15px; background: #fff3cd; border-radius: 6px; color: #856404; }
.variant-item { border: 1px solid #eee; border-radius: 8px; padding: 20px; margin-bottom: 15px; display: flex; flex-wrap: wrap; justify-content: space-between; align-items: center; }
.variant-item.high-impact { border-left: 5px solid var(--danger-color); }
.variant-info h3 { margin: 0 0 5px 0; }
.locus { font-weight: normal; font-size: 0.8em; color: #888; }
.variant-meta { color: #666; font-size: 0.9em; }
.variant-score { text-align: right; }
.score-caption { font-size: 0.8em; color: #666; margin-top: 5px; }
.badge { padding: 5px 12px; border-radius: 20px; font-size: 0.85em; font-weight: bold; color: white; display: inline-block; }
.badge.high { background: var(--danger-color); }
.badge.moderate { background: var(--warning-color); color: #333; }
.badge.low { background: var(--success-color); }
.variant-details { width: 100%; margin-top: 10px; }
.evidence-box { margin-top: 12px; padding: 12px 16px; background: #f7fbff; border: 1px solid #e3effb; border-radius: 8px; }
.evidence-box h4 { margin: 0 0 6px 0; font-size: 0.95em; color: var(--primary-color); }
.evidence-list { margin: 6px 0 0 18px; padding: 0; color: #444; font-size: 0.9em; }
.explanation-box { margin-top: 12px; padding: 12px 16px; background: #fff8e8; border: 1px solid #ffe3b3; border-radius: 8px; font-size: 0.9em; color: #5a4a2c; }
.recommendation-list li { margin-bottom: 10px; padding-left: 10px; }
.glossary { font-size: 0.9em; color: #666; }
footer { text-align: center; color: #999; margin-top: 40px; }
</style>
</head>
<body>
<div class="container">
  <header class="header">
    <h1>Variant Analysis Briefing</h1>
    <p>{{if .SampleIdentifier}}Sample {{.SampleIdentifier}} | {{end}}Generated {{.GeneratedAt}}</p>
  </header>

  <div class="card">
    <h2>Results Overview</h2>
    <p>This analysis covered <strong>{{.TotalVariants}}</strong> variant sites.{{if .Phenotype}} Case phenotype: {{.Phenotype}}.{{end}}</p>
    <div class="summary-grid">
      <div class="stat-box"><div class="stat-value danger">{{.HighCount}}</div><div class="stat-label">High risk</div></div>
      <div class="stat-box"><div class="stat-value">{{.ModerateCount}}</div><div class="stat-label">Moderate risk</div></div>
      <div class="stat-box"><div class="stat-value safe">{{.LowCount}}</div><div class="stat-label">Low risk</div></div>
    </div>
    <div class="note">
      <strong>What do the risk levels mean?</strong>
      <ul>
        <li><strong>High</strong>: likely to change protein function, strongly linked to potential disease risk.</li>
        <li><strong>Moderate</strong>: some effect on protein function, worth reviewing against clinical symptoms.</li>
        <li><strong>Low</strong>: usually benign with little effect on health.</li>
      </ul>
    </div>
  </div>

  <div class="card">
    <h2>Key Findings</h2>
    <p>The variants below ranked highest for review:</p>
    {{range .Variants}}
    <div class="variant-item {{.BadgeClass}}-impact">
      <div class="variant-info">
        <h3>{{.Identifier}} <span class="locus">({{.Locus}})</span></h3>
        <div class="variant-meta">Change: <strong>{{.Reference}}</strong> &rarr; <strong>{{.Alternate}}</strong>{{if .SourceNames}}<br><small>Evidence sources: {{.SourceNames}}</small>{{end}}</div>
      </div>
      <div class="variant-score">
        <span class="badge {{.BadgeClass}}">{{.BadgeLabel}}</span>
        <div class="score-caption">Score: {{.Score}}</div>
      </div>
      <div class="variant-details">
        {{if .Explanation}}<div class="explanation-box"><strong>Score rationale:</strong> {{.Explanation}}</div>{{end}}
        {{if .EvidenceLines}}<div class="evidence-box">
          <h4>Evidence detail</h4>
          <ul class="evidence-list">
            {{range .EvidenceLines}}<li>{{.}}</li>
            {{end}}
          </ul>
        </div>{{end}}
      </div>
    </div>
    {{end}}
  </div>

  <div class="card">
    <h2>Next Steps</h2>
    <ul class="recommendation-list">
      {{range .Recommendations}}<li><strong>{{.Title}}</strong>: {{.Body}}</li>
      {{end}}
    </ul>
  </div>

  <div class="card glossary">
    <h3>Glossary</h3>
    <p><strong>Ref</strong>: the sequence most people carry at this position.</p>
    <p><strong>Alt</strong>: the sequence detected in this sample.</p>
    <p><strong>Score</strong>: model-predicted pathogenicity between 0 and 1; higher means riskier.</p>
  </div>

  <footer>
    <p>This report was generated automatically for research use only and is not a clinical diagnosis.</p>
  </footer>
</div>
</body>
</html>
`
