package critic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// ReportFileName is the conventional findings file name inside a run directory.
	ReportFileName = "critic_report.yaml"

	reportFilePermissionsConstant   = 0o644
	reportMarshalTemplateConstant   = "unable to encode findings report: %w"
	reportWriteTemplateConstant     = "unable to write findings report to %s: %w"
	reportReadTemplateConstant      = "unable to read findings report from %s: %w"
	reportUnmarshalTemplateConstant = "unable to decode findings report from %s: %w"
)

// StoreReport writes the findings report to the provided path.
func StoreReport(report FindingsReport, filePath string) error {
	encoded, marshalError := yaml.Marshal(report)
	if marshalError != nil {
		return fmt.Errorf(reportMarshalTemplateConstant, marshalError)
	}
	if writeError := os.WriteFile(filePath, encoded, reportFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(reportWriteTemplateConstant, filePath, writeError)
	}
	return nil
}

// LoadReport reads a findings report previously written by StoreReport.
func LoadReport(filePath string) (FindingsReport, error) {
	encoded, readError := os.ReadFile(filePath)
	if readError != nil {
		return FindingsReport{}, fmt.Errorf(reportReadTemplateConstant, filePath, readError)
	}
	var report FindingsReport
	if unmarshalError := yaml.Unmarshal(encoded, &report); unmarshalError != nil {
		return FindingsReport{}, fmt.Errorf(reportUnmarshalTemplateConstant, filePath, unmarshalError)
	}
	return report, nil
}
