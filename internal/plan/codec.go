package plan

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

const (
	planFilePermissionsConstant        = 0o644
	planMarshalErrorTemplateConstant   = "unable to encode plan: %w"
	planWriteErrorTemplateConstant     = "unable to write plan to %s: %w"
	planReadErrorTemplateConstant      = "unable to read plan from %s: %w"
	planDecodeErrorTemplateConstant    = "unable to decode plan from %s: %w"
	formatVersionErrorTemplateConstant = "%w: %q is not compatible with %s"
)

// Store persists the plan as a YAML document at the provided path.
func Store(analysisPlan *Plan, filePath string) error {
	documentBytes, marshalError := yaml.Marshal(analysisPlan)
	if marshalError != nil {
		return fmt.Errorf(planMarshalErrorTemplateConstant, marshalError)
	}
	if writeError := os.WriteFile(filePath, documentBytes, planFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(planWriteErrorTemplateConstant, filePath, writeError)
	}
	return nil
}

// Load reads a persisted plan, verifies its format version, and revalidates
// the task graph so loaded plans carry the same derived state as compiled
// ones.
func Load(filePath string) (*Plan, error) {
	documentBytes, readError := os.ReadFile(filePath)
	if readError != nil {
		return nil, fmt.Errorf(planReadErrorTemplateConstant, filePath, readError)
	}

	loadedPlan := &Plan{}
	if decodeError := yaml.Unmarshal(documentBytes, loadedPlan); decodeError != nil {
		return nil, fmt.Errorf(planDecodeErrorTemplateConstant, filePath, decodeError)
	}

	if !semver.IsValid(loadedPlan.FormatVersion) || semver.Major(loadedPlan.FormatVersion) != semver.Major(CurrentFormatVersion) {
		return nil, fmt.Errorf(formatVersionErrorTemplateConstant, ErrUnsupportedFormatVersion, loadedPlan.FormatVersion, CurrentFormatVersion)
	}

	if finalizeError := loadedPlan.finalize(); finalizeError != nil {
		return nil, finalizeError
	}
	return loadedPlan, nil
}
