package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	resultsFileNameConstant             = "results.yaml"
	resultsFilePermissionsConstant      = 0o644
	resultsDirectoryPermissionsConstant = 0o755
	resultsMarshalTemplateConstant      = "unable to encode run results: %w"
	resultsWriteTemplateConstant        = "unable to write run results to %s: %w"
	resultsReadTemplateConstant         = "unable to read run results from %s: %w"
	resultsUnmarshalTemplateConstant    = "unable to decode run results from %s: %w"
)

// RunRecord is the persisted view of a run used for resume and reporting.
type RunRecord struct {
	RunIdentifier string       `yaml:"run_id"`
	Status        RunStatus    `yaml:"status"`
	StartedAt     time.Time    `yaml:"started_at"`
	FinishedAt    time.Time    `yaml:"finished_at,omitempty"`
	Results       []TaskResult `yaml:"results"`
}

// ResultsStore reads and writes the per-run results file inside the run's
// artifacts directory.
type ResultsStore struct {
	directory string
}

func NewResultsStore(directory string) *ResultsStore {
	return &ResultsStore{directory: directory}
}

// Path returns the location of the results file.
func (store *ResultsStore) Path() string {
	return filepath.Join(store.directory, resultsFileNameConstant)
}

// Save persists the record, creating the run directory when needed.
func (store *ResultsStore) Save(record RunRecord) error {
	if directoryError := os.MkdirAll(store.directory, resultsDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(resultsWriteTemplateConstant, store.Path(), directoryError)
	}

	encoded, marshalError := yaml.Marshal(record)
	if marshalError != nil {
		return fmt.Errorf(resultsMarshalTemplateConstant, marshalError)
	}

	if writeError := os.WriteFile(store.Path(), encoded, resultsFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(resultsWriteTemplateConstant, store.Path(), writeError)
	}
	return nil
}

// Load reads the previously saved record. The boolean reports whether a
// results file exists at all.
func (store *ResultsStore) Load() (RunRecord, bool, error) {
	encoded, readError := os.ReadFile(store.Path())
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, fmt.Errorf(resultsReadTemplateConstant, store.Path(), readError)
	}

	var record RunRecord
	if unmarshalError := yaml.Unmarshal(encoded, &record); unmarshalError != nil {
		return RunRecord{}, true, fmt.Errorf(resultsUnmarshalTemplateConstant, store.Path(), unmarshalError)
	}
	return record, true, nil
}
