// Package tasks assembles the analysis task bodies into a populated task
// registry.
package tasks

import (
	"time"

	"github.com/tyemirov/utils/llm"
	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/genos"
	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks/embedding"
	"github.com/tyemirov/genopipe/internal/tasks/evidence"
	"github.com/tyemirov/genopipe/internal/tasks/report"
	"github.com/tyemirov/genopipe/internal/tasks/scoring"
	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
	"github.com/tyemirov/genopipe/internal/tasks/variantfilter"
)

// Dependencies carry the collaborators shared across task bodies. Every
// entry is optional: a nil Embedder selects the deterministic mock, a nil
// ChatClient selects heuristic scoring, a nil Store serves simulated
// ClinVar evidence, and a nil RemoteClient skips remote annotation
// lookups.
type Dependencies struct {
	Logger       *zap.Logger
	Embedder     genos.Embedder
	ChatClient   llm.ChatClient
	Store        evidence.KnowledgeStore
	RemoteClient evidence.AnnotationClient
	OpenSource   seqcontext.SourceOpener
	Clock        func() time.Time
}

// NewRegistry registers every analysis task type with its contract and a
// runner wired from the shared dependencies.
func NewRegistry(dependencies Dependencies) (*registry.Registry, error) {
	registrations := []struct {
		contract registry.Contract
		runner   registry.TaskRunner
	}{
		{
			contract: variantfilter.TaskContract(),
			runner:   variantfilter.NewRunner(variantfilter.Dependencies{Logger: dependencies.Logger}),
		},
		{
			contract: seqcontext.TaskContract(),
			runner: seqcontext.NewRunner(seqcontext.Dependencies{
				Logger:     dependencies.Logger,
				OpenSource: dependencies.OpenSource,
			}),
		},
		{
			contract: embedding.TaskContract(),
			runner: embedding.NewRunner(embedding.Dependencies{
				Logger:   dependencies.Logger,
				Embedder: dependencies.Embedder,
			}),
		},
		{
			contract: scoring.TaskContract(),
			runner: scoring.NewRunner(scoring.Dependencies{
				Logger:     dependencies.Logger,
				ChatClient: dependencies.ChatClient,
			}),
		},
		{
			contract: evidence.TaskContract(),
			runner: evidence.NewRunner(evidence.Dependencies{
				Logger:       dependencies.Logger,
				Store:        dependencies.Store,
				RemoteClient: dependencies.RemoteClient,
			}),
		},
		{
			contract: report.TaskContract(),
			runner: report.NewRunner(report.Dependencies{
				Logger: dependencies.Logger,
				Clock:  dependencies.Clock,
			}),
		},
	}

	taskRegistry := registry.NewRegistry()
	for _, entry := range registrations {
		if registerError := taskRegistry.Register(entry.contract, entry.runner); registerError != nil {
			return nil, registerError
		}
	}
	return taskRegistry, nil
}
