package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tyemirov/utils/llm"
	"go.uber.org/zap"

	"github.com/tyemirov/genopipe/internal/genos"
	"github.com/tyemirov/genopipe/internal/knowledge"
	"github.com/tyemirov/genopipe/internal/registry"
	"github.com/tyemirov/genopipe/internal/tasks"
	"github.com/tyemirov/genopipe/internal/tasks/evidence"
	"github.com/tyemirov/genopipe/internal/tasks/seqcontext"
)

const (
	knowledgeStoreErrorTemplateConstant = "pipeline.dependencies.knowledge_store: %w"
	chatClientErrorTemplateConstant     = "pipeline.dependencies.chat_client: %w"
	taskRegistryErrorTemplateConstant   = "pipeline.dependencies.task_registry: %w"
	missingAPIKeyTemplateConstant       = "llm api key env %s is empty"
)

// DependenciesConfig captures providers and overrides used to build task
// dependencies. Provided collaborators win over anything the options would
// construct.
type DependenciesConfig struct {
	LoggerProvider func() *zap.Logger
	Clock          func() time.Time
	Embedder       genos.Embedder
	ChatClient     llm.ChatClient
	KnowledgeStore evidence.KnowledgeStore
	RemoteClient   evidence.AnnotationClient
	SourceOpener   seqcontext.SourceOpener
}

// DependenciesOptions selects the external services wired for one
// installation. Empty fields leave the corresponding collaborator on its
// built-in fallback: mock embeddings, heuristic scoring, simulated
// evidence, no remote annotation.
type DependenciesOptions struct {
	KnowledgeDirectory   string
	GenosServerURL       string
	GenosAPIToken        string
	GenosModelName       string
	GenosPoolingMethod   string
	MockEmbedder         bool
	LLMModel             string
	LLMBaseURL           string
	LLMAPIKeyEnvironment string
	RemoteAnnotation     bool
	RemoteBaseURL        string
	GenomeAssembly       string
}

// DependenciesResult exposes the resolved task collaborators, the populated
// registry built over them, and a closer releasing whatever was opened.
type DependenciesResult struct {
	Tasks        tasks.Dependencies
	TaskRegistry *registry.Registry
	Close        func() error
}

// BuildDependencies resolves the embedding, scoring, and evidence
// collaborators named by the options and assembles the task registry over
// them. Callers must invoke Close once the registry is no longer needed.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)

	chatClient := config.ChatClient
	if chatClient == nil && len(strings.TrimSpace(options.LLMModel)) > 0 {
		constructedClient, clientError := buildChatClient(options)
		if clientError != nil {
			return DependenciesResult{}, fmt.Errorf(chatClientErrorTemplateConstant, clientError)
		}
		chatClient = constructedClient
	}

	var closers []func() error

	embedder := config.Embedder
	if embedder == nil && !options.MockEmbedder && len(strings.TrimSpace(options.GenosServerURL)) > 0 {
		client := genos.NewClient(genos.Config{
			ServerURL:     options.GenosServerURL,
			APIToken:      options.GenosAPIToken,
			ModelName:     options.GenosModelName,
			PoolingMethod: options.GenosPoolingMethod,
		})
		closers = append(closers, client.Close)
		embedder = client
	}

	knowledgeStore := config.KnowledgeStore
	if knowledgeStore == nil && len(strings.TrimSpace(options.KnowledgeDirectory)) > 0 {
		openedStore, openError := knowledge.Open(options.KnowledgeDirectory)
		if openError != nil {
			closeAll(closers)
			return DependenciesResult{}, fmt.Errorf(knowledgeStoreErrorTemplateConstant, openError)
		}
		closers = append(closers, openedStore.Close)
		knowledgeStore = openedStore
	}

	remoteClient := config.RemoteClient
	if remoteClient == nil && options.RemoteAnnotation {
		constructedRemote := knowledge.NewRemoteClient(knowledge.RemoteConfig{
			BaseURL:        options.RemoteBaseURL,
			GenomeAssembly: options.GenomeAssembly,
		})
		closers = append(closers, constructedRemote.Close)
		remoteClient = constructedRemote
	}

	taskDependencies := tasks.Dependencies{
		Logger:       logger,
		Embedder:     embedder,
		ChatClient:   chatClient,
		Store:        knowledgeStore,
		RemoteClient: remoteClient,
		OpenSource:   config.SourceOpener,
		Clock:        config.Clock,
	}

	taskRegistry, registryError := tasks.NewRegistry(taskDependencies)
	if registryError != nil {
		closeAll(closers)
		return DependenciesResult{}, fmt.Errorf(taskRegistryErrorTemplateConstant, registryError)
	}

	return DependenciesResult{
		Tasks:        taskDependencies,
		TaskRegistry: taskRegistry,
		Close:        combinedCloser(closers),
	}, nil
}

func buildChatClient(options DependenciesOptions) (llm.ChatClient, error) {
	apiKey := strings.TrimSpace(os.Getenv(options.LLMAPIKeyEnvironment))
	if len(apiKey) == 0 {
		return nil, fmt.Errorf(missingAPIKeyTemplateConstant, options.LLMAPIKeyEnvironment)
	}
	return llm.NewFactory(llm.Config{
		BaseURL: strings.TrimSpace(options.LLMBaseURL),
		APIKey:  apiKey,
		Model:   options.LLMModel,
	})
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func closeAll(closers []func() error) {
	for _, closeFunction := range closers {
		_ = closeFunction()
	}
}

func combinedCloser(closers []func() error) func() error {
	return func() error {
		var firstError error
		for _, closeFunction := range closers {
			if closeError := closeFunction(); closeError != nil && firstError == nil {
				firstError = closeError
			}
		}
		return firstError
	}
}
