package analyze

import (
	"strings"

	"github.com/tyemirov/genopipe/internal/plan"
)

const (
	defaultOutputDirectory    = "runs"
	defaultKnowledgeDirectory = "data/knowledge"
	defaultGenomeAssembly     = "GRCh38"
	defaultLLMAPIKeyEnv       = "OPENAI_API_KEY"
)

// GenosConfiguration selects the embedding backend. An empty server URL
// leaves the deterministic mock embedder in place.
type GenosConfiguration struct {
	ServerURL   string `mapstructure:"server_url"`
	APITokenEnv string `mapstructure:"api_token_env"`
	Mock        bool   `mapstructure:"mock"`
}

// LLMConfiguration selects the scoring language model. An empty model
// keeps the offline heuristic scorer.
type LLMConfiguration struct {
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// EvidenceConfiguration selects annotation sources consulted beyond the
// local knowledge base.
type EvidenceConfiguration struct {
	RemoteAnnotation bool   `mapstructure:"remote_annotation"`
	RemoteBaseURL    string `mapstructure:"remote_base_url"`
	GenomeAssembly   string `mapstructure:"genome_assembly"`
}

// Configuration captures analysis values shared by the analyze, plan, and
// run commands.
type Configuration struct {
	OutputDirectory    string                `mapstructure:"output_directory"`
	ReferenceFASTA     string                `mapstructure:"reference_fasta"`
	KnowledgeDirectory string                `mapstructure:"knowledge_directory"`
	MaxWorkers         int                   `mapstructure:"max_workers"`
	RunTimeoutSeconds  int                   `mapstructure:"run_timeout_seconds"`
	StopOnError        bool                  `mapstructure:"stop_on_error"`
	Tasks              plan.AnalysisSettings `mapstructure:"tasks"`
	Genos              GenosConfiguration    `mapstructure:"genos"`
	LLM                LLMConfiguration      `mapstructure:"llm"`
	Evidence           EvidenceConfiguration `mapstructure:"evidence"`
}

// DefaultConfiguration provides baseline analysis configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		OutputDirectory:    defaultOutputDirectory,
		KnowledgeDirectory: defaultKnowledgeDirectory,
		MaxWorkers:         1,
		LLM:                LLMConfiguration{APIKeyEnv: defaultLLMAPIKeyEnv},
		Evidence:           EvidenceConfiguration{GenomeAssembly: defaultGenomeAssembly},
	}
}

// Sanitize normalizes configuration values.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration

	sanitized.OutputDirectory = strings.TrimSpace(configuration.OutputDirectory)
	if sanitized.OutputDirectory == "" {
		sanitized.OutputDirectory = defaultOutputDirectory
	}
	sanitized.ReferenceFASTA = strings.TrimSpace(configuration.ReferenceFASTA)
	sanitized.KnowledgeDirectory = strings.TrimSpace(configuration.KnowledgeDirectory)

	if configuration.MaxWorkers < 0 {
		sanitized.MaxWorkers = 0
	}
	if configuration.RunTimeoutSeconds < 0 {
		sanitized.RunTimeoutSeconds = 0
	}

	sanitized.Genos.ServerURL = strings.TrimSpace(configuration.Genos.ServerURL)
	sanitized.Genos.APITokenEnv = strings.TrimSpace(configuration.Genos.APITokenEnv)

	sanitized.LLM.Model = strings.TrimSpace(configuration.LLM.Model)
	sanitized.LLM.BaseURL = strings.TrimSpace(configuration.LLM.BaseURL)
	apiKeyEnv := strings.TrimSpace(configuration.LLM.APIKeyEnv)
	if apiKeyEnv == "" {
		apiKeyEnv = defaultLLMAPIKeyEnv
	}
	sanitized.LLM.APIKeyEnv = apiKeyEnv

	sanitized.Evidence.RemoteBaseURL = strings.TrimSpace(configuration.Evidence.RemoteBaseURL)
	genomeAssembly := strings.TrimSpace(configuration.Evidence.GenomeAssembly)
	if genomeAssembly == "" {
		genomeAssembly = defaultGenomeAssembly
	}
	sanitized.Evidence.GenomeAssembly = genomeAssembly

	return sanitized
}

// AnalysisSettings resolves the per-task settings, filling the reference
// and knowledge base paths from the top-level analysis values when the
// tasks section leaves them unset.
func (configuration Configuration) AnalysisSettings() plan.AnalysisSettings {
	settings := configuration.Tasks
	if strings.TrimSpace(settings.ReferenceFASTAPath) == "" {
		settings.ReferenceFASTAPath = configuration.ReferenceFASTA
	}
	if strings.TrimSpace(settings.KnowledgeBasePath) == "" {
		settings.KnowledgeBasePath = configuration.KnowledgeDirectory
	}
	return settings
}
