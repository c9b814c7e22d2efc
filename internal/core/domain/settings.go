package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int

	// RequestsPerMinute paces embedding requests. Zero disables pacing.
	RequestsPerMinute int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// MaxTokens caps the length of each analysis.
	MaxTokens int

	// RequestsPerMinute paces completion requests. Zero disables pacing.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendMemory keeps the collection in process memory.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendSQLite stores the collection in a local SQLite file.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendQdrant uses a Qdrant server over its REST API.
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendQdrant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendMemory:
		return "Memory (rebuilt every run)"
	case VectorBackendSQLite:
		return "SQLite (local file)"
	case VectorBackendQdrant:
		return "Qdrant (server)"
	default:
		return unknownDescription
	}
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// Collection is the name of the collection rebuilt at index time.
	Collection string

	// URL is the Qdrant server address.
	URL string

	// APIKey is the Qdrant API key, if the server requires one.
	APIKey string

	// Path is the SQLite database file.
	Path string
}

// RetrievalSettings holds retrieval configuration.
type RetrievalSettings struct {
	// TopK is the size of each of the similar and dissimilar groups.
	TopK int
}

// AnalysisSettings holds analysis configuration.
type AnalysisSettings struct {
	// SystemPrompt is the name of the system prompt template.
	SystemPrompt string

	// ContinueOnError records failed pairs instead of aborting the run.
	ContinueOnError bool
}

// PathSettings holds input and output locations.
type PathSettings struct {
	// QueriesRaw is the plain text the queries are drawn from.
	QueriesRaw string

	// QueriesFile is the chunk file of query passages.
	QueriesFile string

	// CorpusRaw is the plain text searched for related passages.
	CorpusRaw string

	// CorpusFile is the chunk file of corpus passages.
	CorpusFile string

	// ResultsDir is where results tables are written.
	ResultsDir string

	// CheckpointFile is the database of completed pairs.
	CheckpointFile string
}

// PreprocessSettings holds chunking configuration.
type PreprocessSettings struct {
	// SentencesPerChunk is the number of sentences in each chunk.
	SentencesPerChunk int

	// Overlap is the number of sentences shared by consecutive chunks.
	Overlap int

	// SectionPattern splits the corpus text into chapters.
	SectionPattern string

	// QuerySource is the source name recorded on query chunks.
	QuerySource string

	// CorpusSource is the source name recorded on corpus chunks.
	CorpusSource string

	// ContextHeader prefixes each corpus chunk with its source and chapter.
	ContextHeader bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorIndex VectorIndexSettings
	Retrieval   RetrievalSettings
	Analysis    AnalysisSettings
	Paths       PathSettings
	Preprocess  PreprocessSettings
}

// Default setting values.
const (
	DefaultTopK              = 2
	DefaultTemperature       = 0.0
	DefaultMaxTokens         = 2000
	DefaultBatchSize         = 100
	DefaultSystemPrompt      = "scholar"
	DefaultCollection        = "intertext"
	DefaultSentencesPerChunk = 4
	DefaultSentenceOverlap   = 1
	DefaultSectionPattern    = `BOOK [IVXLCDM]+\.`
)

// DefaultAppSettings returns settings with sensible defaults.
// Providers default to OpenAI; the API key comes from config or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOpenAI,
			Model:     DefaultEmbeddingModels()[AIProviderOpenAI],
			BatchSize: DefaultBatchSize,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       DefaultLLMModels()[AIProviderOpenAI],
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendMemory,
			Collection: DefaultCollection,
			URL:        "http://localhost:6333",
			Path:       "data/processed/vectors.db",
		},
		Retrieval: RetrievalSettings{
			TopK: DefaultTopK,
		},
		Analysis: AnalysisSettings{
			SystemPrompt: DefaultSystemPrompt,
		},
		Paths: PathSettings{
			QueriesRaw:     "data/raw/mrs_dalloway.txt",
			QueriesFile:    "data/processed/mrs_dalloway_queries.jsonl",
			CorpusRaw:      "data/raw/odyssey_butcher.txt",
			CorpusFile:     "data/processed/odyssey_processed.jsonl",
			ResultsDir:     "data/results",
			CheckpointFile: "data/results/checkpoints.db",
		},
		Preprocess: PreprocessSettings{
			SentencesPerChunk: DefaultSentencesPerChunk,
			Overlap:           DefaultSentenceOverlap,
			SectionPattern:    DefaultSectionPattern,
			QuerySource:       "Mrs Dalloway",
			CorpusSource:      "The Odyssey",
			ContextHeader:     false,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllVectorBackends returns the available vector index backends.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{
		VectorBackendMemory,
		VectorBackendSQLite,
		VectorBackendQdrant,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
