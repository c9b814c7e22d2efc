package services

import (
	"fmt"
	"os"
	"slices"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedBatchSize = "embedding.batch_size"
	keyEmbedRPM       = "embedding.requests_per_minute"

	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMTemperature = "llm.temperature"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMRPM         = "llm.requests_per_minute"

	keyVectorBackend    = "vector_index.backend"
	keyVectorCollection = "vector_index.collection"
	keyVectorURL        = "vector_index.url"
	keyVectorAPIKey     = "vector_index.api_key"
	keyVectorPath       = "vector_index.path"

	keyRetrievalTopK = "retrieval.top_k"

	keyAnalysisSystemPrompt    = "analysis.system_prompt"
	keyAnalysisContinueOnError = "analysis.continue_on_error"

	keyPathQueriesRaw     = "paths.queries_raw"
	keyPathQueriesFile    = "paths.queries_file"
	keyPathCorpusRaw      = "paths.corpus_raw"
	keyPathCorpusFile     = "paths.corpus_file"
	keyPathResultsDir     = "paths.results_dir"
	keyPathCheckpointFile = "paths.checkpoint_file"

	keyPrepSentences     = "preprocess.sentences_per_chunk"
	keyPrepOverlap       = "preprocess.overlap"
	keyPrepSectionRegex  = "preprocess.section_pattern"
	keyPrepQuerySource   = "preprocess.query_source"
	keyPrepCorpusSource  = "preprocess.corpus_source"
	keyPrepContextHeader = "preprocess.context_header"
)

// Environment variables consulted when no API key is configured.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvQdrantAPIKey    = "QDRANT_API_KEY"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
// Missing or invalid values fall back to defaults; empty API keys fall back
// to the provider's environment variable.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerMinute: s.configStore.GetInt(keyEmbedRPM),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Temperature:       s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			MaxTokens:         s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			RequestsPerMinute: s.configStore.GetInt(keyLLMRPM),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:    s.getVectorBackend(d.VectorIndex.Backend),
			Collection: s.getString(keyVectorCollection, d.VectorIndex.Collection),
			URL:        s.getString(keyVectorURL, d.VectorIndex.URL),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
			Path:       s.getString(keyVectorPath, d.VectorIndex.Path),
		},
		Retrieval: domain.RetrievalSettings{
			TopK: s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
		},
		Analysis: domain.AnalysisSettings{
			SystemPrompt:    s.getString(keyAnalysisSystemPrompt, d.Analysis.SystemPrompt),
			ContinueOnError: s.getBool(keyAnalysisContinueOnError, d.Analysis.ContinueOnError),
		},
		Paths: domain.PathSettings{
			QueriesRaw:     s.getString(keyPathQueriesRaw, d.Paths.QueriesRaw),
			QueriesFile:    s.getString(keyPathQueriesFile, d.Paths.QueriesFile),
			CorpusRaw:      s.getString(keyPathCorpusRaw, d.Paths.CorpusRaw),
			CorpusFile:     s.getString(keyPathCorpusFile, d.Paths.CorpusFile),
			ResultsDir:     s.getString(keyPathResultsDir, d.Paths.ResultsDir),
			CheckpointFile: s.getString(keyPathCheckpointFile, d.Paths.CheckpointFile),
		},
		Preprocess: domain.PreprocessSettings{
			SentencesPerChunk: s.getInt(keyPrepSentences, d.Preprocess.SentencesPerChunk),
			Overlap:           s.getInt(keyPrepOverlap, d.Preprocess.Overlap),
			SectionPattern:    s.getString(keyPrepSectionRegex, d.Preprocess.SectionPattern),
			QuerySource:       s.getString(keyPrepQuerySource, d.Preprocess.QuerySource),
			CorpusSource:      s.getString(keyPrepCorpusSource, d.Preprocess.CorpusSource),
			ContextHeader:     s.getBool(keyPrepContextHeader, d.Preprocess.ContextHeader),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envAPIKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envAPIKey(settings.LLM.Provider)
	}
	if settings.VectorIndex.APIKey == "" {
		settings.VectorIndex.APIKey = s.getenv(EnvQdrantAPIKey)
	}
	if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaURL
	}
	if settings.LLM.Provider.IsLocal() && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = defaultOllamaURL
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set, so keys taken from the environment
// are not copied into the config file by Get/Save round trips.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRPM, settings.Embedding.RequestsPerMinute},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMRPM, settings.LLM.RequestsPerMinute},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyVectorCollection, settings.VectorIndex.Collection},
		{keyVectorURL, settings.VectorIndex.URL},
		{keyVectorPath, settings.VectorIndex.Path},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyAnalysisSystemPrompt, settings.Analysis.SystemPrompt},
		{keyAnalysisContinueOnError, settings.Analysis.ContinueOnError},
		{keyPathQueriesRaw, settings.Paths.QueriesRaw},
		{keyPathQueriesFile, settings.Paths.QueriesFile},
		{keyPathCorpusRaw, settings.Paths.CorpusRaw},
		{keyPathCorpusFile, settings.Paths.CorpusFile},
		{keyPathResultsDir, settings.Paths.ResultsDir},
		{keyPathCheckpointFile, settings.Paths.CheckpointFile},
		{keyPrepSentences, settings.Preprocess.SentencesPerChunk},
		{keyPrepOverlap, settings.Preprocess.Overlap},
		{keyPrepSectionRegex, settings.Preprocess.SectionPattern},
		{keyPrepQuerySource, settings.Preprocess.QuerySource},
		{keyPrepCorpusSource, settings.Preprocess.CorpusSource},
		{keyPrepContextHeader, settings.Preprocess.ContextHeader},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := []struct {
		key   string
		value string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyVectorAPIKey, settings.VectorIndex.APIKey},
	}
	for _, v := range secrets {
		if v.value == "" || v.value == s.envValueFor(v.key, settings) {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetVectorBackend selects the vector index backend.
// The URL is only used by the qdrant backend and is kept when empty.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend, url string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid vector backend: %s", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.VectorIndex.Backend = backend
	if url != "" {
		settings.VectorIndex.URL = url
	}

	return s.Save(settings)
}

// SetSystemPrompt selects the default system prompt template.
func (s *SettingsService) SetSystemPrompt(name string) error {
	if name == "" {
		return fmt.Errorf("%w: system prompt name is empty", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Analysis.SystemPrompt = name
	return s.Save(settings)
}

// Validate checks that the settings are complete enough for a run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured (set %s or embedding.api_key)",
			settings.Embedding.Provider, s.envName(settings.Embedding.Provider))
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not configured (set %s or llm.api_key)",
			settings.LLM.Provider, s.envName(settings.LLM.Provider))
	}
	if !settings.VectorIndex.Backend.IsValid() {
		return fmt.Errorf("invalid vector backend: %s", settings.VectorIndex.Backend)
	}
	if settings.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", settings.Retrieval.TopK)
	}
	if settings.Paths.QueriesFile == "" || settings.Paths.CorpusFile == "" {
		return fmt.Errorf("paths.queries_file and paths.corpus_file must be set")
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVectorBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	val := s.configStore.GetString(keyVectorBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.VectorBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) envName(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return EnvOpenAIAPIKey
	case domain.AIProviderAnthropic:
		return EnvAnthropicAPIKey
	default:
		return ""
	}
}

func (s *SettingsService) envAPIKey(provider domain.AIProvider) string {
	name := s.envName(provider)
	if name == "" {
		return ""
	}
	return s.getenv(name)
}

// envValueFor returns the environment fallback that Get would have used for key.
func (s *SettingsService) envValueFor(key string, settings *domain.AppSettings) string {
	switch key {
	case keyEmbedAPIKey:
		return s.envAPIKey(settings.Embedding.Provider)
	case keyLLMAPIKey:
		return s.envAPIKey(settings.LLM.Provider)
	case keyVectorAPIKey:
		return s.getenv(EnvQdrantAPIKey)
	default:
		return ""
	}
}
