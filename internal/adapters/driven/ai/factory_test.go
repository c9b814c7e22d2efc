package ai

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// ollamaServer answers the tag listing used by Ping.
func ollamaServer(t *testing.T, status int) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	assert.NotPanics(t, result.Close)
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		errContains string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured settings", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:     "openai without key is unconfigured",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name: "ollama",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name:        "anthropic has no embeddings",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "test-key"},
			wantNil:     true,
			errContains: "anthropic does not support embeddings",
		},
		{
			name:     "unknown provider is unconfigured",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "test-key"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
			} else {
				require.NoError(t, err)
			}

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.settings.Model, svc.ModelName())
			svc.Close()
		})
	}
}

func TestCreateEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		provider domain.AIProvider
		model    string
		want     int
	}{
		{domain.AIProviderOllama, "nomic-embed-text", 768},
		{domain.AIProviderOllama, "all-minilm", 384},
		{domain.AIProviderOpenAI, "text-embedding-3-large", 3072},
		{domain.AIProviderOpenAI, "text-embedding-3-small", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
				Provider: tt.provider, Model: tt.model, APIKey: "k",
			})
			require.NoError(t, err)
			defer svc.Close()
			assert.Equal(t, tt.want, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured settings", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name:     "ollama",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
		},
		{
			name:     "openai",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
		},
		{
			name: "anthropic",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic, APIKey: "k", Model: "claude-3-5-sonnet-latest",
			},
		},
		{
			name:     "anthropic without key is unconfigured",
			settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic},
			wantNil:  true,
		},
		{
			name:     "unknown provider is unconfigured",
			settings: &domain.LLMSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.settings.Model, svc.ModelName())
			svc.Close()
		})
	}
}

func TestCreateVectorIndex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vectors.db")

	tests := []struct {
		name     string
		settings *domain.VectorIndexSettings
		check    func(t *testing.T, idx any)
	}{
		{
			name:     "nil settings is memory",
			settings: nil,
			check:    func(t *testing.T, idx any) { assert.IsType(t, &memory.VectorIndex{}, idx) },
		},
		{
			name:     "empty backend is memory",
			settings: &domain.VectorIndexSettings{},
			check:    func(t *testing.T, idx any) { assert.IsType(t, &memory.VectorIndex{}, idx) },
		},
		{
			name:     "sqlite",
			settings: &domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite, Path: dbPath},
			check: func(t *testing.T, idx any) {
				require.IsType(t, &sqlite.VectorIndex{}, idx)
				assert.Equal(t, domain.DefaultCollection, idx.(*sqlite.VectorIndex).Collection())
			},
		},
		{
			name: "qdrant",
			settings: &domain.VectorIndexSettings{
				Backend: domain.VectorBackendQdrant, URL: "http://localhost:6333", Collection: "odyssey",
			},
			check: func(t *testing.T, idx any) { assert.IsType(t, &qdrant.VectorIndex{}, idx) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := CreateVectorIndex(tt.settings)
			require.NoError(t, err)
			defer idx.Close()
			tt.check(t, idx)
		})
	}
}

func TestCreateVectorIndex_Errors(t *testing.T) {
	_, err := CreateVectorIndex(&domain.VectorIndexSettings{Backend: "chroma"})
	assert.ErrorContains(t, err, "unsupported vector backend")

	_, err = CreateVectorIndex(&domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInit(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.APIKey = "sk-test"
	settings.LLM.Provider = domain.AIProviderAnthropic
	settings.LLM.Model = "claude-3-5-sonnet-latest"
	settings.LLM.APIKey = ""

	result, err := Init(&settings)
	require.NoError(t, err)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.Nil(t, result.LLMService)
	assert.IsType(t, &memory.VectorIndex{}, result.VectorIndex)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `LLM provider "anthropic" is not configured`)
}

func TestInit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.AppSettings)
		wantErr error
	}{
		{
			name: "anthropic embeddings",
			mutate: func(s *domain.AppSettings) {
				s.Embedding.Provider = domain.AIProviderAnthropic
				s.Embedding.APIKey = "k"
			},
			wantErr: domain.ErrEmbeddingUnavailable,
		},
		{
			name:    "unknown backend",
			mutate:  func(s *domain.AppSettings) { s.VectorIndex.Backend = "chroma" },
			wantErr: domain.ErrVectorIndexUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := domain.DefaultAppSettings()
			tt.mutate(&settings)

			_, err := Init(&settings)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorContains(t, err, "intertext settings")
		})
	}
}

func TestCreateAndValidate_Ollama(t *testing.T) {
	up := ollamaServer(t, http.StatusOK)
	down := ollamaServer(t, http.StatusInternalServerError)

	emb, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: up, Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	require.NotNil(t, emb)
	emb.Close()

	_, err = CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: down, Model: "nomic-embed-text",
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "service unreachable")

	llm, err := CreateAndValidateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: up, Model: "llama3.2",
	})
	require.NoError(t, err)
	require.NotNil(t, llm)
	llm.Close()

	_, err = CreateAndValidateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: down, Model: "llama3.2",
	})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestCreateAndValidate_Unconfigured(t *testing.T) {
	emb, err := CreateAndValidateEmbeddingService(nil)
	assert.NoError(t, err)
	assert.Nil(t, emb)

	llm, err := CreateAndValidateLLMService(&domain.LLMSettings{})
	assert.NoError(t, err)
	assert.Nil(t, llm)
}

func TestValidateConfig(t *testing.T) {
	up := ollamaServer(t, http.StatusOK)
	down := ollamaServer(t, http.StatusNotFound)

	assert.NoError(t, ValidateEmbeddingConfig(nil))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: up}))
	assert.Error(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: down}))

	assert.NoError(t, ValidateLLMConfig(nil))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: up}))
	assert.Error(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down}))
}
