package mcp

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	related  *domain.RetrievalResponse
	analysis *domain.AnalysisResponse
	count    int
	err      error

	lastRetrieval domain.RetrievalRequest
	lastAnalysis  domain.AnalysisRequest
}

func (m *mockPipelineService) Execute(ctx context.Context, req domain.PipelineRequest) (domain.PipelineResponse, error) {
	switch r := req.(type) {
	case domain.RetrievalRequest:
		return m.FindRelated(ctx, r)
	case domain.AnalysisRequest:
		return m.Analyze(ctx, r)
	default:
		return nil, m.err
	}
}

func (m *mockPipelineService) Index(_ context.Context, _ domain.IndexRequest) (*domain.IndexResponse, error) {
	return &domain.IndexResponse{}, m.err
}

func (m *mockPipelineService) FindRelated(
	_ context.Context,
	req domain.RetrievalRequest,
) (*domain.RetrievalResponse, error) {
	m.lastRetrieval = req
	if m.err != nil {
		return nil, m.err
	}
	return m.related, nil
}

func (m *mockPipelineService) Analyze(
	_ context.Context,
	req domain.AnalysisRequest,
) (*domain.AnalysisResponse, error) {
	m.lastAnalysis = req
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *mockPipelineService) IndexedCount(_ context.Context) (int, error) {
	return m.count, m.err
}

// mockPromptStore is a mock implementation of driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	text, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *mockPromptStore) List() ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(m.prompts))
	for _, n := range []string{"analysis", "scholar", "skeptic"} {
		if _, ok := m.prompts[n]; ok {
			names = append(names, n)
		}
	}
	return names, nil
}

func (m *mockPromptStore) Reload() {}

// mockWatcher records Watch calls and closes done when ctx ends.
type mockWatcher struct {
	started chan struct{}
	err     error
}

func (m *mockWatcher) Watch(ctx context.Context, onChange func(string)) (<-chan struct{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		onChange("scholar")
		close(m.started)
		<-ctx.Done()
	}()
	return done, nil
}
