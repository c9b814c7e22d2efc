package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intertext-cli/internal/core/services"
)

// fakeRunService replays events and returns a canned report.
type fakeRunService struct {
	events  []domain.RunEvent
	report  *domain.RunReport
	err     error
	indexed int

	lastOpts   domain.RunOptions
	indexCalls int
}

func (f *fakeRunService) Run(_ context.Context, opts domain.RunOptions, observe driving.RunObserver) (*domain.RunReport, error) {
	f.lastOpts = opts
	for _, ev := range f.events {
		observe(ev)
	}
	return f.report, f.err
}

func (f *fakeRunService) IndexCorpus(_ context.Context) (int, domain.Usage, error) {
	f.indexCalls++
	return f.indexed, domain.Usage{Kind: domain.UsageEmbedding, Model: "text-embedding-3-small", InputTokens: 5000, Calls: 3}, f.err
}

// fakePipeline is a canned driving.PipelineService.
type fakePipeline struct {
	count    int
	related  []domain.Chunk
	analysis *domain.AnalysisResponse
	err      error

	lastRetrieval domain.RetrievalRequest
	lastAnalysis  domain.AnalysisRequest
}

func (f *fakePipeline) Execute(_ context.Context, _ domain.PipelineRequest) (domain.PipelineResponse, error) {
	return nil, f.err
}

func (f *fakePipeline) Index(_ context.Context, _ domain.IndexRequest) (*domain.IndexResponse, error) {
	return &domain.IndexResponse{}, f.err
}

func (f *fakePipeline) FindRelated(_ context.Context, req domain.RetrievalRequest) (*domain.RetrievalResponse, error) {
	f.lastRetrieval = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RetrievalResponse{Chunks: f.related}, nil
}

func (f *fakePipeline) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	f.lastAnalysis = req
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakePipeline) IndexedCount(_ context.Context) (int, error) {
	return f.count, nil
}

// fakePreparer returns a canned report.
type fakePreparer struct {
	report *domain.PrepareReport
	err    error
	opts   domain.PrepareOptions
}

func (f *fakePreparer) Prepare(_ context.Context, opts domain.PrepareOptions) (*domain.PrepareReport, error) {
	f.opts = opts
	return f.report, f.err
}

// fakeMerger records merge calls.
type fakeMerger struct {
	out   string
	paths []string
}

func (f *fakeMerger) Merge(out string, paths ...string) (int, error) {
	f.out, f.paths = out, paths
	return 7 * len(paths), nil
}

type testServices struct {
	run      *fakeRunService
	pipeline *fakePipeline
	prepare  *fakePreparer
	merger   *fakeMerger
	settings *services.SettingsService
	prompts  *file.PromptStore
}

// setupTestServices installs fakes plus real settings and prompt stores.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test-1234567890")

	prompts, err := file.NewPromptStore(t.TempDir())
	require.NoError(t, err)

	ts := &testServices{
		run:      &fakeRunService{},
		pipeline: &fakePipeline{},
		prepare:  &fakePreparer{report: &domain.PrepareReport{}},
		merger:   &fakeMerger{},
		settings: services.NewSettingsService(memory.NewConfigStore(), nil),
		prompts:  prompts,
	}
	SetServices(Services{
		Settings:  ts.settings,
		Run:       ts.run,
		Pipeline:  ts.pipeline,
		Prepare:   ts.prepare,
		Prompts:   ts.prompts,
		Merger:    ts.merger,
		PromptDir: ts.prompts.Dir(),
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return ts
}

// executeCommand runs the root command with args and fresh flag values.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default, since flag variables are
// package globals shared between test executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
