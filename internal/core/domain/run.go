package domain

import "time"

// RunState is a step of the per-query processing loop.
//
//	PENDING -> RETRIEVING -> ANALYZING -> RECORDED -> RETRIEVING ... -> DONE
//
// FAILED replaces DONE when a pair aborts the run.
type RunState string

// Run states.
const (
	RunStatePending    RunState = "pending"
	RunStateRetrieving RunState = "retrieving"
	RunStateAnalyzing  RunState = "analyzing"
	RunStateRecorded   RunState = "recorded"
	RunStateDone       RunState = "done"
	RunStateFailed     RunState = "failed"
)

// IsTerminal returns true for DONE and FAILED.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// String returns the string representation.
func (s RunState) String() string {
	return string(s)
}

// CanTransition reports whether the loop may move from s to next.
func (s RunState) CanTransition(next RunState) bool {
	switch s {
	case RunStatePending:
		return next == RunStateRetrieving || next == RunStateDone || next == RunStateFailed
	case RunStateRetrieving:
		return next == RunStateAnalyzing || next == RunStateRetrieving ||
			next == RunStateDone || next == RunStateFailed
	case RunStateAnalyzing:
		return next == RunStateRecorded || next == RunStateFailed
	case RunStateRecorded:
		return next == RunStateAnalyzing || next == RunStateRetrieving ||
			next == RunStateDone || next == RunStateFailed
	default:
		return false
	}
}

// RunOptions controls a batch run.
type RunOptions struct {
	// Limit caps how many query chunks are processed. Zero means all.
	Limit int

	// TopK overrides the configured retrieval size when positive.
	TopK int

	// PromptTemplate overrides the configured system prompt when set.
	PromptTemplate string

	// ContinueOnError records failed pairs and keeps going instead of aborting.
	ContinueOnError bool

	// Fresh ignores pairs checkpointed by earlier runs.
	Fresh bool

	// OutputPath overrides the generated results file path.
	OutputPath string
}

// RunEvent is emitted on every state transition of a run.
type RunEvent struct {
	State RunState

	// QueryIndex is the 0-based position of the current query chunk.
	QueryIndex int

	// QueryTotal is the number of query chunks in this run.
	QueryTotal int

	// Query is the query chunk being processed, if any.
	Query *Chunk

	// Passage is the retrieved chunk being analysed, if any.
	Passage *Chunk

	// Cached is true when a recorded pair came from the checkpoint store.
	Cached bool
}

// ResultRecord is one analysed (query, passage) pair.
type ResultRecord struct {
	RunID          string          `json:"run_id"`
	Query          Chunk           `json:"-"`
	Passage        Chunk           `json:"-"`
	Result         *AnalysisResult `json:"result,omitempty"`
	PromptTemplate string          `json:"prompt_template"`
	Model          string          `json:"model"`
	Error          string          `json:"error,omitempty"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// Failed returns true if the pair could not be analysed.
func (r ResultRecord) Failed() bool {
	return r.Error != ""
}

// RunReport summarises a completed run.
type RunReport struct {
	RunID string

	// OutputPath is where the results table was written.
	OutputPath string

	// Queries is the number of query chunks processed.
	Queries int

	// Records holds every pair in processing order.
	Records []ResultRecord

	// Failures counts records with an error.
	Failures int

	// Resumed counts records reused from the checkpoint store.
	Resumed int

	// Usage is the aggregated token and cost summary.
	Usage UsageSummary

	StartedAt  time.Time
	FinishedAt time.Time
}

// UsageSummary is the printable state of the token ledger.
type UsageSummary struct {
	EmbeddingTokens int
	EmbeddingCalls  int
	EmbeddingCost   float64

	CompletionInputTokens       int
	CompletionCachedInputTokens int
	CompletionOutputTokens      int
	CompletionCalls             int
	CompletionCost              float64

	TotalCost float64

	// UnpricedModels lists models missing from the price table.
	UnpricedModels []string
}

// CompletionStandardInputTokens returns input tokens billed at the full rate.
func (s UsageSummary) CompletionStandardInputTokens() int {
	return s.CompletionInputTokens - s.CompletionCachedInputTokens
}

// PrepareOptions controls chunk file preparation.
type PrepareOptions struct {
	// Force rewrites chunk files that already exist.
	Force bool
}

// PrepareReport summarises a preparation run.
type PrepareReport struct {
	QueryPath    string
	QueryChunks  int
	CorpusPath   string
	CorpusChunks int
	Sections     int

	// Skipped lists outputs left untouched because they already existed.
	Skipped []string
}
