package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure Runner implements the interface.
var _ driving.RunService = (*Runner)(nil)

// RunnerConfig holds the explicit configuration of a Runner.
type RunnerConfig struct {
	Settings domain.AppSettings

	// Prices is the table the run's usage is priced against.
	// Defaults to domain.DefaultPriceTable().
	Prices domain.PriceTable
}

// Runner executes batch runs: index the corpus, then for each query chunk
// retrieve related passages and analyse every pair.
type Runner struct {
	pipeline    driving.PipelineService
	chunks      driven.ChunkStore
	results     driven.ResultWriter
	checkpoints driven.CheckpointStore
	settings    domain.AppSettings
	prices      domain.PriceTable
	now         func() time.Time
}

// NewRunner creates a runner. The checkpoint store is optional; without it
// every pair is analysed afresh.
func NewRunner(
	pipeline driving.PipelineService,
	chunks driven.ChunkStore,
	results driven.ResultWriter,
	checkpoints driven.CheckpointStore,
	cfg RunnerConfig,
) *Runner {
	prices := cfg.Prices
	if prices == nil {
		prices = domain.DefaultPriceTable()
	}
	return &Runner{
		pipeline:    pipeline,
		chunks:      chunks,
		results:     results,
		checkpoints: checkpoints,
		settings:    cfg.Settings,
		prices:      prices,
		now:         time.Now,
	}
}

// runTracker moves a run through its states and reports each transition.
type runTracker struct {
	state   domain.RunState
	total   int
	observe driving.RunObserver
}

func (t *runTracker) move(next domain.RunState, index int, query, passage *domain.Chunk, cached bool) {
	if t.state != "" && !t.state.CanTransition(next) {
		logger.Debug("Unexpected run transition %s -> %s", t.state, next)
	}
	t.state = next
	if t.observe != nil {
		t.observe(domain.RunEvent{
			State:      next,
			QueryIndex: index,
			QueryTotal: t.total,
			Query:      query,
			Passage:    passage,
			Cached:     cached,
		})
	}
}

// Run processes the query chunks and writes the results table.
// By default the first failed pair aborts the run with ErrRunAborted;
// with ContinueOnError the failure becomes a row carrying the error.
// The report is returned even when the run fails.
func (r *Runner) Run(ctx context.Context, opts domain.RunOptions, observe driving.RunObserver) (*domain.RunReport, error) {
	ledger := NewUsageLedger(r.prices)
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	finish := func(err error) (*domain.RunReport, error) {
		report.Usage = ledger.Summary()
		report.FinishedAt = r.now()
		return report, err
	}

	logger.Section("Run " + report.RunID)

	queries, _, err := r.chunks.Load(r.settings.Paths.QueriesFile)
	if err != nil {
		return finish(fmt.Errorf("load query chunks: %w", err))
	}
	if opts.Limit > 0 && opts.Limit < len(queries) {
		queries = queries[:opts.Limit]
	}
	report.Queries = len(queries)

	_, indexUsage, err := r.IndexCorpus(ctx)
	ledger.Add(indexUsage)
	if err != nil {
		return finish(err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = r.settings.Retrieval.TopK
	}
	promptName := opts.PromptTemplate
	if promptName == "" {
		promptName = r.settings.Analysis.SystemPrompt
	}
	continueOnError := opts.ContinueOnError || r.settings.Analysis.ContinueOnError

	tracker := &runTracker{total: len(queries), observe: observe}
	tracker.move(domain.RunStatePending, 0, nil, nil, false)

	for i := range queries {
		query := queries[i]
		if err := ctx.Err(); err != nil {
			tracker.move(domain.RunStateFailed, i, &query, nil, false)
			r.writePartial(report, opts)
			return finish(err)
		}
		if strings.TrimSpace(query.Content) == "" {
			logger.Warn("Skipping empty query chunk %s", query.Label())
			continue
		}

		tracker.move(domain.RunStateRetrieving, i, &query, nil, false)
		related, err := r.pipeline.FindRelated(ctx, domain.RetrievalRequest{
			QueryText: query.Content,
			TopK:      topK,
		})
		if related != nil {
			ledger.Add(related.Usage)
		}
		if err != nil {
			logger.Error("Retrieval failed for query %s %q: %v", query.Label(), query.Preview(60), err)
			tracker.move(domain.RunStateFailed, i, &query, nil, false)
			r.writePartial(report, opts)
			return finish(fmt.Errorf("%w: retrieve for query %s: %w", domain.ErrRunAborted, query.Label(), err))
		}

		for j := range related.Chunks {
			passage := related.Chunks[j]
			tracker.move(domain.RunStateAnalyzing, i, &query, &passage, false)

			rec, cached, err := r.analysePair(ctx, ledger, report.RunID, query, passage, promptName, opts.Fresh)
			if err != nil {
				if !continueOnError || ctx.Err() != nil {
					logger.Error("Aborting run at query %s, passage %s", query.Label(), passage.Label())
					tracker.move(domain.RunStateFailed, i, &query, &passage, false)
					r.writePartial(report, opts)
					return finish(fmt.Errorf("%w: query %s, passage %s: %w",
						domain.ErrRunAborted, query.Label(), passage.Label(), err))
				}
				logger.Warn("Recording failed pair (query %s, passage %s): %v",
					query.Label(), passage.Label(), err)
				report.Failures++
			}
			if cached {
				report.Resumed++
			}

			report.Records = append(report.Records, rec)
			tracker.move(domain.RunStateRecorded, i, &query, &passage, cached)
		}
	}

	path, err := r.writeResults(report.Records, opts)
	if err != nil {
		tracker.move(domain.RunStateFailed, len(queries), nil, nil, false)
		return finish(err)
	}
	report.OutputPath = path

	tracker.move(domain.RunStateDone, len(queries), nil, nil, false)
	logger.Info("Run %s finished: %d records, %d failures, %d resumed",
		report.RunID, len(report.Records), report.Failures, report.Resumed)
	return finish(nil)
}

// analysePair returns the record for one pair, from the checkpoint store when
// possible. A failed analysis still yields a record carrying the error.
func (r *Runner) analysePair(
	ctx context.Context,
	ledger *UsageLedger,
	runID string,
	query, passage domain.Chunk,
	promptName string,
	fresh bool,
) (domain.ResultRecord, bool, error) {
	key := pairKey(query.Content, passage, promptName, r.settings.LLM.Model)

	if r.checkpoints != nil && !fresh {
		stored, ok, err := r.checkpoints.Get(ctx, key)
		if err != nil {
			logger.Warn("Checkpoint lookup failed: %v", err)
		} else if ok {
			rec := *stored
			rec.RunID = runID
			rec.Query = query
			rec.Passage = passage
			logger.Debug("Reusing checkpointed analysis for passage %s", passage.Label())
			return rec, true, nil
		}
	}

	resp, err := r.pipeline.Analyze(ctx, domain.AnalysisRequest{
		QueryText:      query.Content,
		Chunk:          passage,
		PromptTemplate: promptName,
	})

	rec := domain.ResultRecord{
		RunID:          runID,
		Query:          query,
		Passage:        passage,
		PromptTemplate: promptName,
		Model:          r.settings.LLM.Model,
		RecordedAt:     r.now(),
	}
	if resp != nil {
		ledger.Add(resp.Usage)
		if resp.Model != "" {
			rec.Model = resp.Model
		}
		rec.Result = resp.Result
	}
	if err != nil {
		rec.Error = err.Error()
		return rec, false, err
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.Put(ctx, key, rec); err != nil {
			logger.Warn("Checkpoint write failed: %v", err)
		}
	}
	return rec, false, nil
}

// IndexCorpus loads the corpus chunk file, indexes it and writes newly
// computed embeddings back to the file.
func (r *Runner) IndexCorpus(ctx context.Context) (int, domain.Usage, error) {
	path := r.settings.Paths.CorpusFile
	corpus, report, err := r.chunks.Load(path)
	if err != nil {
		return 0, domain.Usage{}, fmt.Errorf("load corpus chunks: %w", err)
	}

	resp, err := r.pipeline.Index(ctx, domain.IndexRequest{Chunks: corpus})
	var usage domain.Usage
	if resp != nil {
		usage = resp.Usage
	}
	if err != nil {
		return 0, usage, fmt.Errorf("index corpus: %w", err)
	}

	if report.WithEmbeddings < len(resp.Chunks) {
		if err := r.chunks.Save(path, resp.Chunks); err != nil {
			return 0, usage, fmt.Errorf("save corpus embeddings: %w", err)
		}
		logger.Info("Saved %d embeddings to %s", len(resp.Chunks)-report.WithEmbeddings, path)
	}

	return len(resp.Chunks), usage, nil
}

func (r *Runner) writePartial(report *domain.RunReport, opts domain.RunOptions) {
	if len(report.Records) == 0 {
		return
	}
	path, err := r.writeResults(report.Records, opts)
	if err != nil {
		logger.Warn("Could not write partial results: %v", err)
		return
	}
	report.OutputPath = path
}

func (r *Runner) writeResults(records []domain.ResultRecord, opts domain.RunOptions) (string, error) {
	path := opts.OutputPath
	if path == "" {
		name := "intertextual_analysis_" + r.now().Format("20060102_150405") + r.results.Extension()
		path = filepath.Join(r.settings.Paths.ResultsDir, name)
	}

	columns, rows := BuildResultTable(records)
	if err := r.results.Write(path, columns, rows); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}

// pairKey identifies an analysis by everything that determines its outcome.
// The similarity tag and score are rendered into the prompt, so the same
// passage retrieved as both similar and dissimilar yields two keys.
func pairKey(queryText string, passage domain.Chunk, promptName, model string) string {
	h := sha256.New()
	parts := []string{
		queryText,
		passage.Content,
		passage.SimilarityType.String(),
		strconv.FormatFloat(passage.Score, 'g', -1, 64),
		promptName,
		model,
	}
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
