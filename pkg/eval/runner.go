package eval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ncolesummers/wikihop/pkg/domain"
	"github.com/ncolesummers/wikihop/pkg/observability"
	"github.com/ncolesummers/wikihop/pkg/state"
)

// Solver runs one prepared session to completion
type Solver interface {
	Run(ctx context.Context, sess *state.Session) (*domain.SessionResult, error)
}

// RunnerConfig provides configuration for an evaluation run
type RunnerConfig struct {
	// Concurrency bounds the number of sessions in flight.
	Concurrency int
	Session     *state.Config
	// Metadata is completed with timings and totals and appended to the
	// run store when the run ends.
	Metadata domain.RunMetadata
}

// Runner evaluates benchmark questions, each in its own session
type Runner struct {
	solver  Solver
	store   domain.RunStore
	config  RunnerConfig
	metrics *observability.Metrics
	logger  observability.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRunnerMetrics records one eval_questions_total sample per question
func WithRunnerMetrics(m *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithRunnerLogger sets the runner logger
func WithRunnerLogger(l observability.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates an evaluation runner
func NewRunner(solver Solver, store domain.RunStore, config RunnerConfig, opts ...RunnerOption) (*Runner, error) {
	if solver == nil {
		return nil, fmt.Errorf("solver is required")
	}
	if store == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Session == nil {
		config.Session = state.DefaultConfig()
	}

	r := &Runner{
		solver: solver,
		store:  store,
		config: config,
		logger: observability.NewStructuredLogger("eval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run evaluates every question and returns one record per question in
// input order. Session failures are recorded, not returned; the error
// reports store failures or cancellation.
func (r *Runner) Run(ctx context.Context, questions []domain.BenchmarkQuestion) ([]domain.EvalRecord, error) {
	meta := r.config.Metadata
	meta.StartedAt = time.Now()
	meta.SampleSize = len(questions)
	meta.Concurrency = r.config.Concurrency

	if err := r.store.SaveQuestions(ctx, questions); err != nil {
		return nil, fmt.Errorf("failed to save questions: %w", err)
	}

	var (
		mu      sync.Mutex
		records = make([]domain.EvalRecord, len(questions))
		done    = make([]bool, len(questions))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for i, q := range questions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.logger.Info(gctx, "Evaluating question", map[string]interface{}{
				"question_id": q.ID,
				"position":    fmt.Sprintf("%d/%d", i+1, len(questions)),
			})

			rec, result := r.evaluate(gctx, q)
			if result != nil {
				if err := r.store.SaveTrace(gctx, q.ID, result); err != nil {
					return fmt.Errorf("failed to save trace for %s: %w", q.ID, err)
				}
			}
			if r.metrics != nil {
				r.metrics.RecordEvalQuestion(gctx, rec.Success, rec.AgentAnswer != nil)
			}

			mu.Lock()
			defer mu.Unlock()
			records[i] = rec
			done[i] = true
			if err := r.store.SaveResponses(gctx, completed(records, done)); err != nil {
				return fmt.Errorf("failed to save responses: %w", err)
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	out := completed(records, done)
	summary := Analyze(out)
	meta.CompletedAt = time.Now()
	meta.Total = summary.Total
	meta.Successful = summary.Successful
	meta.Answered = summary.Answered
	if err := r.store.AppendMetadata(context.WithoutCancel(ctx), meta); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to append run metadata: %w", err)
	}

	r.logger.Info(ctx, "Evaluation run finished", map[string]interface{}{
		"run_id":     meta.RunID,
		"total":      summary.Total,
		"successful": summary.Successful,
		"answered":   summary.Answered,
	})
	return out, runErr
}

// evaluate solves one question. A panicking or failing session becomes a
// record with Success false.
func (r *Runner) evaluate(ctx context.Context, q domain.BenchmarkQuestion) (rec domain.EvalRecord, result *domain.SessionResult) {
	rec = domain.EvalRecord{
		QuestionID:   q.ID,
		QuestionText: q.Question,
		GroundTruth:  q.Answer,
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			rec.Success = false
			rec.Error = fmt.Sprintf("session panicked: %v", p)
			result = nil
		}
		rec.DurationSeconds = time.Since(start).Seconds()
	}()

	sess := state.NewSession(q.ID, q.Question, r.config.Session)
	result, err := r.solver.Run(ctx, sess)
	if result != nil {
		rec.AgentAnswer = result.FinalAnswer
		rec.State = result.State
		rec.TraceSummary = fmt.Sprintf("Used %d steps.", len(result.Trace))
		rec.FullTrace = result.Trace
		rec.KnowledgeTree = result.TreeState
		rec.Plan = result.PlanState
	}
	if err != nil {
		rec.Error = err.Error()
		r.logger.Error(ctx, "Question failed", err, map[string]interface{}{"question_id": q.ID})
		return rec, result
	}
	rec.Success = true
	return rec, result
}

func completed(records []domain.EvalRecord, done []bool) []domain.EvalRecord {
	out := make([]domain.EvalRecord, 0, len(records))
	for i, ok := range done {
		if ok {
			out = append(out, records[i])
		}
	}
	return out
}
