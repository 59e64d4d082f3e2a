package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

// AssessorChannel is the launcher's view of the assessor agent.
type AssessorChannel interface {
	DatasetInfo(ctx context.Context) (int, error)
	EvaluateTask(ctx context.Context, index int) (domain.EvaluationRecord, error)
	Reset(ctx context.Context) error
}

// Runner owns the evaluation run loop: serial dispatch of questions to the
// assessor, the append-only record set, and report persistence. It is the
// single writer of records for a run.
type Runner struct {
	logger     *slog.Logger
	assessor   AssessorChannel
	repo       ports.ResultRepository
	reportPath string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	records []domain.EvaluationRecord
	report  *domain.RunReport
}

func NewRunner(logger *slog.Logger, assessor AssessorChannel, repo ports.ResultRepository, reportPath string) *Runner {
	return &Runner{
		logger:     logger,
		assessor:   assessor,
		repo:       repo,
		reportPath: reportPath,
	}
}

// Start launches a run in the background and returns its ID immediately.
// numTasks <= 0 means the whole dataset. At most one run at a time.
func (r *Runner) Start(numTasks int) (string, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return "", domain.ErrRunInProgress
	}
	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.records = nil
	r.report = nil
	r.mu.Unlock()

	go func() {
		defer cancel()
		if err := r.run(ctx, runID, numTasks); err != nil {
			r.logger.Error("evaluation run failed", "run_id", runID, "error", err)
		}
		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	return runID, nil
}

// Cancel stops the in-flight run, if any. The current question's record is
// marked incomplete rather than dropped.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Records returns a copy of the records accumulated so far.
func (r *Runner) Records() []domain.EvaluationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EvaluationRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Report returns the last finished run's report, if any.
func (r *Runner) Report() *domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}

// Reset clears accumulated records between runs.
func (r *Runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return domain.ErrRunInProgress
	}
	r.records = nil
	r.report = nil
	return nil
}

func (r *Runner) run(ctx context.Context, runID string, numTasks int) error {
	startedAt := time.Now()
	r.logger.Info("evaluation run started", "run_id", runID, "num_tasks", numTasks)

	if r.repo != nil {
		if err := r.repo.CreateRun(ctx, runID, startedAt); err != nil {
			r.logger.Error("run persistence failed", "run_id", runID, "error", err)
		}
	}

	size, err := r.assessor.DatasetInfo(ctx)
	if err != nil {
		return r.finish(runID, startedAt, true, fmt.Errorf("dataset info: %w", err))
	}
	if numTasks <= 0 || numTasks > size {
		numTasks = size
	}

	aborted := false
	var fatalErr error

	for i := 0; i < numTasks; i++ {
		rec, err := r.assessor.EvaluateTask(ctx, i)
		if err != nil {
			q := fmt.Sprintf("task %d", i)
			switch {
			case ctx.Err() != nil:
				// Cancelled mid-question: one incomplete record, then stop.
				r.appendRecord(ctx, runID, domain.EvaluationRecord{
					TaskIndex: i,
					Question:  q,
					MatchType: domain.MatchFailure,
					Reasoning: "run cancelled before completion",
				})
				aborted = true
			case isRunFatal(err):
				// The question was dispatched, so it still gets its record.
				r.logger.Error("run-fatal failure", "run_id", runID, "task_index", i, "error", err)
				r.appendRecord(ctx, runID, domain.EvaluationRecord{
					TaskIndex: i,
					Question:  q,
					MatchType: domain.MatchFailure,
					Reasoning: err.Error(),
				})
				aborted = true
				fatalErr = err
			default:
				// Per-question failure: record it and keep going.
				r.appendRecord(ctx, runID, domain.EvaluationRecord{
					TaskIndex: i,
					Question:  q,
					MatchType: domain.MatchFailure,
					Reasoning: err.Error(),
				})
				continue
			}
			break
		}
		r.appendRecord(ctx, runID, rec)
	}

	if err := r.finish(runID, startedAt, aborted, fatalErr); err != nil {
		return err
	}
	return fatalErr
}

func (r *Runner) appendRecord(ctx context.Context, runID string, rec domain.EvaluationRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.AppendRecord(context.WithoutCancel(ctx), runID, rec); err != nil {
			r.logger.Error("record persistence failed", "run_id", runID, "task_index", rec.TaskIndex, "error", err)
		}
	}
}

// finish builds and persists the report, partial records included. It runs
// even for aborted runs so no judged answer is lost.
func (r *Runner) finish(runID string, startedAt time.Time, aborted bool, cause error) error {
	r.mu.Lock()
	records := make([]domain.EvaluationRecord, len(r.records))
	copy(records, r.records)
	r.mu.Unlock()

	report := domain.BuildReport(runID, records, startedAt, time.Now(), aborted)

	r.mu.Lock()
	r.report = report
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.FinishRun(context.Background(), report); err != nil {
			r.logger.Error("run summary persistence failed", "run_id", runID, "error", err)
		}
	}

	if r.reportPath != "" {
		if err := r.writeReportFile(report); err != nil {
			r.logger.Error("report file write failed", "run_id", runID, "error", err)
		}
	}

	r.logger.Info("evaluation run complete",
		"run_id", runID,
		"metric", report.Metric,
		"value", report.Value,
		"total_tasks", report.TotalTasks,
		"correct_tasks", report.CorrectTasks,
		"aborted", report.Aborted)

	if cause != nil {
		return fmt.Errorf("run %s aborted: %w", runID, cause)
	}
	return nil
}

func (r *Runner) writeReportFile(report *domain.RunReport) error {
	if err := os.MkdirAll(filepath.Dir(r.reportPath), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(r.reportPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func isRunFatal(err error) bool {
	var fatal *domain.RunFatalError
	return errors.As(err, &fatal)
}
