// Package duckdb persists evaluation runs and their per-question results.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/internal/core/ports"
)

type Repository struct {
	db *sql.DB
}

var _ ports.ResultRepository = (*Repository)(nil)

// NewRepository opens (or creates) the database at path and runs the
// schema migration.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the database handle.
func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id            VARCHAR PRIMARY KEY,
			metric        VARCHAR,
			value         DOUBLE,
			total_tasks   INTEGER,
			correct_tasks INTEGER,
			aborted       BOOLEAN,
			started_at    TIMESTAMP,
			finished_at   TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id     VARCHAR,
			task_index INTEGER,
			question   VARCHAR,
			expected   VARCHAR,
			predicted  VARCHAR,
			correct    BOOLEAN,
			score      DOUBLE,
			match_type VARCHAR,
			reasoning  VARCHAR,
			created_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateRun registers a new run before any records are appended.
func (r *Repository) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, metric, value, total_tasks, correct_tasks, aborted, started_at, finished_at)
		VALUES (?, 'accuracy', 0, 0, 0, FALSE, ?, NULL)`,
		runID, startedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// AppendRecord appends one EvaluationRecord to a run's result table.
func (r *Repository) AppendRecord(ctx context.Context, runID string, rec domain.EvaluationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results (run_id, task_index, question, expected, predicted,
		                     correct, score, match_type, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.TaskIndex, rec.Question, rec.Expected, rec.Predicted,
		rec.Correct, rec.Score, string(rec.MatchType), rec.Reasoning, time.Now())
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// FinishRun writes the aggregate summary for a completed or aborted run.
func (r *Repository) FinishRun(ctx context.Context, report *domain.RunReport) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET value = ?, total_tasks = ?, correct_tasks = ?, aborted = ?, finished_at = ?
		WHERE id = ?`,
		report.Value, report.TotalTasks, report.CorrectTasks, report.Aborted,
		report.FinishedAt, report.RunID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetReport loads a run summary with all its records in task order.
func (r *Repository) GetReport(ctx context.Context, runID string) (*domain.RunReport, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, metric, value, total_tasks, correct_tasks, aborted, started_at, finished_at
		FROM runs WHERE id = ?`, runID)

	var report domain.RunReport
	var finishedAt sql.NullTime
	err := row.Scan(&report.RunID, &report.Metric, &report.Value,
		&report.TotalTasks, &report.CorrectTasks, &report.Aborted,
		&report.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if finishedAt.Valid {
		report.FinishedAt = finishedAt.Time
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT task_index, question, expected, predicted, correct, score, match_type, reasoning
		FROM results WHERE run_id = ?
		ORDER BY task_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.EvaluationRecord
		var matchType string
		err := rows.Scan(&rec.TaskIndex, &rec.Question, &rec.Expected, &rec.Predicted,
			&rec.Correct, &rec.Score, &matchType, &rec.Reasoning)
		if err != nil {
			return nil, err
		}
		rec.MatchType = domain.MatchType(matchType)
		report.Records = append(report.Records, rec)
	}
	return &report, rows.Err()
}
