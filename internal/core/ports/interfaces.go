package ports

import (
	"context"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
)

// LLMClient abstracts the inference backend (remote OpenAI-compatible API
// or local model). Implementations retry timeouts and rate limits a small
// bounded number of times with backoff before surfacing the error.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// DatasetLoader produces the ordered question set. Rows are assumed already
// validated (non-empty text, unique index).
type DatasetLoader interface {
	Load(ctx context.Context) ([]domain.Question, error)
}

// ResultRepository persists the per-run result table. Records are appended
// by a single writer (the launcher's run loop) and never mutated after the
// run completes.
type ResultRepository interface {
	CreateRun(ctx context.Context, runID string, startedAt time.Time) error
	AppendRecord(ctx context.Context, runID string, rec domain.EvaluationRecord) error
	FinishRun(ctx context.Context, report *domain.RunReport) error
	GetReport(ctx context.Context, runID string) (*domain.RunReport, error)
}

// FilingCache is the on-disk cache shared across questions. Reads of a key
// never written report absent; writes are atomic replaces, never partial.
type FilingCache interface {
	Get(key string) (data []byte, ok bool, err error)
	Put(key string, data []byte) error
}
