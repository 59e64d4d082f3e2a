package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
)

// TraceLog appends finished conversation transcripts to a JSONL file. It is
// the only place a ConversationState outlives its question.
type TraceLog struct {
	logger *slog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewTraceLog opens (or creates) the trace file in append mode.
func NewTraceLog(logger *slog.Logger, path string) (*TraceLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &TraceLog{logger: logger, file: file}, nil
}

// Record writes one transcript as a single JSON line. Trace failures are
// logged, never surfaced: tracing must not affect evaluation.
func (t *TraceLog) Record(conv *domain.ConversationState) {
	if t == nil || conv == nil {
		return
	}
	entry := struct {
		At       time.Time     `json:"at"`
		Question string        `json:"question"`
		Turns    []domain.Turn `json:"turns"`
	}{time.Now(), conv.Question, conv.Turns}

	line, err := json.Marshal(entry)
	if err != nil {
		t.logger.Warn("trace marshal failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		t.logger.Warn("trace write failed", "error", err)
	}
}

// Close flushes and closes the trace file.
func (t *TraceLog) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
