package duckdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finarena/finarena/internal/core/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	startedAt := time.Now()

	require.NoError(t, repo.CreateRun(ctx, "run-1", startedAt))

	records := []domain.EvaluationRecord{
		{TaskIndex: 0, Question: "revenue?", Expected: "150 million", Predicted: "150M", Correct: true, Score: 0.9, MatchType: domain.MatchSemantic, Reasoning: "equivalent"},
		{TaskIndex: 1, Question: "ceo?", Expected: "Jensen Huang", Predicted: "", Correct: false, Score: 0, MatchType: domain.MatchFailure, Reasoning: "dispatch failed"},
	}
	for _, rec := range records {
		require.NoError(t, repo.AppendRecord(ctx, "run-1", rec))
	}

	report := domain.BuildReport("run-1", records, startedAt, time.Now(), false)
	require.NoError(t, repo.FinishRun(ctx, report))

	got, err := repo.GetReport(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "accuracy", got.Metric)
	assert.InDelta(t, 0.5, got.Value, 1e-9)
	assert.Equal(t, 2, got.TotalTasks)
	assert.Equal(t, 1, got.CorrectTasks)
	assert.False(t, got.Aborted)

	require.Len(t, got.Records, 2)
	assert.Equal(t, 0, got.Records[0].TaskIndex)
	assert.Equal(t, domain.MatchSemantic, got.Records[0].MatchType)
	assert.Equal(t, "dispatch failed", got.Records[1].Reasoning)
}

func TestRecordsOrderedByTaskIndex(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, "run-2", time.Now()))
	for _, idx := range []int{2, 0, 1} {
		require.NoError(t, repo.AppendRecord(ctx, "run-2", domain.EvaluationRecord{TaskIndex: idx, MatchType: domain.MatchExact}))
	}
	require.NoError(t, repo.FinishRun(ctx, domain.BuildReport("run-2", nil, time.Now(), time.Now(), false)))

	got, err := repo.GetReport(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, got.Records, 3)
	for i, rec := range got.Records {
		assert.Equal(t, i, rec.TaskIndex)
	}
}

func TestGetReportUnknownRun(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetReport(context.Background(), "nope")
	assert.ErrorContains(t, err, "run not found")
}
