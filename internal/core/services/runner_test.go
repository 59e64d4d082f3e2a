package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finarena/finarena/internal/core/domain"
)

type stubAssessor struct {
	mu      sync.Mutex
	size    int
	errs    map[int]error
	block   chan struct{} // when set, EvaluateTask waits on ctx or this
	asked   []int
	sizeErr error
}

func (s *stubAssessor) DatasetInfo(ctx context.Context) (int, error) {
	return s.size, s.sizeErr
}

func (s *stubAssessor) EvaluateTask(ctx context.Context, index int) (domain.EvaluationRecord, error) {
	s.mu.Lock()
	s.asked = append(s.asked, index)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return domain.EvaluationRecord{}, ctx.Err()
		case <-block:
		}
	}
	if err := s.errs[index]; err != nil {
		return domain.EvaluationRecord{}, err
	}
	return domain.EvaluationRecord{
		TaskIndex: index,
		Question:  fmt.Sprintf("question %d", index),
		Correct:   true,
		Score:     1,
		MatchType: domain.MatchExact,
	}, nil
}

func (s *stubAssessor) Reset(ctx context.Context) error { return nil }

func waitForRun(t *testing.T, r *Runner) {
	t.Helper()
	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
}

func TestRunnerOneRecordPerQuestion(t *testing.T) {
	assessor := &stubAssessor{size: 3}
	runner := NewRunner(testLogger(), assessor, nil, "")

	runID, err := runner.Start(0)
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	waitForRun(t, runner)

	records := runner.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []int{0, 1, 2}, assessor.asked)

	report := runner.Report()
	require.NotNil(t, report)
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, 3, report.TotalTasks)
	assert.Equal(t, 3, report.CorrectTasks)
	assert.InDelta(t, 1.0, report.Value, 1e-9)
	assert.False(t, report.Aborted)
}

func TestRunnerHonorsNumTasks(t *testing.T) {
	assessor := &stubAssessor{size: 10}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(2)
	require.NoError(t, err)
	waitForRun(t, runner)

	assert.Len(t, runner.Records(), 2)
}

func TestRunnerPerQuestionFailureContinues(t *testing.T) {
	assessor := &stubAssessor{
		size: 3,
		errs: map[int]error{1: fmt.Errorf("executor reported error")},
	}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(0)
	require.NoError(t, err)
	waitForRun(t, runner)

	records := runner.Records()
	require.Len(t, records, 3)
	assert.False(t, records[1].Correct)
	assert.Equal(t, domain.MatchFailure, records[1].MatchType)
	assert.True(t, records[2].Correct, "run must continue past a failed question")
}

func TestRunnerFatalErrorAbortsAndFlushes(t *testing.T) {
	assessor := &stubAssessor{
		size: 5,
		errs: map[int]error{2: &domain.RunFatalError{Err: fmt.Errorf("assessor unreachable")}},
	}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(0)
	require.NoError(t, err)
	waitForRun(t, runner)

	// Every dispatched question yields a record, the fatally-failed one
	// included; nothing past it is attempted.
	records := runner.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []int{0, 1, 2}, assessor.asked)
	assert.False(t, records[2].Correct)
	assert.Equal(t, domain.MatchFailure, records[2].MatchType)
	assert.Contains(t, records[2].Reasoning, "assessor unreachable")

	report := runner.Report()
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 3, report.TotalTasks)
	assert.Equal(t, 2, report.CorrectTasks)
}

func TestRunnerCancellationMarksIncomplete(t *testing.T) {
	assessor := &stubAssessor{size: 3, block: make(chan struct{})}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(0)
	require.NoError(t, err)

	// Wait until the first question is in flight, then cancel.
	require.Eventually(t, func() bool {
		assessor.mu.Lock()
		defer assessor.mu.Unlock()
		return len(assessor.asked) == 1
	}, 5*time.Second, 10*time.Millisecond)
	runner.Cancel()
	waitForRun(t, runner)

	records := runner.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.MatchFailure, records[0].MatchType)
	assert.Contains(t, records[0].Reasoning, "cancelled")

	report := runner.Report()
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
}

func TestRunnerRejectsOverlappingRuns(t *testing.T) {
	assessor := &stubAssessor{size: 1, block: make(chan struct{})}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(0)
	require.NoError(t, err)

	_, err = runner.Start(0)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	assert.ErrorIs(t, runner.Reset(), domain.ErrRunInProgress)

	close(assessor.block)
	waitForRun(t, runner)
}

func TestRunnerResetClearsRecords(t *testing.T) {
	assessor := &stubAssessor{size: 2}
	runner := NewRunner(testLogger(), assessor, nil, "")

	_, err := runner.Start(0)
	require.NoError(t, err)
	waitForRun(t, runner)
	require.Len(t, runner.Records(), 2)

	require.NoError(t, runner.Reset())
	assert.Empty(t, runner.Records())
	assert.Nil(t, runner.Report())
}
