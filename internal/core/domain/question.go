// Package domain holds the core types of the evaluation arena: questions,
// tools, conversation transcripts and run results.
package domain

import "time"

// Question is one row of the benchmark dataset.
type Question struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Expected string `json:"expected"`
}

// MatchType records how a verdict was reached.
type MatchType string

const (
	// MatchExact means the normalized expected and predicted strings were
	// identical. Deterministic, no model call involved.
	MatchExact MatchType = "exact"

	// MatchSemantic means the verdict came from the LLM judge.
	MatchSemantic MatchType = "llm_semantic"

	// MatchFailure means the question could not be judged (dispatch or
	// judge failure). Always scored as incorrect.
	MatchFailure MatchType = "error"
)

// EvaluationRecord is the judged outcome of one question.
type EvaluationRecord struct {
	TaskIndex int       `json:"task_index"`
	Question  string    `json:"question"`
	Expected  string    `json:"expected"`
	Predicted string    `json:"predicted"`
	Correct   bool      `json:"correct"`
	Score     float64   `json:"score"`
	MatchType MatchType `json:"match_type"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// RunReport is the aggregate summary of one evaluation run.
type RunReport struct {
	RunID        string             `json:"run_id"`
	Metric       string             `json:"metric"`
	Value        float64            `json:"value"`
	TotalTasks   int                `json:"total_tasks"`
	CorrectTasks int                `json:"correct_tasks"`
	Aborted      bool               `json:"aborted"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Records      []EvaluationRecord `json:"records"`
}

// BuildReport aggregates records into a run summary. Accuracy counts every
// record in the denominator, failed and incomplete ones included.
func BuildReport(runID string, records []EvaluationRecord, startedAt, finishedAt time.Time, aborted bool) *RunReport {
	correct := 0
	for _, rec := range records {
		if rec.Correct {
			correct++
		}
	}
	value := 0.0
	if len(records) > 0 {
		value = float64(correct) / float64(len(records))
	}
	return &RunReport{
		RunID:        runID,
		Metric:       "accuracy",
		Value:        value,
		TotalTasks:   len(records),
		CorrectTasks: correct,
		Aborted:      aborted,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Records:      records,
	}
}
