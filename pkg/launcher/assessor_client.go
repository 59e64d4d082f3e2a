package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finarena/finarena/internal/core/domain"
	"github.com/finarena/finarena/pkg/a2a"
)

// AssessorClient is the launcher's channel to the assessor agent. It
// translates transport-level failures into run-fatal errors: an unreachable
// assessor aborts the run, while in-protocol errors stay per-question.
type AssessorClient struct {
	client *a2a.Client
}

func NewAssessorClient(baseURL string, timeout time.Duration) *AssessorClient {
	return &AssessorClient{client: a2a.NewClient(baseURL, timeout)}
}

// DatasetInfo reports the assessor's loaded dataset size.
func (c *AssessorClient) DatasetInfo(ctx context.Context) (int, error) {
	var resp a2a.DatasetInfoResponse
	if err := c.client.Call(ctx, a2a.MethodDatasetInfo, struct{}{}, &resp); err != nil {
		return 0, classify(err)
	}
	return resp.Size, nil
}

// EvaluateTask asks the assessor to evaluate one question end to end.
func (c *AssessorClient) EvaluateTask(ctx context.Context, index int) (domain.EvaluationRecord, error) {
	var record domain.EvaluationRecord
	req := a2a.EvaluateTaskRequest{TaskIndex: index}
	if err := c.client.Call(ctx, a2a.MethodEvaluateTask, req, &record); err != nil {
		return domain.EvaluationRecord{}, classify(err)
	}
	return record, nil
}

// Reset clears the assessor's per-run state.
func (c *AssessorClient) Reset(ctx context.Context) error {
	if err := c.client.Reset(ctx); err != nil {
		return fmt.Errorf("reset assessor: %w", err)
	}
	return nil
}

func classify(err error) error {
	var transport *a2a.TransportError
	if errors.As(err, &transport) {
		return &domain.RunFatalError{Err: err}
	}
	return err
}
