package assessor

import (
	"context"
	"fmt"
	"time"

	"github.com/finarena/finarena/pkg/a2a"
)

// ExecutorClient dispatches questions to the executor agent over the a2a
// protocol. It satisfies services.ExecutorChannel.
type ExecutorClient struct {
	client *a2a.Client
}

func NewExecutorClient(baseURL string, timeout time.Duration) *ExecutorClient {
	return &ExecutorClient{client: a2a.NewClient(baseURL, timeout)}
}

// Ask sends one question plus the tool endpoint and waits for the final
// answer.
func (c *ExecutorClient) Ask(ctx context.Context, question, toolEndpoint string) (string, error) {
	var resp a2a.QuestionResponse
	req := a2a.QuestionRequest{Question: question, ToolEndpoint: toolEndpoint}
	if err := c.client.Call(ctx, a2a.MethodAskQuestion, req, &resp); err != nil {
		return "", fmt.Errorf("ask executor: %w", err)
	}
	if resp.Status != "completed" {
		return "", fmt.Errorf("executor reported %q: %s", resp.Status, resp.Message)
	}
	return resp.Answer, nil
}
