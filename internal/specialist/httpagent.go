package specialist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmont3/veramkt-sub001/domain"
)

// HTTPAgent executes tasks against a remote specialist worker over HTTP.
// Structured JSON in, structured JSON out; any free-text parsing of model
// output is the worker's problem, not the orchestrator's.
type HTTPAgent struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPAgent creates a specialist backed by a worker endpoint.
func NewHTTPAgent(endpoint string, timeout time.Duration) *HTTPAgent {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPAgent{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	TaskType domain.TaskType `json:"task_type"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type executeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Execute posts the task to the worker's /execute endpoint.
func (a *HTTPAgent) Execute(ctx context.Context, taskType domain.TaskType, data json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(executeRequest{TaskType: taskType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke specialist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("specialist returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode specialist response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("specialist error: %s", out.Error)
	}
	return out.Result, nil
}
