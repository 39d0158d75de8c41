package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tcmartin/flowexec/pkg/models"
)

// HTTPExecutor dispatches nodes to an external tool service over HTTP.
// Each node is posted to {baseURL}/{kind}/execute with its config and the
// run input; the service replies with a JSON object used as the node's
// output. Concrete tool behavior lives entirely on the remote side.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExecutor creates an executor targeting the given tool service.
// A nil client uses http.DefaultClient; no timeout is imposed here, the
// engine's run-level deadline is the only clock.
func NewHTTPExecutor(baseURL string, client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{baseURL: baseURL, client: client}
}

// Execute implements NodeExecutor.
func (e *HTTPExecutor) Execute(ctx context.Context, node models.Node, runCtx models.RunContext) (Result, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"node_id": node.ID,
		"config":  node.Config,
		"input":   runCtx.Input,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal node payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/execute", e.baseURL, node.Kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("tool service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read tool service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("tool service returned status %d: %s", resp.StatusCode, string(body))
	}

	output := map[string]interface{}{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &output); err != nil {
			return Result{}, fmt.Errorf("failed to decode tool service response: %w", err)
		}
	}

	return Result{Output: output}, nil
}
