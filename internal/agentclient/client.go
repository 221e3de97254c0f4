// Package agentclient implements the agent's HTTP client to the control
// server, grounded verbatim on the teacher's internal/pkg/client
// httpClient.doRequest retry loop, generalized to SPEC_FULL.md §5's
// exact backoff (initial 1s, ×2, 3 attempts) and its fire-and-forget
// heartbeat exception.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relaydev/commandhub/pkg/wire"
)

const (
	initialBackoff = 1 * time.Second
	maxAttempts    = 3
)

// Client talks to the control server on behalf of an agent.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Client targeting baseURL (SERVER_URL).
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Fetch calls POST /agent/fetch with retry.
func (c *Client) Fetch(ctx context.Context, agentID string) (*wire.Command, error) {
	var resp wire.FetchResponse
	if err := c.doWithRetry(ctx, "POST", "/agent/fetch", wire.FetchRequest{AgentID: agentID}, &resp); err != nil {
		return nil, err
	}
	return resp.Command, nil
}

// Sync calls POST /agent/sync with retry.
func (c *Client) Sync(ctx context.Context, agentID string) (*wire.Command, error) {
	var resp wire.SyncResponse
	if err := c.doWithRetry(ctx, "POST", "/agent/sync", wire.SyncRequest{AgentID: agentID}, &resp); err != nil {
		return nil, err
	}
	return resp.UnfinishedCommand, nil
}

// Report calls POST /agent/result with retry. A 409 conflict is not
// treated as a transport error — it decodes to a ResultResponse with
// Acknowledged false so the caller can distinguish "the server is
// unreachable" from "the server rejected this report".
func (c *Client) Report(ctx context.Context, req wire.ResultRequest) (*wire.ResultResponse, error) {
	var resp wire.ResultResponse
	if err := c.doWithRetry(ctx, "POST", "/agent/result", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat calls POST /agent/heartbeat exactly once, no retry —
// heartbeats are fire-and-forget per SPEC_FULL.md §5.
func (c *Client) Heartbeat(ctx context.Context, agentID, commandID string) {
	req := wire.HeartbeatRequest{AgentID: agentID, CommandID: commandID}
	var resp wire.HeartbeatResponse
	_ = c.doOnce(ctx, "POST", "/agent/heartbeat", req, &resp)
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body, out interface{}) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("request to %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
