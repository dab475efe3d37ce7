// Package replay posts a directory of recorded frames to a running server
// and reports how a session progresses through the routine.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/posematch/internal/domain/skeleton"
)

// Client talks to the posematch HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Progress is the cursor view of a session.
type Progress struct {
	Cursor  int    `json:"cursor"`
	Length  int    `json:"length"`
	Done    bool   `json:"done"`
	Current string `json:"current"`
}

// SessionState is a session as the server reports it.
type SessionState struct {
	ID       string   `json:"id"`
	Progress Progress `json:"progress"`
}

// FrameResult is the server response to one frame.
type FrameResult struct {
	Status    string   `json:"status"`
	Outcome   string   `json:"outcome"`
	Score     *float64 `json:"score"`
	Duplicate bool     `json:"duplicate"`
	Progress  Progress `json:"progress"`
	Events    []Event  `json:"events"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// CreateSession starts a session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (SessionState, error) {
	var out SessionState
	err := c.call(ctx, http.MethodPost, "/sessions", nil, http.StatusCreated, &out)
	return out, err
}

// Session fetches the state of session id.
func (c *Client) Session(ctx context.Context, id string) (SessionState, error) {
	var out SessionState
	err := c.call(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, http.StatusOK, &out)
	return out, err
}

// PostFrame submits one frame. Async frames are acknowledged, not scored.
func (c *Client) PostFrame(ctx context.Context, id, frameID string, rec skeleton.Record, async bool) (FrameResult, error) {
	path := "/sessions/" + url.PathEscape(id) + "/frames"
	want := http.StatusOK
	if async {
		path += "?async=true"
		want = http.StatusAccepted
	}
	body := struct {
		FrameID  string          `json:"frame_id"`
		Skeleton skeleton.Record `json:"skeleton"`
	}{FrameID: frameID, Skeleton: rec}

	var out FrameResult
	err := c.call(ctx, http.MethodPost, path, body, want, &out)
	if err != nil && async && out.Duplicate {
		// 200 with duplicate set is how the server acknowledges a repeat
		return out, nil
	}
	return out, err
}

func (c *Client) call(ctx context.Context, method, path string, in any, want int, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != want {
		_ = json.Unmarshal(data, out)
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("%w: %s %s: %d %s: %s", ErrStatus, method, path, resp.StatusCode, e.Code, e.Message)
		}
		return fmt.Errorf("%w: %s %s: %d", ErrStatus, method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
