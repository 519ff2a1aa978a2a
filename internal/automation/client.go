package automation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
)

const runSSEPath = "/v1/automation/run-sse"

// Client talks to the agent's streaming run endpoint. The run is a single
// long-lived POST whose response body is an SSE stream; the terminal COMPLETE
// event carries the result.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	onEvent    EventFunc
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithEventFunc registers an observer for streamed progress events.
func WithEventFunc(fn EventFunc) ClientOption {
	return func(c *Client) { c.onEvent = fn }
}

func NewClient(apiKey, baseURL string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, apperrors.MissingRequired("agent API key")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No overall timeout: agent runs are long-lived. Cancellation comes
		// from the caller's context.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validateRequest(req Request) error {
	if req.PortalURL == "" {
		return apperrors.MissingRequired("portalUrl")
	}
	if req.Goal == "" {
		return apperrors.MissingRequired("goal")
	}
	return nil
}

// Run issues the job and blocks until the agent reports completion or the
// stream ends.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Internal("failed to encode agent request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+runSSEPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal("failed to build agent request").WithCause(err)
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.External("automation agent", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.External("automation agent", fmt.Errorf("agent HTTP %d", resp.StatusCode))
	}

	result := c.consumeStream(resp.Body)
	log.Debug().
		Dur("elapsed", time.Since(started)).
		Bool("success", result.Success).
		Int("events", len(result.Events)).
		Msg("agent run finished")
	return result, nil
}

// consumeStream reads SSE blocks until a COMPLETE event or end of stream.
func (c *Client) consumeStream(body io.Reader) *Result {
	events := make([]map[string]any, 0, 16)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimSpace(line[len("data: "):])
		if payload == "" {
			continue
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			event = map[string]any{"type": "PARSE_ERROR", "raw": payload}
			events = append(events, event)
			if c.onEvent != nil {
				c.onEvent(event)
			}
			continue
		}

		events = append(events, event)
		if c.onEvent != nil {
			c.onEvent(event)
		}

		if stringField(event, "type") == "COMPLETE" {
			return &Result{
				Success:      stringField(event, "status") == "COMPLETED",
				Confirmation: confirmationArtifact(event),
				Raw:          event,
				Events:       events,
			}
		}
	}

	// Stream ended without a COMPLETE event.
	return &Result{
		Success: false,
		Raw:     map[string]any{"type": "END_OF_STREAM"},
		Events:  events,
	}
}

func stringField(event map[string]any, key string) string {
	if s, ok := event[key].(string); ok {
		return s
	}
	return ""
}

// confirmationArtifact pulls a confirmation image reference (URL or data URI)
// from the terminal event when the agent attaches one.
func confirmationArtifact(event map[string]any) string {
	for _, key := range []string{"confirmation", "screenshot", "screenshotUrl"} {
		if s := stringField(event, key); s != "" {
			return s
		}
	}
	return ""
}
