package automation

import "context"

// Request is one job for the browser-automation agent: a portal to open and
// a natural-language goal that embeds credentials, issue details and the
// structured-response contract.
type Request struct {
	PortalURL string `json:"url"`
	Goal      string `json:"goal"`
}

// Result is the terminal state of one agent run. Raw carries the agent's
// final event verbatim; the outcome parser inspects it.
type Result struct {
	Success      bool             `json:"success"`
	Confirmation string           `json:"confirmation,omitempty"`
	Raw          map[string]any   `json:"raw"`
	Events       []map[string]any `json:"events,omitempty"`
}

// Runner executes one long-running agent job. Implementations must be safe
// for concurrent use by independent sessions.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// EventFunc observes streamed agent progress events.
type EventFunc func(event map[string]any)
