package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/outcome"
	"github.com/openclaw/intake-bot-go/internal/store"
)

// statusPattern recognizes `status` / `request status` with an optional
// argument: a known filter word or a request identifier.
var statusPattern = regexp.MustCompile(`(?i)^(?:request\s+status|status)(?:\s+(.*))?$`)

const (
	openListLimit  = 5
	otherListLimit = 10
)

const (
	msgStatusNotFound       = "I couldn't find that request. Use `status` to list your recent requests, or give me the exact request id."
	msgStatusEmpty          = "You have no recorded requests yet."
	msgStatusLookupFailed   = "I couldn't retrieve request statuses right now. Please try again later."
	msgStatusNeedCreds      = "I don't have that request on file, so I'll check the portal directly. Send `portal URL, username, password` (comma separated) and I'll look it up."
	msgStatusCredsBadFormat = "That doesn't look right. Send exactly three comma-separated values: `portal URL, username, password`."
)

// Router answers out-of-band status commands ahead of the dialogue state
// machine. A handled command never reaches the flow.
type Router struct {
	requests  store.RequestStore
	runner    automation.Runner
	messenger messenger.Messenger
}

func NewRouter(requests store.RequestStore, runner automation.Runner, sender messenger.Messenger) *Router {
	return &Router{requests: requests, runner: runner, messenger: sender}
}

// ParseStatusCommand classifies a message as a status command, or returns
// nil when the message belongs to the dialogue.
func ParseStatusCommand(text string) *model.StatusQuery {
	match := statusPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return nil
	}

	arg := strings.TrimSpace(match[1])
	switch strings.ToLower(arg) {
	case "", "open":
		return &model.StatusQuery{Kind: "list", Filter: "open"}
	case "all":
		return &model.StatusQuery{Kind: "list", Filter: store.FilterAll}
	case "resolved":
		return &model.StatusQuery{Kind: "list", Filter: "resolved"}
	case "cancelled", "canceled":
		return &model.StatusQuery{Kind: "list", Filter: "cancelled"}
	}
	return &model.StatusQuery{Kind: "detail", Query: arg}
}

// Handle processes one message. It returns true when the message was a
// status command (or a pending credential answer) and was fully handled.
func (r *Router) Handle(ctx context.Context, sess *model.Session, channelID, text string) bool {
	if sess.Data.StatusLookupPending {
		r.handleCredentialAnswer(ctx, sess, channelID, text)
		return true
	}

	query := ParseStatusCommand(text)
	if query == nil {
		return false
	}

	if query.Kind == "list" {
		r.handleList(ctx, sess, channelID, *query)
		return true
	}
	r.handleDetail(ctx, sess, channelID, *query)
	return true
}

func (r *Router) handleList(ctx context.Context, sess *model.Session, channelID string, query model.StatusQuery) {
	requests, err := r.requests.List(ctx, sess.UserID, query.Filter)
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("request list failed")
		r.send(ctx, channelID, msgStatusLookupFailed)
		return
	}
	if len(requests) == 0 {
		r.send(ctx, channelID, msgStatusEmpty)
		return
	}

	limit := otherListLimit
	if strings.EqualFold(query.Filter, "open") {
		limit = openListLimit
	}
	total := len(requests)
	if len(requests) > limit {
		requests = requests[:limit]
	}

	label := strings.ToLower(query.Filter)
	if label == strings.ToLower(store.FilterAll) {
		label = "recorded"
	}
	lines := []string{fmt.Sprintf("Your %s requests (showing %d of %d):", label, len(requests), total)}
	for _, request := range requests {
		lines = append(lines, formatRequestLine(request))
	}
	r.send(ctx, channelID, strings.Join(lines, "\n"))
}

// handleDetail resolves one request: the local store first, then a live
// portal lookup when the id is unknown.
func (r *Router) handleDetail(ctx context.Context, sess *model.Session, channelID string, query model.StatusQuery) {
	request, err := r.requests.FindByID(ctx, sess.UserID, query.Query)
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("request lookup failed")
		r.send(ctx, channelID, msgStatusLookupFailed)
		return
	}
	if request != nil {
		r.send(ctx, channelID, formatRequestDetail(*request))
		return
	}

	sess.Data.StatusQuery = &query
	if hasPortalCredentials(sess.Data) {
		r.runLiveLookup(ctx, sess, channelID)
		return
	}
	sess.Data.StatusLookupPending = true
	r.send(ctx, channelID, msgStatusNeedCreds)
}

// handleCredentialAnswer consumes the comma-separated credential triple that
// a deferred live lookup is waiting on.
func (r *Router) handleCredentialAnswer(ctx context.Context, sess *model.Session, channelID, text string) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		r.send(ctx, channelID, msgStatusCredsBadFormat)
		return
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			r.send(ctx, channelID, msgStatusCredsBadFormat)
			return
		}
	}

	sess.Data.PortalURL = parts[0]
	sess.Data.Username = parts[1]
	sess.Data.Password = parts[2]
	sess.Data.StatusLookupPending = false
	r.runLiveLookup(ctx, sess, channelID)
}

func (r *Router) runLiveLookup(ctx context.Context, sess *model.Session, channelID string) {
	query := sess.Data.StatusQuery
	if query == nil {
		query = &model.StatusQuery{Kind: "list", Filter: "open"}
	}

	result, err := r.runner.Run(ctx, automation.Request{
		PortalURL: sess.Data.PortalURL,
		Goal:      automation.BuildStatusGoal(sess.Data, *query),
	})
	sess.Data.StatusQuery = nil
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("live status lookup failed")
		r.send(ctx, channelID, msgStatusLookupFailed)
		return
	}

	if message := outcome.ExtractStatusMessage(result); message != "" {
		r.send(ctx, channelID, message)
		return
	}
	r.send(ctx, channelID, msgStatusNotFound)
}

func hasPortalCredentials(data *model.SessionData) bool {
	return data.PortalURL != "" && data.Username != "" && data.Password != ""
}

func formatRequestLine(request model.StoredRequest) string {
	return fmt.Sprintf("- `%s` [%s] %s (%s)",
		request.ID, request.Status, truncate(request.IssueDescription, 80),
		request.CreatedAt.Format("2006-01-02"))
}

func formatRequestDetail(request model.StoredRequest) string {
	lines := []string{
		fmt.Sprintf("Request `%s`", request.ID),
		fmt.Sprintf("Status: %s", request.Status),
		fmt.Sprintf("Issue: %s", request.IssueDescription),
		fmt.Sprintf("Portal: %s", request.PortalURL),
		fmt.Sprintf("Submitted: %s", request.CreatedAt.Format("2006-01-02 15:04 MST")),
	}
	if request.Confirmation != "" && !strings.HasPrefix(request.Confirmation, "data:") {
		lines = append(lines, fmt.Sprintf("Confirmation: %s", request.Confirmation))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func (r *Router) send(ctx context.Context, channelID, text string) {
	if err := r.messenger.SendMessage(ctx, channelID, text); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msg("failed to send message")
	}
}
