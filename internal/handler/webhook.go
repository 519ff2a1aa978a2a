package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
	"github.com/openclaw/intake-bot-go/internal/gateway"
	"github.com/openclaw/intake-bot-go/internal/httputil"
)

// turnTimeout bounds one dialogue turn, including any agent run it kicks
// off. Agent jobs are long; webhooks are not, so the turn runs detached.
const turnTimeout = 10 * time.Minute

// WebhookHandler accepts inbound message events from the chat transport.
type WebhookHandler struct {
	gateway *gateway.Gateway
}

func NewWebhookHandler(gw *gateway.Gateway) *WebhookHandler {
	return &WebhookHandler{gateway: gw}
}

// Webhook decodes one event and acknowledges immediately; the dialogue turn
// proceeds in the background so slow agent runs never stall the transport.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event gateway.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed event payload").WithCause(err))
		return
	}
	if event.UserID == "" || event.ChannelID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("userId and channelId"))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("userId", event.UserID).Msg("dialogue turn panicked")
			}
		}()
		h.gateway.HandleEvent(ctx, event)
	}()

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
