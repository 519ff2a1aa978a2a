package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/automation"
	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
	"github.com/openclaw/intake-bot-go/internal/httputil"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/outcome"
	"github.com/openclaw/intake-bot-go/internal/secrets"
	"github.com/openclaw/intake-bot-go/internal/store"
)

// SubmitHandler exposes submission as a plain API: callers with a stored
// credential skip the dialogue entirely.
type SubmitHandler struct {
	runner      automation.Runner
	credentials secrets.Store
	requests    store.RequestStore
}

func NewSubmitHandler(runner automation.Runner, credentials secrets.Store, requests store.RequestStore) *SubmitHandler {
	return &SubmitHandler{runner: runner, credentials: credentials, requests: requests}
}

type submitRequest struct {
	UserID       string `json:"userId"`
	PortalURL    string `json:"portalUrl"`
	CredentialID string `json:"credentialId"`
	Issue        struct {
		Description string `json:"description"`
		Location    string `json:"location"`
		Urgency     string `json:"urgency"`
		Category    string `json:"category"`
	} `json:"issue"`
}

type submitResponse struct {
	Success      bool   `json:"success"`
	RequestID    string `json:"requestId,omitempty"`
	Confirmation string `json:"confirmation,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed submit payload").WithCause(err))
		return
	}
	if body.Issue.Description == "" {
		httputil.WriteError(w, apperrors.MissingRequired("issue.description"))
		return
	}

	result, err := automation.SubmitRequest(r.Context(), h.runner, h.credentials, automation.SubmitParams{
		PortalURL:    body.PortalURL,
		CredentialID: body.CredentialID,
		Issue: automation.Issue{
			Description: body.Issue.Description,
			Location:    body.Issue.Location,
			Urgency:     body.Issue.Urgency,
			Category:    body.Issue.Category,
		},
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	o := outcome.Parse(result)
	if o.Status != outcome.StatusSuccess {
		httputil.WriteJSON(w, http.StatusOK, submitResponse{Success: false, Message: o.UserPrompt()})
		return
	}

	confirmation := outcome.ExtractConfirmationID(result)
	if confirmation == "" {
		confirmation = result.Confirmation
	}

	response := submitResponse{Success: true, Confirmation: confirmation}
	if body.UserID != "" {
		stored, err := h.requests.RecordSuccess(r.Context(), model.RecordSuccessParams{
			UserID:           body.UserID,
			PortalURL:        body.PortalURL,
			IssueDescription: body.Issue.Description,
			Confirmation:     confirmation,
		})
		if err != nil {
			log.Error().Err(err).Str("userId", body.UserID).Msg("failed to record submitted request")
		} else {
			response.RequestID = stored.ID
		}
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}
