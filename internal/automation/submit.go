package automation

import (
	"context"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/secrets"
)

// Issue describes one maintenance problem for a direct submission.
type Issue struct {
	Description string
	Location    string
	Urgency     string
	Category    string
}

// SubmitParams drives a one-shot programmatic submission that resolves the
// portal login from the credential store instead of a dialogue.
type SubmitParams struct {
	PortalURL    string
	CredentialID string
	Issue        Issue
}

// SubmitRequest performs a maintenance-request submission without a chat
// session: resolve the credential, render the goal, run the agent.
func SubmitRequest(ctx context.Context, runner Runner, creds secrets.Store, params SubmitParams) (*Result, error) {
	if params.PortalURL == "" {
		return nil, apperrors.MissingRequired("portalUrl")
	}
	if params.CredentialID == "" {
		return nil, apperrors.MissingRequired("credentialId")
	}

	credential, err := creds.GetCredentialByID(params.CredentialID)
	if err != nil {
		return nil, err
	}

	data := model.NewSessionData()
	data.Username = credential.Username
	data.Password = credential.Password
	data.IssueDescription = params.Issue.Description
	for key, value := range map[string]string{
		"location": params.Issue.Location,
		"urgency":  params.Issue.Urgency,
		"category": params.Issue.Category,
	} {
		if value != "" {
			data.SetField(key, value)
		}
	}

	return runner.Run(ctx, Request{
		PortalURL: params.PortalURL,
		Goal:      BuildSubmissionGoal(data),
	})
}
