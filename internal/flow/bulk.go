package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/outcome"
)

// handleIntake is the single collection stage of the bulk flow: one message
// ideally carries everything. Comma shorthand is parsed locally; anything
// else goes to the agent for field extraction.
func (f *Flow) handleIntake(ctx context.Context, sess *model.Session, in Input, text string) {
	if len(in.Attachments) > 0 {
		batch := f.persistAttachments(ctx, sess, in.Attachments)
		f.send(ctx, in.ChannelID, batchReply(batch))
	}

	if text == "" {
		if len(in.Attachments) > 0 {
			f.send(ctx, in.ChannelID, msgBulkAttachmentOnly)
		} else {
			f.send(ctx, in.ChannelID, msgBulkPrompt)
		}
		return
	}

	if fields, ok := parseCommaShorthand(text); ok {
		for key, value := range fields {
			sess.Data.SetField(key, value)
		}
		f.afterIntakeMerge(ctx, sess, in, nil)
		return
	}

	f.runExtraction(ctx, sess, in, text)
}

// runExtraction asks the agent to pull required fields out of a free-text
// message, merges confident values, and routes any remainder into
// remediation.
func (f *Flow) runExtraction(ctx context.Context, sess *model.Session, in Input, text string) {
	result, err := f.runner.Run(ctx, automation.Request{
		PortalURL: automation.FallbackPortalURL,
		Goal:      automation.BuildBulkIntakeGoal(text, in.Attachments, f.fieldsSoFar(sess.Data)),
	})
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("field extraction failed")
		f.send(ctx, in.ChannelID, "Error: "+err.Error())
		return
	}

	o := outcome.Parse(result)
	for key, value := range o.FieldValues {
		value = strings.TrimSpace(value)
		if value != "" {
			sess.Data.SetField(key, value)
		}
	}
	f.afterIntakeMerge(ctx, sess, in, o)
}

// afterIntakeMerge decides whether intake is complete. With every required
// field present the dialogue moves to confirmation; otherwise the missing
// fields route into the remediation sub-machine.
func (f *Flow) afterIntakeMerge(ctx context.Context, sess *model.Session, in Input, o *outcome.Outcome) {
	missing := f.missingRequired(sess.Data)
	if len(missing) == 0 {
		sess.Stage = model.StageConfirm
		sess.Data.Remediation = nil
		f.send(ctx, in.ChannelID, bulkSummary(sess.Data)+"\n"+msgBulkConfirmPrompt+" "+msgBulkConfirmReadyPrompt)
		return
	}

	rounds := 1
	if prev := sess.Data.Remediation; prev != nil {
		rounds = prev.Rounds + 1
	}
	if rounds > f.maxRounds {
		f.send(ctx, in.ChannelID, msgRemediationExhausted)
		f.teardown(sess)
		return
	}

	sess.Stage = model.StageRemediation
	sess.Data.Remediation = &model.Remediation{State: model.RemediationCollecting, Rounds: rounds}
	sess.Data.Missing = missing

	prompt := msgMissingFields(missing)
	if o != nil && o.Prompt != "" {
		prompt = o.Prompt
	}
	f.send(ctx, in.ChannelID, prompt)
}

// parseCommaShorthand recognizes the `portal_url, username, password, issue`
// one-liner. Commas inside the issue text are preserved.
func parseCommaShorthand(text string) (map[string]string, bool) {
	parts := strings.SplitN(text, ",", 4)
	if len(parts) < 4 {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return nil, false
	}
	if !strings.Contains(parts[0], ".") {
		return nil, false
	}
	return map[string]string{
		"portalUrl":        parts[0],
		"username":         parts[1],
		"password":         parts[2],
		"issueDescription": parts[3],
	}, true
}

// missingRequired lists the labels of required fields still empty.
func (f *Flow) missingRequired(data *model.SessionData) []string {
	var missing []string
	for _, field := range automation.RequiredFields {
		if strings.TrimSpace(data.Field(field.Key)) == "" {
			missing = append(missing, field.Label)
		}
	}
	return missing
}

// fieldsSoFar snapshots the captured required fields for the extraction
// prompt. The password is passed through so the agent knows it is covered,
// never echoed back to the user.
func (f *Flow) fieldsSoFar(data *model.SessionData) map[string]string {
	fields := make(map[string]string, len(automation.RequiredFields))
	for _, field := range automation.RequiredFields {
		fields[field.Key] = data.Field(field.Key)
	}
	return fields
}

// bulkSummary shows what will be submitted, masking the password.
func bulkSummary(data *model.SessionData) string {
	lines := []string{
		"Here's what I captured:",
		fmt.Sprintf("- portal URL: %s", data.PortalURL),
		fmt.Sprintf("- username: %s", data.Username),
		"- password: ********",
		fmt.Sprintf("- issue: %s", data.IssueDescription),
	}
	if saved := data.SavedAttachments(); len(saved) > 0 {
		names := make([]string, len(saved))
		for i, att := range saved {
			names[i] = att.Filename
		}
		lines = append(lines, fmt.Sprintf("- attachments: %s", strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}
