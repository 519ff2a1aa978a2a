package flow

import (
	"context"
	"strings"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/outcome"
)

// enterCollecting opens (or re-opens) the free-text remediation state, used
// by the `more info` escape hatch.
func (f *Flow) enterCollecting(sess *model.Session) {
	rem := sess.Data.Remediation
	if rem == nil {
		rem = &model.Remediation{}
		sess.Data.Remediation = rem
	}
	rem.State = model.RemediationCollecting
	sess.Stage = model.StageRemediation
}

// enterRemediation seeds the remediation sub-dialogue from a
// remediation-eligible outcome. Message priority: proposal confirmation,
// then option list, then the agent's own prompt.
func (f *Flow) enterRemediation(ctx context.Context, channelID string, sess *model.Session, o *outcome.Outcome) {
	rounds := 1
	if prev := sess.Data.Remediation; prev != nil {
		rounds = prev.Rounds + 1
	}
	if rounds > f.maxRounds {
		f.send(ctx, channelID, msgRemediationExhausted)
		f.teardown(sess)
		return
	}

	rem := &model.Remediation{
		State:  model.RemediationCollecting,
		Field:  o.FirstField(),
		Rounds: rounds,
	}
	sess.Data.Remediation = rem
	sess.Data.Missing = o.MissingSummary()
	sess.Stage = model.StageRemediation

	if rem.Field != "" {
		if proposal, ok := o.ProposalFor(rem.Field); ok {
			rem.State = model.RemediationAwaitingConfirmation
			rem.Proposal = proposal
			if options, ok := o.OptionsFor(rem.Field); ok {
				rem.Options = options
			}
			f.send(ctx, channelID, msgRemediationProposal(fieldLabelOrName(rem.Field), proposal))
			return
		}
		if options, ok := o.OptionsFor(rem.Field); ok {
			rem.State = model.RemediationAwaitingOption
			rem.Options = options
			f.send(ctx, channelID, msgRemediationOptions(fieldLabelOrName(rem.Field), options))
			return
		}
	}

	f.send(ctx, channelID, o.UserPrompt())
}

// handleRemediation advances the remediation sub-machine by one user turn.
func (f *Flow) handleRemediation(ctx context.Context, sess *model.Session, in Input, text string) {
	rem := sess.Data.Remediation
	if rem == nil {
		f.enterCollecting(sess)
		rem = sess.Data.Remediation
	}

	if len(in.Attachments) > 0 {
		batch := f.persistAttachments(ctx, sess, in.Attachments)
		f.send(ctx, in.ChannelID, batchReply(batch))
		if text == "" {
			return
		}
	}

	if donePattern.MatchString(text) {
		f.runAutomation(ctx, in.ChannelID, sess)
		return
	}

	if optionsPattern.MatchString(text) && len(rem.Options) > 0 {
		f.send(ctx, in.ChannelID, msgRemediationOptions(fieldLabelOrName(rem.Field), rem.Options))
		return
	}

	switch rem.State {
	case model.RemediationAwaitingConfirmation:
		f.handleProposalAnswer(ctx, sess, in, text, rem)
	case model.RemediationAwaitingOption:
		f.handleOptionAnswer(ctx, sess, in, text, rem)
	default:
		if text == "" {
			f.send(ctx, in.ChannelID, msgRemediationPrompt)
			return
		}
		if f.mode == model.FlowModeBulk && len(f.missingRequired(sess.Data)) > 0 {
			f.runExtraction(ctx, sess, in, text)
			return
		}
		f.sessions.RecordExtra(sess, text)
		f.send(ctx, in.ChannelID, msgRemediationNoted)
	}
}

func (f *Flow) handleProposalAnswer(ctx context.Context, sess *model.Session, in Input, text string, rem *model.Remediation) {
	switch {
	case yesPattern.MatchString(text):
		sess.Data.SetField(rem.Field, rem.Proposal)
		sess.Data.Remediation = &model.Remediation{State: model.RemediationCollecting, Rounds: rem.Rounds}
		f.runAutomation(ctx, in.ChannelID, sess)
	case noPattern.MatchString(text):
		if len(rem.Options) > 0 {
			rem.State = model.RemediationAwaitingOption
			f.send(ctx, in.ChannelID, msgRemediationOptions(fieldLabelOrName(rem.Field), rem.Options))
			return
		}
		rem.State = model.RemediationCollecting
		f.send(ctx, in.ChannelID, msgRemediationPrompt)
	default:
		f.send(ctx, in.ChannelID, msgRemediationConfirmHint)
	}
}

func (f *Flow) handleOptionAnswer(ctx context.Context, sess *model.Session, in Input, text string, rem *model.Remediation) {
	matched, ok := matchOption(text, rem.Options)
	if !ok {
		f.send(ctx, in.ChannelID, msgRemediationInvalidOption+" "+msgRemediationOptionsHint)
		return
	}
	sess.Data.SetField(rem.Field, matched)
	sess.Data.Remediation = &model.Remediation{State: model.RemediationCollecting, Rounds: rem.Rounds}
	f.runAutomation(ctx, in.ChannelID, sess)
}

// matchOption compares the user's answer against the allowed options under a
// tolerant normalization and returns the option's original spelling.
func matchOption(input string, options []string) (string, bool) {
	normalized := normalizeOption(input)
	if normalized == "" {
		return "", false
	}
	for _, option := range options {
		if normalizeOption(option) == normalized {
			return option, true
		}
	}
	return "", false
}

// normalizeOption lowercases, maps underscores and hyphens to spaces, and
// collapses runs of whitespace.
func normalizeOption(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return strings.Join(strings.Fields(value), " ")
}

// fieldLabelOrName shows the friendly label for known fields and the agent's
// own name for anything else.
func fieldLabelOrName(field string) string {
	if field == "" {
		return "the missing field"
	}
	return automation.FieldLabel(field)
}
