package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/store"
)

func needsOptionResult(field string, options ...string) *automation.Result {
	optionList := `[`
	for i, option := range options {
		if i > 0 {
			optionList += ", "
		}
		optionList += `"` + option + `"`
	}
	optionList += `]`

	return &automation.Result{
		Success: false,
		Raw: map[string]any{
			"message": "STATUS: FAILED\n" +
				"ACTION: USER_ACTION_REQUIRED\n" +
				"REASON: the portal requires a " + field + "\n" +
				`FIELDS: ["` + field + `"]` + "\n" +
				`OPTIONS: {"` + field + `": ` + optionList + `}`,
		},
	}
}

func proposalResult(field, value string) *automation.Result {
	return &automation.Result{
		Success: false,
		Raw: map[string]any{
			"message": "STATUS: FAILED\n" +
				"ACTION: USER_ACTION_REQUIRED\n" +
				`FIELDS: ["` + field + `"]` + "\n" +
				`PROPOSAL: {"` + field + `": "` + value + `"}`,
		},
	}
}

func TestOptionRemediationRoundTrip(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		needsOptionResult("category", "Plumbing", "Electrical", "HVAC"),
		successResult(),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)

	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"
	sess.Data.IssueDescription = "AC not cooling"

	turn(f, sess, "yes")

	assert.Equal(t, model.StageRemediation, sess.Stage)
	require.NotNil(t, sess.Data.Remediation)
	assert.Equal(t, model.RemediationAwaitingOption, sess.Data.Remediation.State)
	assert.Contains(t, sender.lastMessage(), "Plumbing, Electrical, HVAC")

	// Normalized answer matches the original option spelling.
	turn(f, sess, "plumbing")

	require.Len(t, runner.requests, 2)
	assert.Contains(t, runner.requests[1].Goal, "category: Plumbing")
	assert.Equal(t, "Plumbing", sess.Data.Field("category"))
	assert.False(t, sessions.Has("user-1"), "second run succeeded, session torn down")
}

func TestOptionRemediationRejectsUnknownAnswer(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		needsOptionResult("category", "Plumbing", "Electrical"),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	turn(f, sess, "carpentry")

	assert.Contains(t, sender.lastMessage(), msgRemediationInvalidOption)
	require.Len(t, runner.requests, 1, "no re-run on invalid option")
	assert.Equal(t, model.RemediationAwaitingOption, sess.Data.Remediation.State)
}

func TestOptionListRedisplay(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		needsOptionResult("category", "Plumbing", "Electrical"),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	turn(f, sess, "options")

	assert.Contains(t, sender.lastMessage(), "Plumbing, Electrical")
	require.Len(t, runner.requests, 1)
}

func TestProposalAccepted(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		proposalResult("urgency", "high"),
		successResult(),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	assert.Equal(t, model.RemediationAwaitingConfirmation, sess.Data.Remediation.State)
	assert.Contains(t, sender.lastMessage(), `"high"`)

	turn(f, sess, "yes")

	require.Len(t, runner.requests, 2)
	assert.Equal(t, "high", sess.Data.Field("urgency"))
	assert.False(t, sessions.Has("user-1"))
}

func TestProposalDeclinedWithoutOptions(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		proposalResult("urgency", "high"),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	turn(f, sess, "no")

	assert.Equal(t, model.RemediationCollecting, sess.Data.Remediation.State)
	assert.Equal(t, msgRemediationPrompt, sender.lastMessage())
	assert.Empty(t, sess.Data.Field("urgency"))
}

func TestCollectingNotesAndDone(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		{Success: false, Raw: map[string]any{
			"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nSUGGESTED_PROMPT: What unit number?",
		}},
		successResult(),
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	assert.Equal(t, "What unit number?", sender.lastMessage())

	turn(f, sess, "Unit 12B, third floor")
	assert.Equal(t, msgRemediationNoted, sender.lastMessage())
	require.Len(t, sess.Data.Extras, 1)

	turn(f, sess, "done")

	require.Len(t, runner.requests, 2)
	assert.Contains(t, runner.requests[1].Goal, "Unit 12B, third floor")
	assert.False(t, sessions.Has("user-1"))
}

func TestAttachDuringRemediation(t *testing.T) {
	runner := &fakeRunner{results: []*automation.Result{
		{Success: false, Raw: map[string]any{
			"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nSUGGESTED_PROMPT: What unit number?",
		}},
	}}
	f, sessions, _, sender := newGuidedFlow(t, runner)
	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	require.Equal(t, model.StageRemediation, sess.Stage)

	turn(f, sess, "attach")

	assert.Equal(t, model.StageAttachments, sess.Stage)
	assert.Equal(t, msgAttachmentSendPrompt, sender.lastMessage())
	assert.Empty(t, sess.Data.Extras, "the keyword is not a remediation note")
	require.NotNil(t, sess.Data.Remediation, "remediation survives the stage switch")
	assert.Equal(t, model.RemediationCollecting, sess.Data.Remediation.State)
}

func TestRemediationRoundCap(t *testing.T) {
	needs := func() *automation.Result {
		return &automation.Result{Success: false, Raw: map[string]any{
			"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nSUGGESTED_PROMPT: Still missing details.",
		}}
	}
	runner := &fakeRunner{results: []*automation.Result{
		needs(), needs(), needs(),
	}}

	sessions := store.NewSessionStore()
	requests := store.NewMemoryRequestStore()
	sender := &fakeMessenger{}
	f := New(sessions, requests, runner, sender, model.FlowModeGuided, t.TempDir(), 2)

	sess := sessions.Get("user-1")
	sess.Stage = model.StageConfirm
	sess.Data.PortalURL = "https://portal.example.com"

	turn(f, sess, "yes")
	turn(f, sess, "done")
	turn(f, sess, "done")

	assert.Equal(t, msgRemediationExhausted, sender.lastMessage())
	assert.False(t, sessions.Has("user-1"))
}

func TestNormalizeOption(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plumbing", "plumbing"},
		{"  GENERAL_MAINTENANCE  ", "general maintenance"},
		{"general-maintenance", "general maintenance"},
		{"general   maintenance", "general maintenance"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeOption(tt.in), "input %q", tt.in)
	}
}
