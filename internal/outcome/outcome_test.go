package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/intake-bot-go/internal/automation"
)

func TestParseNilResult(t *testing.T) {
	o := Parse(nil)

	require.NotNil(t, o)
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, ActionUnknown, o.Action)
	assert.Equal(t, "Unknown failure.", o.Reason)
}

func TestParseSuccessFlagWithoutBlock(t *testing.T) {
	o := Parse(&automation.Result{
		Success: true,
		Raw:     map[string]any{"message": "all done, no structured block here"},
	})

	assert.Equal(t, StatusSuccess, o.Status)
}

func TestParseFailureWithoutBlock(t *testing.T) {
	o := Parse(&automation.Result{
		Success: false,
		Raw:     map[string]any{"message": "something went sideways"},
	})

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, ActionUnknown, o.Action)
	assert.Equal(t, "Submission failed.", o.Reason)
}

func TestParseBlockOverridesSuccessFlag(t *testing.T) {
	// The agent may report success=true while its own report says FAILED.
	o := Parse(&automation.Result{
		Success: true,
		Raw: map[string]any{
			"message": "STATUS: FAILED\nREASON: login rejected\nACTION: USER_ACTION_REQUIRED",
		},
	})

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, ActionUserActionRequired, o.Action)
	assert.Equal(t, "login rejected", o.Reason)
	assert.True(t, o.RemediationEligible())
}

func TestParseBlockInsideResultJSON(t *testing.T) {
	o := Parse(&automation.Result{
		Success: false,
		Raw: map[string]any{
			"resultJson": map[string]any{
				"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nSUGGESTED_PROMPT: What unit are you in?",
			},
		},
	})

	assert.Equal(t, ActionNeedsInfo, o.Action)
	assert.Equal(t, "What unit are you in?", o.Prompt)
	assert.True(t, o.RemediationEligible())
}

func TestParseFieldsVariants(t *testing.T) {
	tests := []struct {
		name       string
		fields     string
		wantFields []string
		wantValues map[string]string
		wantRaw    string
	}{
		{
			name:       "json array",
			fields:     `["urgency", "category"]`,
			wantFields: []string{"urgency", "category"},
		},
		{
			name:       "json object",
			fields:     `{"username": "alex", "urgency": "high"}`,
			wantFields: []string{"urgency", "username"},
			wantValues: map[string]string{"username": "alex", "urgency": "high"},
		},
		{
			name:       "bare json string",
			fields:     `"urgency"`,
			wantFields: []string{"urgency"},
		},
		{
			name:    "unparseable text kept verbatim",
			fields:  `urgency and maybe category`,
			wantRaw: `urgency and maybe category`,
		},
		{
			name:       "numeric values stringified",
			fields:     `{"unit": 12}`,
			wantFields: []string{"unit"},
			wantValues: map[string]string{"unit": "12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Parse(&automation.Result{
				Raw: map[string]any{"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nFIELDS: " + tt.fields},
			})

			assert.Equal(t, tt.wantFields, o.Fields)
			assert.Equal(t, tt.wantValues, o.FieldValues)
			assert.Equal(t, tt.wantRaw, o.FieldsRaw)
		})
	}
}

func TestParseProposalAndOptions(t *testing.T) {
	o := Parse(&automation.Result{
		Raw: map[string]any{
			"message": "STATUS: FAILED\n" +
				"ACTION: USER_ACTION_REQUIRED\n" +
				`FIELDS: ["category"]` + "\n" +
				`PROPOSAL: {"category": "Plumbing"}` + "\n" +
				`OPTIONS: {"category": ["Plumbing", "Electrical", "HVAC"]}`,
		},
	})

	assert.Equal(t, "category", o.FirstField())

	proposal, ok := o.ProposalFor("category")
	require.True(t, ok)
	assert.Equal(t, "Plumbing", proposal)

	options, ok := o.OptionsFor("category")
	require.True(t, ok)
	assert.Equal(t, []string{"Plumbing", "Electrical", "HVAC"}, options)
}

func TestParseMalformedProposalKeptVerbatim(t *testing.T) {
	o := Parse(&automation.Result{
		Raw: map[string]any{
			"message": "STATUS: FAILED\nACTION: NEEDS_INFO\nPROPOSAL: not json at all",
		},
	})

	assert.Nil(t, o.Proposal)
	assert.Equal(t, "not json at all", o.ProposalRaw)
}

func TestParseSkipsNonBlockLines(t *testing.T) {
	o := Parse(&automation.Result{
		Raw: map[string]any{
			"message": "I tried logging in.\nhttp://example.com: not a key\nSTATUS: FAILED\nlowercase: skipped\nREASON: bad credentials",
		},
	})

	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "bad credentials", o.Reason)
}

func TestUserPromptPriority(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"prompt wins", Outcome{Prompt: "ask this", Reason: "because"}, "ask this"},
		{"reason next", Outcome{Reason: "because"}, "because"},
		{"generic fallback", Outcome{}, "Unable to submit the request. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.UserPrompt())
		})
	}
}

func TestExtractConfirmationID(t *testing.T) {
	tests := []struct {
		name   string
		result *automation.Result
		want   string
	}{
		{
			name: "block key",
			result: &automation.Result{Raw: map[string]any{
				"message": "STATUS: SUCCESS\nCONFIRMATION_ID: CASE-991",
			}},
			want: "CASE-991",
		},
		{
			name: "resultJson field",
			result: &automation.Result{Raw: map[string]any{
				"resultJson": map[string]any{"confirmation_id": "ABC-1"},
			}},
			want: "ABC-1",
		},
		{
			name: "nested request details",
			result: &automation.Result{Raw: map[string]any{
				"resultJson": map[string]any{
					"request_details": map[string]any{"case_id": "RD-7"},
				},
			}},
			want: "RD-7",
		},
		{
			name:   "nothing found",
			result: &automation.Result{Raw: map[string]any{"message": "done"}},
			want:   "",
		},
		{name: "nil result", result: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractConfirmationID(tt.result))
		})
	}
}
