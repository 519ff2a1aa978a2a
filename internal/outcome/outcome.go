package outcome

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openclaw/intake-bot-go/internal/automation"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type Action string

const (
	ActionUserActionRequired Action = "USER_ACTION_REQUIRED"
	ActionNeedsInfo          Action = "NEEDS_INFO"
	ActionRetryLater         Action = "RETRY_LATER"
	ActionBlocked            Action = "BLOCKED"
	ActionUnknown            Action = "UNKNOWN"
)

// Outcome is the normalized classification of one agent run. It is derived
// from the structured block in the agent's free-text report, falling back to
// the boolean success flag when no block is present.
type Outcome struct {
	Status Status
	Action Action
	Reason string
	Prompt string

	// FIELDS may arrive as a JSON array of names, a JSON object of
	// field/value pairs, a bare JSON string, or unparseable text. Whatever
	// arrived is preserved.
	Fields      []string
	FieldValues map[string]string
	FieldsRaw   string

	Proposal    map[string]string
	ProposalRaw string

	Options    map[string][]string
	OptionsRaw string
}

// RemediationEligible reports whether the agent asked for more user input
// rather than failing hard.
func (o *Outcome) RemediationEligible() bool {
	return o.Action == ActionUserActionRequired || o.Action == ActionNeedsInfo
}

// FirstField returns the first field the agent named, if any.
func (o *Outcome) FirstField() string {
	if len(o.Fields) > 0 {
		return o.Fields[0]
	}
	return strings.TrimSpace(o.FieldsRaw)
}

// ProposalFor returns the agent's proposed value for a field.
func (o *Outcome) ProposalFor(field string) (string, bool) {
	v, ok := o.Proposal[field]
	return v, ok
}

// OptionsFor returns the agent's allowed values for a field.
func (o *Outcome) OptionsFor(field string) ([]string, bool) {
	v, ok := o.Options[field]
	return v, ok && len(v) > 0
}

// UserPrompt picks the user-facing message for a failed run: the agent's
// suggested prompt, then its reason, then a generic fallback.
func (o *Outcome) UserPrompt() string {
	if o.Prompt != "" {
		return o.Prompt
	}
	if o.Reason != "" {
		return o.Reason
	}
	return "Unable to submit the request. Please try again later."
}

// MissingSummary describes what the agent reported missing, for the audit
// trail.
func (o *Outcome) MissingSummary() []string {
	if len(o.Fields) > 0 {
		return o.Fields
	}
	if o.FieldsRaw != "" {
		return []string{o.FieldsRaw}
	}
	if o.Reason != "" {
		return []string{o.Reason}
	}
	return nil
}

// Parse classifies an agent result. It is total: any input, including nil,
// yields a usable Outcome and it never fails.
func Parse(result *automation.Result) *Outcome {
	if result == nil {
		return &Outcome{Status: StatusFailed, Action: ActionUnknown, Reason: "Unknown failure."}
	}

	combined := strings.Join(textSources(result.Raw), "\n")
	if block := parseStructuredBlock(combined); block.Status != "" {
		return block
	}

	if result.Success {
		return &Outcome{Status: StatusSuccess}
	}
	return &Outcome{Status: StatusFailed, Action: ActionUnknown, Reason: "Submission failed."}
}

// textSources collects every plausible free-text payload from the agent's
// raw event, in a fixed priority order. Each strategy is total.
func textSources(raw map[string]any) []string {
	if raw == nil {
		return nil
	}

	var sources []string
	if s, ok := raw["message"].(string); ok {
		sources = append(sources, s)
	}

	switch rj := raw["resultJson"].(type) {
	case string:
		sources = append(sources, rj)
	case map[string]any:
		for _, key := range []string{"message", "status", "result"} {
			if s, ok := rj[key].(string); ok {
				sources = append(sources, s)
			}
		}
	}

	return sources
}

// parseStructuredBlock scans line-oriented `KEY: value` pairs. Malformed
// lines are skipped and malformed JSON sub-fields are kept verbatim.
func parseStructuredBlock(text string) *Outcome {
	if text == "" {
		return &Outcome{}
	}

	pairs := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		key, value, ok := splitBlockLine(line)
		if !ok {
			continue
		}
		pairs[key] = value
	}

	o := &Outcome{
		Status: Status(pairs["STATUS"]),
		Action: Action(pairs["ACTION"]),
		Reason: pairs["REASON"],
		Prompt: pairs["SUGGESTED_PROMPT"],
	}
	if v, ok := pairs["FIELDS"]; ok {
		o.Fields, o.FieldValues, o.FieldsRaw = parseFields(v)
	}
	if v, ok := pairs["PROPOSAL"]; ok {
		o.Proposal, o.ProposalRaw = parseStringMap(v)
	}
	if v, ok := pairs["OPTIONS"]; ok {
		o.Options, o.OptionsRaw = parseOptions(v)
	}
	return o
}

// splitBlockLine matches `KEY: value` where KEY is [A-Z_]+.
func splitBlockLine(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = line[:idx]
	for _, r := range key {
		if (r < 'A' || r > 'Z') && r != '_' {
			return "", "", false
		}
	}
	value = strings.TrimSpace(line[idx+1:])
	if value == "" {
		return "", "", false
	}
	return key, value, true
}

func parseFields(value string) (fields []string, values map[string]string, raw string) {
	var arr []any
	if err := unmarshalJSON(value, &arr); err == nil {
		fields = make([]string, 0, len(arr))
		for _, item := range arr {
			fields = append(fields, stringify(item))
		}
		return fields, nil, ""
	}

	var obj map[string]any
	if err := unmarshalJSON(value, &obj); err == nil {
		values = make(map[string]string, len(obj))
		keys := make([]string, 0, len(obj))
		for k, v := range obj {
			values[k] = stringify(v)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, values, ""
	}

	var single string
	if err := unmarshalJSON(value, &single); err == nil {
		return []string{single}, nil, ""
	}

	return nil, nil, value
}

func parseStringMap(value string) (map[string]string, string) {
	var obj map[string]any
	if err := unmarshalJSON(value, &obj); err != nil {
		return nil, value
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = stringify(v)
	}
	return out, ""
}

func parseOptions(value string) (map[string][]string, string) {
	var obj map[string]any
	if err := unmarshalJSON(value, &obj); err != nil {
		return nil, value
	}
	out := make(map[string][]string, len(obj))
	for k, v := range obj {
		items, ok := v.([]any)
		if !ok {
			out[k] = []string{stringify(v)}
			continue
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			list = append(list, stringify(item))
		}
		out[k] = list
	}
	return out, ""
}

func unmarshalJSON(value string, dest any) error {
	return json.Unmarshal([]byte(value), dest)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
