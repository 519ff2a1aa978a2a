package outcome

import (
	"sort"
	"strings"

	"github.com/openclaw/intake-bot-go/internal/automation"
)

// blockIDKeys are the structured-block keys an agent may use for the portal's
// confirmation identifier.
var blockIDKeys = []string{"CONFIRMATION_ID", "CASE_ID", "REQUEST_ID"}

// ExtractConfirmationID digs a portal confirmation identifier out of an agent
// result: structured-block keys first, then well-known resultJson fields,
// then a recursive scan for confirmation/case/request-named string values.
func ExtractConfirmationID(result *automation.Result) string {
	if result == nil || result.Raw == nil {
		return ""
	}

	combined := strings.Join(textSources(result.Raw), "\n")
	pairs := make(map[string]string)
	for _, line := range strings.Split(combined, "\n") {
		if key, value, ok := splitBlockLine(strings.TrimSuffix(line, "\r")); ok {
			pairs[key] = value
		}
	}
	for _, key := range blockIDKeys {
		if v := pairs[key]; v != "" {
			return v
		}
	}

	rj, ok := result.Raw["resultJson"].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"confirmation_id", "confirmationId"} {
		if s, ok := rj[key].(string); ok && s != "" {
			return s
		}
	}
	if details, ok := rj["request_details"].(map[string]any); ok {
		for _, key := range []string{"case_id", "caseId"} {
			if s, ok := details[key].(string); ok && s != "" {
				return s
			}
		}
	}

	return findIDValue(rj, 0)
}

const maxIDScanDepth = 8

// findIDValue walks nested objects looking for string values under keys that
// mention a confirmation, case or request. Depth is capped; decoded JSON is
// acyclic but agent payloads can nest deeply.
func findIDValue(obj map[string]any, depth int) string {
	if obj == nil || depth > maxIDScanDepth {
		return ""
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		s, ok := obj[key].(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		if strings.Contains(lower, "confirmation") || strings.Contains(lower, "case") || strings.Contains(lower, "request") {
			return s
		}
	}
	for _, key := range keys {
		if nested, ok := obj[key].(map[string]any); ok {
			if found := findIDValue(nested, depth+1); found != "" {
				return found
			}
		}
	}
	return ""
}

// ExtractStatusMessage pulls the agent's user-facing summary from a status
// lookup result, preferring structured resultJson fields over the raw
// message.
func ExtractStatusMessage(result *automation.Result) string {
	if result == nil || result.Raw == nil {
		return ""
	}
	if rj, ok := result.Raw["resultJson"].(map[string]any); ok {
		for _, key := range []string{"message", "result"} {
			if s, ok := rj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if s, ok := result.Raw["message"].(string); ok {
		return s
	}
	return ""
}
