package automation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openclaw/intake-bot-go/internal/model"
)

// FallbackPortalURL satisfies the agent's request validation for jobs that
// never navigate anywhere, such as bulk-intake field extraction.
const FallbackPortalURL = "https://example.invalid"

// FieldSpec names one required intake field and its user-facing label.
type FieldSpec struct {
	Key   string
	Label string
}

// RequiredFields are the four fields every submission needs, in collection
// order. The order also decides which missing field is reported first.
var RequiredFields = []FieldSpec{
	{Key: "portalUrl", Label: "portal URL"},
	{Key: "username", Label: "username"},
	{Key: "password", Label: "password"},
	{Key: "issueDescription", Label: "issue description"},
}

// FieldLabel returns the user-facing label for a required field key, or the
// key itself for fields the agent invented.
func FieldLabel(key string) string {
	for _, f := range RequiredFields {
		if f.Key == key {
			return f.Label
		}
	}
	return key
}

// structuredContract is the exact line-oriented report format the agent is
// instructed to use on failure. The outcome parser accepts it verbatim.
const structuredContract = "If submission fails, respond with a structured block exactly like:\n" +
	"STATUS: FAILED\n" +
	"REASON: <short reason>\n" +
	"ACTION: <USER_ACTION_REQUIRED | RETRY_LATER | BLOCKED | UNKNOWN | NEEDS_INFO>\n" +
	"SUGGESTED_PROMPT: <message for the user>\n" +
	"FIELDS: [<optional list of fields or corrections>]\n" +
	"PROPOSAL: {<field>: <proposed value>}\n" +
	"OPTIONS: {<field>: [<allowed option 1>, <allowed option 2>]}\n" +
	"If submission succeeds, respond with: STATUS: SUCCESS"

// BuildSubmissionGoal renders the collected session data into the
// natural-language instruction the agent executes.
func BuildSubmissionGoal(data *model.SessionData) string {
	parts := []string{"Submit a maintenance request."}

	if data.IssueDescription != "" {
		parts = append(parts, fmt.Sprintf("Issue: %s", data.IssueDescription))
	}
	extraFields := make([]string, 0, len(data.Fields))
	for field := range data.Fields {
		extraFields = append(extraFields, field)
	}
	sort.Strings(extraFields)
	for _, field := range extraFields {
		if value := data.Fields[field]; value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", FieldLabel(field), value))
		}
	}
	if data.Username != "" {
		parts = append(parts, fmt.Sprintf("Portal username: %s", data.Username))
	}
	if data.Password != "" {
		parts = append(parts, fmt.Sprintf("Portal password: %s", data.Password))
	}
	if saved := data.SavedAttachments(); len(saved) > 0 {
		names := make([]string, len(saved))
		for i, a := range saved {
			names[i] = a.Filename
		}
		parts = append(parts, fmt.Sprintf("Attachments to upload from local disk: %s.", strings.Join(names, ", ")))
	}
	for _, note := range data.Extras {
		parts = append(parts, fmt.Sprintf("Additional detail from the requester: %s", note.Content))
	}

	parts = append(parts,
		"After submitting, verify success by locating a confirmation ID or the new request in the requests list.",
		"Report the confirmation ID/status or the exact list entry details as proof of submission.",
		structuredContract,
	)
	return strings.Join(parts, " ")
}

// BuildStatusGoal renders a live status-lookup instruction for the agent.
func BuildStatusGoal(data *model.SessionData, query model.StatusQuery) string {
	parts := []string{
		"Log in to the portal and retrieve maintenance request statuses.",
		fmt.Sprintf("Portal URL: %s", data.PortalURL),
		fmt.Sprintf("Username: %s", data.Username),
		fmt.Sprintf("Password: %s", data.Password),
	}
	if query.Kind == "detail" {
		parts = append(parts,
			fmt.Sprintf("Search for the request matching: %s.", query.Query),
			"Match by case/request number, description, title, or other identifying details.",
			"If you cannot find an exact match, respond with a clear not-found message and include the top 5 most recent requests.",
		)
	} else {
		filter := query.Filter
		if filter == "" {
			filter = "open"
		}
		parts = append(parts, fmt.Sprintf("List the %s requests (top 5 most recent if not specified).", filter))
	}
	parts = append(parts, "Reply with a clear, user-facing summary.")
	return strings.Join(parts, " ")
}

// BuildBulkIntakeGoal renders a field-extraction job: the agent reads one
// free-text user message plus previously captured fields and reports
// extracted values through the same structured-block contract.
func BuildBulkIntakeGoal(message string, attachments []model.Attachment, fieldsSoFar map[string]string) string {
	labels := make([]string, len(RequiredFields))
	for i, f := range RequiredFields {
		labels[i] = f.Label
	}

	if fieldsSoFar == nil {
		fieldsSoFar = map[string]string{}
	}
	soFar, _ := json.Marshal(fieldsSoFar)

	attachmentBlock := "ATTACHMENTS: none"
	if len(attachments) > 0 {
		lines := make([]string, len(attachments))
		for i, a := range attachments {
			label := a.Filename
			if label == "" {
				label = a.URL
			}
			if label == "" {
				label = "attachment"
			}
			lines[i] = "- " + label
		}
		attachmentBlock = "ATTACHMENTS:\n" + strings.Join(lines, "\n")
	}

	return strings.Join([]string{
		"You are extracting required fields from a user message for a maintenance request.",
		fmt.Sprintf("Required fields: %s.", strings.Join(labels, ", ")),
		"You will also receive FIELDS_SO_FAR (previously captured values).",
		"Only ask for fields that are missing or empty in the combined result.",
		"Return a structured block with:",
		"STATUS: SUCCESS or FAILED",
		"ACTION: NEEDS_INFO or USER_ACTION_REQUIRED when required fields are missing",
		`FIELDS: {"portalUrl":"...","username":"...","password":"...","issueDescription":"..."} (include any confident values; leave missing fields empty)`,
		"REASON: short reason if fields are missing",
		"SUGGESTED_PROMPT: a concise question that asks only for the missing fields (do not ask for fields already present)",
		"Always return FIELDS as a JSON object, even when incomplete.",
		fmt.Sprintf("FIELDS_SO_FAR: %s", soFar),
		"USER_MESSAGE:",
		message,
		attachmentBlock,
	}, "\n")
}
