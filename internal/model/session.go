package model

import (
	"time"
)

// Attachment is one user-supplied file reference and the result of
// downloading it. Path is empty and Error non-empty when the save failed.
type Attachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Note is a timestamped piece of free text collected during the dialogue.
type Note struct {
	At      time.Time `json:"at"`
	Content string    `json:"content"`
}

// HistoryEntry is one audit-trail record of an inbound user message.
type HistoryEntry struct {
	At          time.Time `json:"at"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	Attachments int       `json:"attachments"`
}

// Remediation is the sub-state of the remediation dialogue: the field the
// agent reported missing, plus any proposal or option list it supplied.
type Remediation struct {
	State    RemediationState `json:"state"`
	Field    string           `json:"field,omitempty"`
	Proposal string           `json:"proposal,omitempty"`
	Options  []string         `json:"options,omitempty"`
	Rounds   int              `json:"rounds"`
}

// StatusQuery is a parsed out-of-band status command, remembered while the
// router waits for portal credentials.
type StatusQuery struct {
	Kind   string `json:"kind"` // "list" or "detail"
	Filter string `json:"filter,omitempty"`
	Query  string `json:"query,omitempty"`
}

// SessionData is the field bag collected over the dialogue.
type SessionData struct {
	PortalURL        string            `json:"portalUrl,omitempty"`
	Username         string            `json:"username,omitempty"`
	Password         string            `json:"-"`
	IssueDescription string            `json:"issueDescription,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`

	Attachments []Attachment   `json:"attachments"`
	Extras      []Note         `json:"extras"`
	Responses   []Note         `json:"responses"`
	History     []HistoryEntry `json:"history"`

	Remediation *Remediation `json:"remediation,omitempty"`
	Missing     []string     `json:"missing,omitempty"`

	StatusLookupPending bool         `json:"statusLookupPending,omitempty"`
	StatusQuery         *StatusQuery `json:"statusQuery,omitempty"`

	// StatusOnly marks a session opened solely to serve a status command;
	// it is discarded once the lookup finishes instead of becoming a
	// dialogue the user never asked for.
	StatusOnly bool `json:"statusOnly,omitempty"`
}

func NewSessionData() *SessionData {
	return &SessionData{
		Attachments: []Attachment{},
		Extras:      []Note{},
		Responses:   []Note{},
		History:     []HistoryEntry{},
	}
}

// SetField assigns a named field. The four required intake fields map to
// their struct slots; anything else (category, urgency, ...) lands in Fields
// and is forwarded to the agent on the next attempt.
func (d *SessionData) SetField(key, value string) {
	switch key {
	case "portalUrl", "portal_url":
		d.PortalURL = value
	case "username":
		d.Username = value
	case "password":
		d.Password = value
	case "issueDescription", "issue_description", "issue":
		d.IssueDescription = value
	default:
		if d.Fields == nil {
			d.Fields = make(map[string]string)
		}
		d.Fields[key] = value
	}
}

// Field reads a named field set via SetField.
func (d *SessionData) Field(key string) string {
	switch key {
	case "portalUrl", "portal_url":
		return d.PortalURL
	case "username":
		return d.Username
	case "password":
		return d.Password
	case "issueDescription", "issue_description", "issue":
		return d.IssueDescription
	}
	return d.Fields[key]
}

// SavedAttachments returns the attachments that were downloaded successfully.
func (d *SessionData) SavedAttachments() []Attachment {
	saved := make([]Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		if a.Path != "" {
			saved = append(saved, a)
		}
	}
	return saved
}

// Session is the per-user dialogue state for one maintenance-request
// submission attempt. All mutation is serialized per user by the gateway.
type Session struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Stage          Stage        `json:"stage"`
	ChannelID      string       `json:"channelId,omitempty"`
	PendingRestart bool         `json:"pendingRestart"`
	TempDir        string       `json:"-"`
	Data           *SessionData `json:"data"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
