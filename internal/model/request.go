package model

import "time"

// StoredRequest is one successfully submitted maintenance request. Status is
// mutated externally (manual resolution); requests are never deleted here.
type StoredRequest struct {
	ID               string        `db:"id" json:"id"`
	UserID           string        `db:"user_id" json:"userId"`
	PortalURL        string        `db:"portal_url" json:"portalUrl,omitempty"`
	IssueDescription string        `db:"issue_description" json:"issueDescription,omitempty"`
	Confirmation     string        `db:"confirmation" json:"confirmation,omitempty"`
	ChannelID        string        `db:"channel_id" json:"channelId,omitempty"`
	Status           RequestStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

// RecordSuccessParams carries the fields recorded after a successful
// submission.
type RecordSuccessParams struct {
	UserID           string
	PortalURL        string
	IssueDescription string
	Confirmation     string
	ChannelID        string
}

// Credential is a read-only portal login record resolved by id.
type Credential struct {
	ID        string `json:"id"`
	PortalURL string `json:"portalUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}
