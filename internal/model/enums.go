package model

import "strings"

// Stage is the current step of the dialogue state machine.
type Stage string

const (
	StagePortal      Stage = "portal"
	StageUsername    Stage = "username"
	StagePassword    Stage = "password"
	StageIssue       Stage = "issue"
	StageAttachments Stage = "attachments"
	StageConfirm     Stage = "confirm"
	StageRemediation Stage = "remediation"

	// StageIntake is the single collection stage of the bulk-intake flow.
	StageIntake Stage = "intake"
)

func (s Stage) Valid() bool {
	switch s {
	case StagePortal, StageUsername, StagePassword, StageIssue,
		StageAttachments, StageConfirm, StageRemediation, StageIntake:
		return true
	}
	return false
}

// RemediationState is the sub-state of the remediation dialogue.
type RemediationState string

const (
	RemediationCollecting           RemediationState = "collecting"
	RemediationAwaitingConfirmation RemediationState = "awaiting_confirmation"
	RemediationAwaitingOption       RemediationState = "awaiting_option"
)

type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "OPEN"
	RequestStatusResolved  RequestStatus = "RESOLVED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// NormalizeRequestStatus maps any string to a valid status, defaulting to OPEN.
func NormalizeRequestStatus(value string) RequestStatus {
	switch RequestStatus(strings.ToUpper(value)) {
	case RequestStatusResolved:
		return RequestStatusResolved
	case RequestStatusCancelled:
		return RequestStatusCancelled
	}
	return RequestStatusOpen
}

// FlowMode selects which dialogue variant the bot runs. It is a deployment
// switch, never user input.
type FlowMode string

const (
	FlowModeGuided FlowMode = "guided"
	FlowModeBulk   FlowMode = "bulk"
)
