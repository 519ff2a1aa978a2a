package flow

import (
	"fmt"
	"strings"
)

// User-facing dialogue text. Kept together so the bot's voice stays
// consistent across the state machine.
const (
	msgPortalPrompt   = "Send your portal URL to get started."
	msgUsernamePrompt = "Great - what is your portal username?"
	msgPasswordPrompt = "Now send the password (it will be encrypted)."
	msgIssuePrompt    = "Describe the maintenance issue."

	msgAttachmentPrompt     = "If you have photos or documents to attach, send them now. Type `skip` to continue without attachments."
	msgAttachmentSendPrompt = "Send any photos/documents to attach, or type `skip` to continue without attachments."
	msgAttachmentNoneSaved  = "No attachments saved. Type `yes` to submit the request or `cancel` to abort."
	msgAttachmentAwait      = "Please attach images/documents, or type `skip` to continue."
	msgAttachmentEchoLabel  = "Echoing saved attachments."

	msgConfirmReadyPrompt = "Type `yes` when you're ready or `cancel` to stop."

	msgRestartHelp = "Type `start over` to restart or `continue` to keep your current request."
	msgStartOver   = "Okay, starting over."
	msgCancelled   = "Session cancelled. Send \"new request\" to restart."

	msgRemediationPrompt        = "Please provide the extra information requested. Type `done` when finished."
	msgRemediationNoted         = "Noted. Send more details or type `done` when finished."
	msgRemediationInvalidOption = "That option isn't in the list I can accept."
	msgRemediationOptionsHint   = "Reply with one of the listed options or type `options` to see them again."
	msgRemediationConfirmHint   = "Reply `yes` to accept or `no` to choose another option."
	msgRemediationExhausted     = "I couldn't complete the request with the details provided. Please start a new request to try again."

	msgRequestSubmitted      = "Request submitted successfully."
	msgConfirmationImageText = "Confirmation image"

	msgBulkPrompt = "Hey! I can file the maintenance request for you. Please reply in this exact format:\n" +
		"portal_url, username, password, issue\n" +
		"Example: https://example.com, alex@email.com, pass123, AC not cooling"
	msgBulkAttachmentOnly     = "The only response I got was a picture. Please answer the questions."
	msgBulkConfirmPrompt      = "I got this info from you. Ready to submit it?"
	msgBulkConfirmReadyPrompt = "Reply `yes`, `submit`, or `ok` to submit, or `cancel` to abort."
)

func msgAttachmentsSaved(count int, summary string) string {
	if summary == "" {
		return fmt.Sprintf("Saved %d attachment(s). Send more or type `done` to continue.", count)
	}
	return fmt.Sprintf("Saved %d attachment(s): %s. Send more or type `done` to continue.", count, summary)
}

func msgRemediationProposal(field, value string) string {
	return fmt.Sprintf("I wasn't given %s. I think it should be %q. Reply `yes` to accept or `no` to choose another option.", field, value)
}

func msgRemediationOptions(field string, options []string) string {
	return fmt.Sprintf("Please choose a value for %s. Options: %s.", field, strings.Join(options, ", "))
}

func msgMissingFields(labels []string) string {
	return fmt.Sprintf("I still need: %s. Please send the missing details.", strings.Join(labels, ", "))
}
