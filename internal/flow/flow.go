package flow

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/audit"
	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/outcome"
	"github.com/openclaw/intake-bot-go/internal/store"
)

// Whole-message commands recognized regardless of stage.
var (
	cancelPattern   = regexp.MustCompile(`(?i)^(cancel|abort|stop|quit|exit)$`)
	startOverYes    = regexp.MustCompile(`(?i)^(start over|yes)$`)
	continueNo      = regexp.MustCompile(`(?i)^(continue|keep going|no)$`)
	attachPattern   = regexp.MustCompile(`(?i)^attach$`)
	moreInfoPattern = regexp.MustCompile(`(?i)^more info$`)
	skipDonePattern = regexp.MustCompile(`(?i)^(skip|done)$`)
	yesPattern      = regexp.MustCompile(`(?i)^yes$`)
	noPattern       = regexp.MustCompile(`(?i)^no$`)
	donePattern     = regexp.MustCompile(`(?i)^done$`)
	optionsPattern  = regexp.MustCompile(`(?i)^(options|list)$`)
	submitPattern   = regexp.MustCompile(`(?i)^(yes|submit|ok)$`)
)

// Input is one normalized user turn handed to the state machine. The gateway
// has already resolved the channel and serialized turns per user.
type Input struct {
	ChannelID   string
	Text        string
	Attachments []model.Attachment
}

// Flow drives the dialogue state machine for one deployment-selected mode.
type Flow struct {
	sessions  *store.SessionStore
	requests  store.RequestStore
	runner    automation.Runner
	messenger messenger.Messenger

	mode       model.FlowMode
	tempRoot   string
	maxRounds  int
	downloader *http.Client
}

type Option func(*Flow)

// WithDownloader overrides the HTTP client used for attachment downloads.
func WithDownloader(hc *http.Client) Option {
	return func(f *Flow) { f.downloader = hc }
}

func New(
	sessions *store.SessionStore,
	requests store.RequestStore,
	runner automation.Runner,
	sender messenger.Messenger,
	mode model.FlowMode,
	tempRoot string,
	maxRemediationRounds int,
	opts ...Option,
) *Flow {
	f := &Flow{
		sessions:   sessions,
		requests:   requests,
		runner:     runner,
		messenger:  sender,
		mode:       mode,
		tempRoot:   tempRoot,
		maxRounds:  maxRemediationRounds,
		downloader: &http.Client{Timeout: attachmentDownloadTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mode returns the deployment-selected dialogue variant.
func (f *Flow) Mode() model.FlowMode { return f.mode }

// InitialStage is where a fresh session starts for the configured mode.
func (f *Flow) InitialStage() model.Stage {
	if f.mode == model.FlowModeBulk {
		return model.StageIntake
	}
	return model.StagePortal
}

// StartPrompt is the first message of a fresh session.
func (f *Flow) StartPrompt() string {
	if f.mode == model.FlowModeBulk {
		return msgBulkPrompt
	}
	return msgPortalPrompt
}

// Reset puts a session back to the start of the dialogue, discarding
// collected data and any saved attachments.
func (f *Flow) Reset(sess *model.Session) {
	f.cleanupFiles(sess)
	sess.Stage = f.InitialStage()
	sess.PendingRestart = false
	sess.Data = model.NewSessionData()
	f.sessions.Touch(sess)
}

// HandleTurn advances the state machine by one user turn. Interceptors run
// before stage dispatch, in priority order.
func (f *Flow) HandleTurn(ctx context.Context, sess *model.Session, in Input) {
	f.normalizeStage(sess)
	text := strings.TrimSpace(in.Text)

	// A pending restart confirmation overrides everything else.
	if sess.PendingRestart {
		switch {
		case startOverYes.MatchString(text):
			f.Reset(sess)
			f.send(ctx, in.ChannelID, msgStartOver+" "+f.StartPrompt())
		case continueNo.MatchString(text):
			sess.PendingRestart = false
			f.send(ctx, in.ChannelID, f.promptForStage(sess))
		default:
			f.send(ctx, in.ChannelID, msgRestartHelp)
		}
		return
	}

	if cancelPattern.MatchString(text) {
		audit.Log(audit.Event{Type: audit.EventSessionCancel, UserID: sess.UserID, SessionID: sess.ID})
		f.teardown(sess)
		f.send(ctx, in.ChannelID, msgCancelled)
		return
	}

	if attachPattern.MatchString(text) {
		sess.Stage = model.StageAttachments
		f.send(ctx, in.ChannelID, msgAttachmentSendPrompt)
		return
	}

	if moreInfoPattern.MatchString(text) {
		f.enterCollecting(sess)
		f.send(ctx, in.ChannelID, msgRemediationPrompt)
		return
	}

	switch sess.Stage {
	case model.StageIntake:
		f.handleIntake(ctx, sess, in, text)
	case model.StageRemediation:
		f.handleRemediation(ctx, sess, in, text)
	case model.StageAttachments:
		f.handleAttachmentsStage(ctx, sess, in, text)
	case model.StageConfirm:
		f.handleConfirmStage(ctx, sess, in, text)
	default:
		f.handleFieldStage(ctx, sess, in, text)
	}
	f.sessions.Touch(sess)
}

// normalizeStage corrects stale or mode-mismatched stage values to the
// initial stage instead of wedging the session.
func (f *Flow) normalizeStage(sess *model.Session) {
	if !sess.Stage.Valid() {
		sess.Stage = f.InitialStage()
		return
	}
	switch f.mode {
	case model.FlowModeBulk:
		switch sess.Stage {
		case model.StagePortal, model.StageUsername, model.StagePassword, model.StageIssue:
			sess.Stage = model.StageIntake
		}
	default:
		if sess.Stage == model.StageIntake {
			sess.Stage = model.StagePortal
		}
	}
}

// handleFieldStage collects the four required fields one message at a time.
func (f *Flow) handleFieldStage(ctx context.Context, sess *model.Session, in Input, text string) {
	if text == "" {
		f.send(ctx, in.ChannelID, f.promptForStage(sess))
		return
	}

	switch sess.Stage {
	case model.StagePortal:
		sess.Data.PortalURL = text
		sess.Stage = model.StageUsername
		f.send(ctx, in.ChannelID, msgUsernamePrompt)
	case model.StageUsername:
		sess.Data.Username = text
		sess.Stage = model.StagePassword
		f.send(ctx, in.ChannelID, msgPasswordPrompt)
	case model.StagePassword:
		sess.Data.Password = text
		sess.Stage = model.StageIssue
		f.send(ctx, in.ChannelID, msgIssuePrompt)
	case model.StageIssue:
		sess.Data.IssueDescription = text
		sess.Stage = model.StageAttachments
		f.send(ctx, in.ChannelID, msgAttachmentPrompt)
	}
}

func (f *Flow) handleAttachmentsStage(ctx context.Context, sess *model.Session, in Input, text string) {
	if len(in.Attachments) > 0 {
		batch := f.persistAttachments(ctx, sess, in.Attachments)
		f.send(ctx, in.ChannelID, batchReply(batch))
		return
	}

	if skipDonePattern.MatchString(text) {
		f.echoAttachments(ctx, in.ChannelID, sess)
		sess.Stage = model.StageConfirm
		if summary := attachmentSummary(sess.Data.Attachments); summary != "" {
			f.send(ctx, in.ChannelID, summary+"\nType `yes` to submit the request or `cancel` to abort.")
		} else {
			f.send(ctx, in.ChannelID, msgAttachmentNoneSaved)
		}
		return
	}

	f.send(ctx, in.ChannelID, msgAttachmentAwait)
}

func (f *Flow) handleConfirmStage(ctx context.Context, sess *model.Session, in Input, text string) {
	confirm := yesPattern
	if f.mode == model.FlowModeBulk {
		confirm = submitPattern
	}
	if confirm.MatchString(text) {
		f.runAutomation(ctx, in.ChannelID, sess)
		return
	}
	if f.mode == model.FlowModeBulk {
		f.send(ctx, in.ChannelID, msgBulkConfirmReadyPrompt)
		return
	}
	f.send(ctx, in.ChannelID, msgConfirmReadyPrompt)
}

// promptForStage re-states the question the current stage is waiting on.
func (f *Flow) promptForStage(sess *model.Session) string {
	switch sess.Stage {
	case model.StagePortal:
		return msgPortalPrompt
	case model.StageUsername:
		return msgUsernamePrompt
	case model.StagePassword:
		return msgPasswordPrompt
	case model.StageIssue:
		return msgIssuePrompt
	case model.StageAttachments:
		return msgAttachmentPrompt
	case model.StageConfirm:
		if f.mode == model.FlowModeBulk {
			return msgBulkConfirmReadyPrompt
		}
		return msgConfirmReadyPrompt
	case model.StageRemediation:
		return msgRemediationPrompt
	case model.StageIntake:
		return msgBulkPrompt
	}
	return msgPortalPrompt
}

// runAutomation submits the collected request through the agent and routes
// the outcome: success tears the session down, remediation-eligible failures
// open the remediation sub-dialogue, anything else reports and tears down.
func (f *Flow) runAutomation(ctx context.Context, channelID string, sess *model.Session) {
	result, err := f.runner.Run(ctx, automation.Request{
		PortalURL: sess.Data.PortalURL,
		Goal:      automation.BuildSubmissionGoal(sess.Data),
	})
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("automation run failed")
		f.send(ctx, channelID, "Error: "+err.Error())
		f.teardown(sess)
		return
	}

	o := outcome.Parse(result)
	if o.Status == outcome.StatusSuccess {
		f.finishSuccess(ctx, channelID, sess, result)
		return
	}

	if o.RemediationEligible() {
		f.enterRemediation(ctx, channelID, sess, o)
		return
	}

	audit.Log(audit.Event{
		Type: audit.EventSubmissionFailure, UserID: sess.UserID, SessionID: sess.ID,
		Details: map[string]interface{}{"action": string(o.Action), "reason": o.Reason},
	})
	f.send(ctx, channelID, o.UserPrompt())
	f.teardown(sess)
}

func (f *Flow) finishSuccess(ctx context.Context, channelID string, sess *model.Session, result *automation.Result) {
	f.send(ctx, channelID, msgRequestSubmitted)

	confirmation := outcome.ExtractConfirmationID(result)
	if confirmation == "" {
		confirmation = result.Confirmation
	}
	if result.Confirmation != "" {
		if err := f.messenger.SendImage(ctx, channelID, result.Confirmation, msgConfirmationImageText); err != nil {
			log.Warn().Err(err).Str("channelId", channelID).Msg("failed to deliver confirmation image")
		}
	}

	stored, err := f.requests.RecordSuccess(ctx, model.RecordSuccessParams{
		UserID:           sess.UserID,
		PortalURL:        sess.Data.PortalURL,
		IssueDescription: sess.Data.IssueDescription,
		Confirmation:     confirmation,
		ChannelID:        sess.ChannelID,
	})
	if err != nil {
		log.Error().Err(err).Str("userId", sess.UserID).Msg("failed to record submitted request")
		audit.Log(audit.Event{Type: audit.EventSubmissionSuccess, UserID: sess.UserID, SessionID: sess.ID})
	} else {
		audit.Log(audit.Event{Type: audit.EventSubmissionSuccess, UserID: sess.UserID, SessionID: sess.ID, RequestID: stored.ID})
		f.send(ctx, channelID, "Tracking id: `"+stored.ID+"`. Ask me `status` anytime to check on it.")
	}

	f.teardown(sess)
}

// send delivers one message and logs delivery failures without interrupting
// the dialogue.
func (f *Flow) send(ctx context.Context, channelID, text string) {
	if err := f.messenger.SendMessage(ctx, channelID, text); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msg("failed to send message")
	}
}

// teardown releases the session's temp files and forgets the session.
func (f *Flow) teardown(sess *model.Session) {
	f.cleanupFiles(sess)
	f.sessions.Remove(sess.UserID)
}
