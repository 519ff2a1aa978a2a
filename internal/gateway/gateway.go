package gateway

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/audit"
	"github.com/openclaw/intake-bot-go/internal/command"
	"github.com/openclaw/intake-bot-go/internal/flow"
	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/store"
)

const (
	// ChannelTypeDM marks a direct-message channel in an inbound event.
	ChannelTypeDM = "dm"

	msgMentionPing   = "yes?"
	msgDMContinue    = "I sent you a DM to continue this request."
	msgDMFailed      = "I could not open a DM. Please send me a direct message to continue."
	msgRestartPrompt = "You already have a request in progress. Type `start over` to restart or `continue` to keep going."
	msgAttachHere    = "Send any photos/documents to attach, or type `skip` to continue without attachments."
)

var mentionMarkup = regexp.MustCompile(`<@!?\d+>`)

// Event is one inbound user message, normalized by the transport handler.
type Event struct {
	UserID      string             `json:"userId"`
	ChannelID   string             `json:"channelId"`
	ChannelType string             `json:"channelType"`
	Text        string             `json:"text"`
	Mentioned   bool               `json:"mentioned"`
	Attachments []model.Attachment `json:"attachments"`
}

func (e Event) IsDM() bool { return e.ChannelType == ChannelTypeDM }

// Gateway adapts transport events to the dialogue: trigger detection,
// session binding, DM redirection, and per-user turn serialization.
type Gateway struct {
	sessions  *store.SessionStore
	flow      *flow.Flow
	router    *command.Router
	messenger messenger.Messenger
	dm        messenger.DMOpener

	homeChannelID string
	triggers      []string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(
	sessions *store.SessionStore,
	fl *flow.Flow,
	router *command.Router,
	sender messenger.Messenger,
	dm messenger.DMOpener,
	homeChannelID string,
	triggerPhrases []string,
) *Gateway {
	triggers := make([]string, 0, len(triggerPhrases))
	for _, phrase := range triggerPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			triggers = append(triggers, phrase)
		}
	}
	return &Gateway{
		sessions:      sessions,
		flow:          fl,
		router:        router,
		messenger:     sender,
		dm:            dm,
		homeChannelID: homeChannelID,
		triggers:      triggers,
		locks:         make(map[string]*sync.Mutex),
	}
}

// HandleEvent processes one inbound message. Turns from the same user are
// serialized; different users proceed concurrently.
func (g *Gateway) HandleEvent(ctx context.Context, ev Event) {
	if ev.UserID == "" || ev.ChannelID == "" {
		return
	}

	lock := g.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	text := strings.TrimSpace(mentionMarkup.ReplaceAllString(ev.Text, ""))

	// Public traffic outside the home channel is not ours.
	if !ev.IsDM() && g.homeChannelID != "" && ev.ChannelID != g.homeChannelID {
		return
	}

	running := g.sessions.Has(ev.UserID)
	triggered := g.matchesTrigger(text)
	isAttach := strings.EqualFold(text, "attach")

	if !running && !triggered && !isAttach {
		// Status commands work without a dialogue: answer and leave no
		// session behind unless the router is waiting on credentials.
		if (ev.IsDM() || ev.Mentioned) && command.ParseStatusCommand(text) != nil {
			sess := g.sessions.Get(ev.UserID)
			sess.Data.StatusOnly = true
			if sess.ChannelID == "" {
				sess.ChannelID = ev.ChannelID
			}
			g.router.Handle(ctx, sess, ev.ChannelID, text)
			if !sess.Data.StatusLookupPending {
				g.sessions.Remove(ev.UserID)
			}
			return
		}
		if ev.Mentioned && text == "" {
			g.send(ctx, ev.ChannelID, msgMentionPing)
		}
		// Unprompted public chatter is ignored; unprompted DMs too.
		return
	}

	// Re-trigger during a session asks before discarding progress.
	if running && triggered {
		sess := g.sessions.Get(ev.UserID)
		sess.PendingRestart = true
		g.sessions.Touch(sess)
		g.send(ctx, g.sessionChannel(sess, ev), msgRestartPrompt)
		return
	}

	// `attach` with no session opens one directly at the attachment stage.
	if !running && isAttach {
		if !ev.IsDM() && !ev.Mentioned && g.homeChannelID == "" {
			return
		}
		sess := g.sessions.Get(ev.UserID)
		sess.Stage = model.StageAttachments
		sess.ChannelID = ev.ChannelID
		g.sessions.Touch(sess)
		g.send(ctx, ev.ChannelID, msgAttachHere)
		return
	}

	if !running && triggered {
		g.startSession(ctx, ev)
		return
	}

	sess := g.sessions.Get(ev.UserID)
	g.sessions.RecordUserMessage(sess, text, len(ev.Attachments))

	// A session stays on the channel it started in. Messages from elsewhere
	// get pointed back instead of leaking the dialogue.
	if sess.ChannelID != "" && ev.ChannelID != sess.ChannelID {
		g.send(ctx, ev.ChannelID, msgDMContinue)
		return
	}
	if sess.ChannelID == "" {
		sess.ChannelID = ev.ChannelID
	}

	if g.router.Handle(ctx, sess, sess.ChannelID, text) {
		// A session opened just for a status lookup ends with it.
		if sess.Data.StatusOnly && !sess.Data.StatusLookupPending {
			g.sessions.Remove(ev.UserID)
			return
		}
		g.sessions.Touch(sess)
		return
	}

	g.flow.HandleTurn(ctx, sess, flow.Input{
		ChannelID:   sess.ChannelID,
		Text:        text,
		Attachments: ev.Attachments,
	})
}

// startSession opens a fresh dialogue. Public triggers move to a DM when the
// transport can open one; DM triggers start in place.
func (g *Gateway) startSession(ctx context.Context, ev Event) {
	channelID := ev.ChannelID
	if !ev.IsDM() && g.dm != nil {
		dmChannel, err := g.dm.OpenDM(ctx, ev.UserID)
		if err != nil {
			log.Warn().Err(err).Str("userId", ev.UserID).Msg("failed to open DM")
			g.send(ctx, ev.ChannelID, msgDMFailed)
			return
		}
		channelID = dmChannel
		g.send(ctx, ev.ChannelID, msgDMContinue)
	}

	sess := g.sessions.Get(ev.UserID)
	sess.Stage = g.flow.InitialStage()
	sess.ChannelID = channelID
	sess.Data = model.NewSessionData()
	g.sessions.Touch(sess)
	audit.Log(audit.Event{Type: audit.EventSessionStart, UserID: ev.UserID, SessionID: sess.ID})
	g.send(ctx, channelID, g.flow.StartPrompt())
}

func (g *Gateway) matchesTrigger(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range g.triggers {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// sessionChannel prefers the channel a session is bound to, falling back to
// where the event arrived.
func (g *Gateway) sessionChannel(sess *model.Session, ev Event) string {
	if sess.ChannelID != "" {
		return sess.ChannelID
	}
	return ev.ChannelID
}

func (g *Gateway) userLock(userID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[userID] = lock
	}
	return lock
}

func (g *Gateway) send(ctx context.Context, channelID, text string) {
	if err := g.messenger.SendMessage(ctx, channelID, text); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msg("failed to send message")
	}
}
