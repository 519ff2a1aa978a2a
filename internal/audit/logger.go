package audit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSessionStart      EventType = "session_start"
	EventSessionCancel     EventType = "session_cancel"
	EventSessionPurged     EventType = "session_purged"
	EventSubmissionSuccess EventType = "submission_success"
	EventSubmissionFailure EventType = "submission_failure"
	EventSignatureFailure  EventType = "signature_failure"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
)

// Event is one security- or lifecycle-relevant occurrence worth a durable
// trace, independent of the debug log level.
type Event struct {
	Type      EventType
	UserID    string
	SessionID string
	RequestID string
	IP        string
	Details   map[string]interface{}
}

func Log(event Event) {
	logger := log.With().
		Str("audit", "intake").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}
	if event.RequestID != "" {
		logger = logger.With().Str("request_id", event.RequestID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest attaches the caller's IP before logging.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	Log(event)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
