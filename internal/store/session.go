package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/intake-bot-go/internal/model"
)

// SessionStore holds the per-user dialogue sessions. It is process-wide and
// safe for concurrent use; mutation of an individual session is serialized
// per user by the gateway, not here.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*model.Session)}
}

// Get returns the user's session, creating one at the initial stage when
// none exists.
func (s *SessionStore) Get(userID string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess
	}

	now := time.Now()
	sess := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Stage:     model.StagePortal,
		Data:      model.NewSessionData(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[userID] = sess
	return sess
}

// Has reports whether the user has a session without creating one.
func (s *SessionStore) Has(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok
}

// Remove deletes the session record. The caller must already have released
// the session's temp directory.
func (s *SessionStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *SessionStore) Touch(sess *model.Session) {
	sess.UpdatedAt = time.Now()
}

// RecordUserMessage appends an inbound message to the session's audit trail.
func (s *SessionStore) RecordUserMessage(sess *model.Session, content string, attachments int) {
	now := time.Now()
	sess.Data.History = append(sess.Data.History, model.HistoryEntry{
		At:          now,
		Type:        "user",
		Content:     content,
		Attachments: attachments,
	})
	sess.Data.Responses = append(sess.Data.Responses, model.Note{At: now, Content: content})
	sess.UpdatedAt = now
}

// RecordExtra appends a timestamped free-text note collected during
// remediation.
func (s *SessionStore) RecordExtra(sess *model.Session, text string) {
	sess.Data.Extras = append(sess.Data.Extras, model.Note{At: time.Now(), Content: text})
	sess.UpdatedAt = time.Now()
}

// PurgeIdle removes sessions idle longer than ttl and returns them so the
// caller can release their temp directories.
func (s *SessionStore) PurgeIdle(ttl time.Duration) []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	var purged []*model.Session
	for userID, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			purged = append(purged, sess)
			delete(s.sessions, userID)
		}
	}
	return purged
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
