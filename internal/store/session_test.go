package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/intake-bot-go/internal/model"
)

func TestSessionStoreGetCreatesOnce(t *testing.T) {
	s := NewSessionStore()

	assert.False(t, s.Has("user-1"))

	sess := s.Get("user-1")
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, model.StagePortal, sess.Stage)
	assert.True(t, s.Has("user-1"))

	again := s.Get("user-1")
	assert.Same(t, sess, again)
	assert.Equal(t, 1, s.Len())
}

func TestSessionStoreRemove(t *testing.T) {
	s := NewSessionStore()
	s.Get("user-1")

	s.Remove("user-1")
	assert.False(t, s.Has("user-1"))
}

func TestRecordUserMessage(t *testing.T) {
	s := NewSessionStore()
	sess := s.Get("user-1")

	s.RecordUserMessage(sess, "hello", 2)

	require.Len(t, sess.Data.History, 1)
	assert.Equal(t, "user", sess.Data.History[0].Type)
	assert.Equal(t, "hello", sess.Data.History[0].Content)
	assert.Equal(t, 2, sess.Data.History[0].Attachments)
	require.Len(t, sess.Data.Responses, 1)
}

func TestPurgeIdle(t *testing.T) {
	s := NewSessionStore()
	stale := s.Get("stale-user")
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := s.Get("fresh-user")
	_ = fresh

	purged := s.PurgeIdle(30 * time.Minute)

	require.Len(t, purged, 1)
	assert.Equal(t, "stale-user", purged[0].UserID)
	assert.False(t, s.Has("stale-user"))
	assert.True(t, s.Has("fresh-user"))
}
