package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/model"
	"github.com/openclaw/intake-bot-go/internal/store"
)

type fakeMessenger struct {
	mu       sync.Mutex
	messages []string
}

func (m *fakeMessenger) SendMessage(_ context.Context, _, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

func (m *fakeMessenger) SendImage(context.Context, string, string, string) error { return nil }

func (m *fakeMessenger) SendFiles(context.Context, string, []messenger.File, string) error {
	return nil
}

func (m *fakeMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return ""
	}
	return m.messages[len(m.messages)-1]
}

type fakeRunner struct {
	requests []automation.Request
	result   *automation.Result
	err      error
}

func (r *fakeRunner) Run(_ context.Context, req automation.Request) (*automation.Result, error) {
	r.requests = append(r.requests, req)
	return r.result, r.err
}

func TestParseStatusCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *model.StatusQuery
	}{
		{"bare status", "status", &model.StatusQuery{Kind: "list", Filter: "open"}},
		{"request status", "request status", &model.StatusQuery{Kind: "list", Filter: "open"}},
		{"mixed case", "Request  Status", &model.StatusQuery{Kind: "list", Filter: "open"}},
		{"open filter", "status open", &model.StatusQuery{Kind: "list", Filter: "open"}},
		{"all filter", "status ALL", &model.StatusQuery{Kind: "list", Filter: store.FilterAll}},
		{"resolved filter", "status resolved", &model.StatusQuery{Kind: "list", Filter: "resolved"}},
		{"cancelled filter", "status cancelled", &model.StatusQuery{Kind: "list", Filter: "cancelled"}},
		{"canceled spelling", "status canceled", &model.StatusQuery{Kind: "list", Filter: "cancelled"}},
		{"detail query", "status REQ-20260828T1204-9F3A", &model.StatusQuery{Kind: "detail", Query: "REQ-20260828T1204-9F3A"}},
		{"detail free text", "request status the AC one", &model.StatusQuery{Kind: "detail", Query: "the AC one"}},
		{"not a command", "my status is fine", nil},
		{"substring not matched", "statusy", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatusCommand(tt.text))
		})
	}
}

func newSession(userID string) *model.Session {
	return &model.Session{ID: "sess-1", UserID: userID, Data: model.NewSessionData()}
}

func TestHandleNonCommandPassesThrough(t *testing.T) {
	router := NewRouter(store.NewMemoryRequestStore(), &fakeRunner{}, &fakeMessenger{})

	handled := router.Handle(context.Background(), newSession("user-1"), "chan-1", "hello there")

	assert.False(t, handled)
}

func TestHandleListShowsCappedWindow(t *testing.T) {
	requests := store.NewMemoryRequestStore()
	for i := 0; i < 7; i++ {
		_, err := requests.RecordSuccess(context.Background(), model.RecordSuccessParams{
			UserID:           "user-1",
			IssueDescription: "issue",
		})
		require.NoError(t, err)
	}
	sender := &fakeMessenger{}
	router := NewRouter(requests, &fakeRunner{}, sender)

	handled := router.Handle(context.Background(), newSession("user-1"), "chan-1", "status")

	assert.True(t, handled)
	assert.Contains(t, sender.last(), "showing 5 of 7")
}

func TestHandleListEmpty(t *testing.T) {
	sender := &fakeMessenger{}
	router := NewRouter(store.NewMemoryRequestStore(), &fakeRunner{}, sender)

	router.Handle(context.Background(), newSession("user-1"), "chan-1", "status all")

	assert.Equal(t, msgStatusEmpty, sender.last())
}

func TestHandleDetailFromLocalStore(t *testing.T) {
	requests := store.NewMemoryRequestStore()
	recorded, err := requests.RecordSuccess(context.Background(), model.RecordSuccessParams{
		UserID:           "user-1",
		PortalURL:        "https://portal.example.com",
		IssueDescription: "leaky faucet",
		Confirmation:     "CASE-42",
	})
	require.NoError(t, err)

	sender := &fakeMessenger{}
	runner := &fakeRunner{}
	router := NewRouter(requests, runner, sender)

	router.Handle(context.Background(), newSession("user-1"), "chan-1", "status "+recorded.ID)

	assert.Contains(t, sender.last(), recorded.ID)
	assert.Contains(t, sender.last(), "leaky faucet")
	assert.Contains(t, sender.last(), "CASE-42")
	assert.Empty(t, runner.requests, "local hit never reaches the agent")
}

func TestHandleDetailMissDefersForCredentials(t *testing.T) {
	sender := &fakeMessenger{}
	runner := &fakeRunner{result: &automation.Result{
		Success: true,
		Raw:     map[string]any{"resultJson": map[string]any{"message": "CASE-77 is In Progress."}},
	}}
	router := NewRouter(store.NewMemoryRequestStore(), runner, sender)
	sess := newSession("user-1")

	router.Handle(context.Background(), sess, "chan-1", "status CASE-77")
	assert.True(t, sess.Data.StatusLookupPending)
	assert.Equal(t, msgStatusNeedCreds, sender.last())
	assert.Empty(t, runner.requests)

	// Malformed credential answers re-prompt without losing the query.
	handled := router.Handle(context.Background(), sess, "chan-1", "just two, parts")
	assert.True(t, handled)
	assert.Equal(t, msgStatusCredsBadFormat, sender.last())
	assert.True(t, sess.Data.StatusLookupPending)

	router.Handle(context.Background(), sess, "chan-1", "https://portal.example.com, alex, hunter2")

	assert.False(t, sess.Data.StatusLookupPending)
	require.Len(t, runner.requests, 1)
	assert.Equal(t, "https://portal.example.com", runner.requests[0].PortalURL)
	assert.Contains(t, runner.requests[0].Goal, "CASE-77")
	assert.Equal(t, "CASE-77 is In Progress.", sender.last())
	assert.Nil(t, sess.Data.StatusQuery)
}

func TestHandleDetailMissWithCredentialsRunsDirectly(t *testing.T) {
	sender := &fakeMessenger{}
	runner := &fakeRunner{result: &automation.Result{
		Success: true,
		Raw:     map[string]any{"resultJson": map[string]any{"message": "No matching request found."}},
	}}
	router := NewRouter(store.NewMemoryRequestStore(), runner, sender)
	sess := newSession("user-1")
	sess.Data.PortalURL = "https://portal.example.com"
	sess.Data.Username = "alex"
	sess.Data.Password = "hunter2"

	router.Handle(context.Background(), sess, "chan-1", "status CASE-1")

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "No matching request found.", sender.last())
	assert.False(t, sess.Data.StatusLookupPending)
}

func TestHandleCredentialAnswerRejectsEmptyParts(t *testing.T) {
	sender := &fakeMessenger{}
	router := NewRouter(store.NewMemoryRequestStore(), &fakeRunner{}, sender)
	sess := newSession("user-1")
	sess.Data.StatusLookupPending = true
	sess.Data.StatusQuery = &model.StatusQuery{Kind: "detail", Query: "CASE-1"}

	router.Handle(context.Background(), sess, "chan-1", "https://portal.example.com,,hunter2")

	assert.Equal(t, msgStatusCredsBadFormat, sender.last())
	assert.True(t, sess.Data.StatusLookupPending)
}
