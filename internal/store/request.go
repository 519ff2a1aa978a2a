package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/intake-bot-go/internal/model"
)

// FilterAll lists every request regardless of status.
const FilterAll = "ALL"

// RequestStore keeps the per-user history of submitted requests. Requests
// are recorded on successful submission and never deleted; status changes
// come from outside the dialogue.
type RequestStore interface {
	RecordSuccess(ctx context.Context, params model.RecordSuccessParams) (*model.StoredRequest, error)
	// List returns the user's requests most-recent-first, filtered by
	// status (FilterAll for everything; empty filter means OPEN).
	List(ctx context.Context, userID, filter string) ([]model.StoredRequest, error)
	// FindByID matches a full request id case-insensitively, falling back
	// to a trailing-substring match for shortened ids.
	FindByID(ctx context.Context, userID, query string) (*model.StoredRequest, error)
	UpdateStatus(ctx context.Context, userID, id, status string) (*model.StoredRequest, error)
}

// NewRequestID builds a request identifier from a UTC timestamp fragment and
// a random suffix, e.g. REQ-20260828T1204-9F3A.
func NewRequestID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "REQ-" + now.UTC().Format("20060102T1504") + "-" + suffix
}

// MemoryRequestStore is the default in-process implementation.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string][]*model.StoredRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string][]*model.StoredRequest)}
}

func (s *MemoryRequestStore) RecordSuccess(_ context.Context, params model.RecordSuccessParams) (*model.StoredRequest, error) {
	now := time.Now()
	request := &model.StoredRequest{
		ID:               NewRequestID(now),
		UserID:           params.UserID,
		PortalURL:        params.PortalURL,
		IssueDescription: params.IssueDescription,
		Confirmation:     params.Confirmation,
		ChannelID:        params.ChannelID,
		Status:           model.RequestStatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.mu.Lock()
	s.requests[params.UserID] = append([]*model.StoredRequest{request}, s.requests[params.UserID]...)
	s.mu.Unlock()

	copied := *request
	return &copied, nil
}

func (s *MemoryRequestStore) List(_ context.Context, userID, filter string) ([]model.StoredRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := strings.EqualFold(filter, FilterAll)
	var target model.RequestStatus
	if !all {
		target = model.NormalizeRequestStatus(filter)
	}

	var out []model.StoredRequest
	for _, request := range s.requests[userID] {
		if all || request.Status == target {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (s *MemoryRequestStore) FindByID(_ context.Context, userID, query string) (*model.StoredRequest, error) {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	if normalized == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, request := range s.requests[userID] {
		if request.ID == normalized {
			copied := *request
			return &copied, nil
		}
	}
	for _, request := range s.requests[userID] {
		if strings.HasSuffix(request.ID, normalized) {
			copied := *request
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryRequestStore) UpdateStatus(_ context.Context, userID, id, status string) (*model.StoredRequest, error) {
	normalized := strings.ToUpper(strings.TrimSpace(id))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, request := range s.requests[userID] {
		if request.ID == normalized {
			request.Status = model.NormalizeRequestStatus(status)
			request.UpdatedAt = time.Now()
			copied := *request
			return &copied, nil
		}
	}
	return nil, nil
}
