package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/intake-bot-go/internal/model"
)

// PostgresRequestStore persists request history across restarts. It is
// selected when DATABASE_URL is configured.
type PostgresRequestStore struct {
	db *sqlx.DB
}

func NewPostgresRequestStore(db *sqlx.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

// EnsureSchema creates the request-history table when missing.
func (s *PostgresRequestStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS maintenance_requests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			portal_url TEXT NOT NULL DEFAULT '',
			issue_description TEXT NOT NULL DEFAULT '',
			confirmation TEXT NOT NULL DEFAULT '',
			channel_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_maintenance_requests_user
			ON maintenance_requests (user_id, created_at DESC)
	`)
	return err
}

func (s *PostgresRequestStore) RecordSuccess(ctx context.Context, params model.RecordSuccessParams) (*model.StoredRequest, error) {
	now := time.Now()
	var request model.StoredRequest
	err := s.db.GetContext(ctx, &request, `
		INSERT INTO maintenance_requests
			(id, user_id, portal_url, issue_description, confirmation, channel_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING *
	`, NewRequestID(now), params.UserID, params.PortalURL, params.IssueDescription,
		params.Confirmation, params.ChannelID, model.RequestStatusOpen, now)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *PostgresRequestStore) List(ctx context.Context, userID, filter string) ([]model.StoredRequest, error) {
	var requests []model.StoredRequest
	var err error
	if strings.EqualFold(filter, FilterAll) {
		err = s.db.SelectContext(ctx, &requests, `
			SELECT * FROM maintenance_requests
			WHERE user_id = $1
			ORDER BY created_at DESC
		`, userID)
	} else {
		err = s.db.SelectContext(ctx, &requests, `
			SELECT * FROM maintenance_requests
			WHERE user_id = $1 AND status = $2
			ORDER BY created_at DESC
		`, userID, model.NormalizeRequestStatus(filter))
	}
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *PostgresRequestStore) FindByID(ctx context.Context, userID, query string) (*model.StoredRequest, error) {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	if normalized == "" {
		return nil, nil
	}

	var request model.StoredRequest
	err := s.db.GetContext(ctx, &request, `
		SELECT * FROM maintenance_requests
		WHERE user_id = $1 AND id = $2
	`, userID, normalized)
	if err == nil {
		return &request, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = s.db.GetContext(ctx, &request, `
		SELECT * FROM maintenance_requests
		WHERE user_id = $1 AND id LIKE '%' || $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *PostgresRequestStore) UpdateStatus(ctx context.Context, userID, id, status string) (*model.StoredRequest, error) {
	var request model.StoredRequest
	err := s.db.GetContext(ctx, &request, `
		UPDATE maintenance_requests SET
			status = $3,
			updated_at = $4
		WHERE user_id = $1 AND id = $2
		RETURNING *
	`, userID, strings.ToUpper(strings.TrimSpace(id)), model.NormalizeRequestStatus(status), time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}
