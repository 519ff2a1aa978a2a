package secrets

import (
	"encoding/json"
	"os"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
	"github.com/openclaw/intake-bot-go/internal/model"
)

// Store resolves portal credentials by id. Missing or malformed backing
// files surface as errors to the caller, never get swallowed.
type Store interface {
	GetCredentialByID(id string) (*model.Credential, error)
}

type credentialFile struct {
	Records []model.Credential `json:"records"`
}

// FileStore reads plaintext credential records from a JSON file with a
// top-level records array. The file is re-read on every lookup so records
// can be rotated without a restart.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (*credentialFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("credentials file").WithCause(err)
		}
		return nil, apperrors.Credentials("failed to read credentials file").WithCause(err)
	}

	var parsed credentialFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.Credentials("credentials file contains invalid JSON").WithCause(err)
	}
	if parsed.Records == nil {
		return nil, apperrors.Credentials("credentials file must contain a records array")
	}
	return &parsed, nil
}

func (s *FileStore) GetCredentialByID(id string) (*model.Credential, error) {
	if id == "" {
		return nil, apperrors.MissingRequired("credential id")
	}

	parsed, err := s.load()
	if err != nil {
		return nil, err
	}
	return findRecord(parsed.Records, id)
}

func findRecord(records []model.Credential, id string) (*model.Credential, error) {
	for i := range records {
		if records[i].ID == id {
			copied := records[i]
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("credential " + id)
}
