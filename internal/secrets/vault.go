package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	apperrors "github.com/openclaw/intake-bot-go/internal/errors"
	"github.com/openclaw/intake-bot-go/internal/model"
)

// VaultStore reads credential records from an AES-256-GCM encrypted file.
// The on-disk format is a JSON envelope holding one base64 blob of
// nonce||ciphertext sealed with the hex-encoded master key.
type VaultStore struct {
	path      string
	masterKey string
}

type vaultEnvelope struct {
	Payload string `json:"payload"`
}

func NewVaultStore(path, hexMasterKey string) *VaultStore {
	return &VaultStore{path: path, masterKey: hexMasterKey}
}

func (s *VaultStore) GetCredentialByID(id string) (*model.Credential, error) {
	if id == "" {
		return nil, apperrors.MissingRequired("credential id")
	}

	parsed, err := s.load()
	if err != nil {
		return nil, err
	}
	return findRecord(parsed.Records, id)
}

// Put inserts or replaces a record and rewrites the vault.
func (s *VaultStore) Put(record model.Credential) error {
	if record.ID == "" {
		return apperrors.MissingRequired("credential id")
	}

	parsed, err := s.load()
	if err != nil {
		if apperrors.GetCode(err) != apperrors.ErrCodeNotFound {
			return err
		}
		parsed = &credentialFile{Records: []model.Credential{}}
	}

	replaced := false
	for i := range parsed.Records {
		if parsed.Records[i].ID == record.ID {
			parsed.Records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		parsed.Records = append(parsed.Records, record)
	}

	return s.save(parsed)
}

func (s *VaultStore) load() (*credentialFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("credential vault").WithCause(err)
		}
		return nil, apperrors.Credentials("failed to read credential vault").WithCause(err)
	}

	var envelope vaultEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.Credentials("credential vault is not valid JSON").WithCause(err)
	}

	plaintext, err := decryptPayload(s.masterKey, envelope.Payload)
	if err != nil {
		return nil, apperrors.Credentials("failed to decrypt credential vault").WithCause(err)
	}

	var parsed credentialFile
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return nil, apperrors.Credentials("credential vault payload is malformed").WithCause(err)
	}
	if parsed.Records == nil {
		parsed.Records = []model.Credential{}
	}
	return &parsed, nil
}

func (s *VaultStore) save(parsed *credentialFile) error {
	plaintext, err := json.Marshal(parsed)
	if err != nil {
		return apperrors.Internal("failed to encode credential records").WithCause(err)
	}

	sealed, err := encryptPayload(s.masterKey, plaintext)
	if err != nil {
		return apperrors.Credentials("failed to encrypt credential vault").WithCause(err)
	}

	raw, err := json.Marshal(vaultEnvelope{Payload: sealed})
	if err != nil {
		return apperrors.Internal("failed to encode credential vault").WithCause(err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return apperrors.Credentials("failed to write credential vault").WithCause(err)
	}
	return nil
}

func newGCM(hexKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, apperrors.InvalidInput("master key", "must be hex-encoded")
	}
	if len(key) != 32 {
		return nil, apperrors.InvalidInput("master key", "must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encryptPayload(hexKey string, plaintext []byte) (string, error) {
	gcm, err := newGCM(hexKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptPayload(hexKey, encoded string) ([]byte, error) {
	gcm, err := newGCM(hexKey)
	if err != nil {
		return nil, err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, apperrors.Credentials("vault ciphertext too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
