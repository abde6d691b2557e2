// Package vault encrypts third-party API keys at rest. Plaintext keys only
// ever exist in memory: stores receive ciphertext and IV, and log output gets
// the masked hint at most.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

// ErrDecryption is returned when a ciphertext fails authentication, typically
// because the encryption key changed or the stored value was tampered with.
var ErrDecryption = errors.New("decryption failed")

// Cipher performs AES-256-GCM encryption with a random IV per call. The IV is
// stored alongside the ciphertext rather than prepended to it so that both
// columns remain independently inspectable.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher creates a cipher from a 32-byte key
func NewCipher(encryptionKey []byte) (*Cipher, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (256 bits)")
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Encrypt encrypts a plaintext and returns hex-encoded ciphertext and IV.
// A fresh random IV is generated on every call, so encrypting the same
// plaintext twice never yields the same ciphertext.
func (c *Cipher) Encrypt(plaintext string) (ciphertext string, iv string, err error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := c.gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return hex.EncodeToString(sealed), hex.EncodeToString(nonce), nil
}

// Decrypt decrypts hex-encoded ciphertext with its IV. Authentication failure
// is reported as ErrDecryption.
func (c *Cipher) Decrypt(ciphertext string, iv string) (string, error) {
	sealed, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("failed to decode IV: %w", err)
	}
	if len(nonce) != c.gcm.NonceSize() {
		return "", fmt.Errorf("%w: bad IV length", ErrDecryption)
	}

	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// KeyHint returns a masked rendering of an API key safe for display and logs.
// Keys of four characters or fewer are fully masked; longer keys show eight
// stars followed by the last four characters.
func KeyHint(apiKey string) string {
	if len(apiKey) <= 4 {
		return strings.Repeat("*", len(apiKey))
	}
	return strings.Repeat("*", 8) + apiKey[len(apiKey)-4:]
}

// GenerateEncryptionKey creates a random 32-byte key and returns it hex encoded
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	return hex.EncodeToString(key), nil
}

// EncryptionKeyFromHex decodes a hex-encoded 32-byte encryption key
func EncryptionKeyFromHex(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (256 bits), got %d", len(key))
	}

	return key, nil
}

// Service stores and reveals API keys for integration services. Each owner
// holds at most one credential per service.
type Service struct {
	store  storage.CredentialStore
	cipher *Cipher
}

// NewService creates a credential vault service
func NewService(store storage.CredentialStore, encryptionKey []byte) (*Service, error) {
	c, err := NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}

	return &Service{store: store, cipher: c}, nil
}

// Store encrypts and saves an API key for a service. An existing credential
// for the same owner and service is replaced, keeping its ID and creation
// time. The returned credential carries no plaintext.
func (s *Service) Store(ownerID, service, apiKey string) (models.Credential, error) {
	if ownerID == "" {
		return models.Credential{}, fmt.Errorf("owner ID is required")
	}
	if service == "" {
		return models.Credential{}, fmt.Errorf("service is required")
	}
	if apiKey == "" {
		return models.Credential{}, fmt.Errorf("API key is required")
	}

	ciphertext, iv, err := s.cipher.Encrypt(apiKey)
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to encrypt API key: %w", err)
	}

	now := time.Now()
	credential := models.Credential{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Service:    service,
		Ciphertext: ciphertext,
		IV:         iv,
		KeyHint:    KeyHint(apiKey),
		Valid:      true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Replacing a credential keeps its identity
	if existing, err := s.store.GetCredentialByService(ownerID, service); err == nil {
		credential.ID = existing.ID
		credential.CreatedAt = existing.CreatedAt
	}

	if err := s.store.SaveCredential(credential); err != nil {
		return models.Credential{}, fmt.Errorf("failed to save credential: %w", err)
	}

	return credential, nil
}

// Reveal decrypts the API key of a credential by ID
func (s *Service) Reveal(ownerID, credentialID string) (string, error) {
	credential, err := s.store.GetCredential(ownerID, credentialID)
	if err != nil {
		return "", err
	}

	return s.cipher.Decrypt(credential.Ciphertext, credential.IV)
}

// RevealForService decrypts the API key for an owner's service credential.
// A missing credential surfaces storage.ErrCredentialNotFound so callers can
// distinguish "not configured" from a decryption failure.
func (s *Service) RevealForService(ownerID, service string) (string, error) {
	credential, err := s.store.GetCredentialByService(ownerID, service)
	if err != nil {
		return "", err
	}

	return s.cipher.Decrypt(credential.Ciphertext, credential.IV)
}

// List returns the owner's credentials with hints only
func (s *Service) List(ownerID string) ([]models.Credential, error) {
	return s.store.ListCredentials(ownerID)
}

// Get returns a single credential with hint only
func (s *Service) Get(ownerID, credentialID string) (models.Credential, error) {
	return s.store.GetCredential(ownerID, credentialID)
}

// Delete removes a credential
func (s *Service) Delete(ownerID, credentialID string) error {
	return s.store.DeleteCredential(ownerID, credentialID)
}

// RecordTest updates a credential's validity flag after a connection test
func (s *Service) RecordTest(ownerID, credentialID string, valid bool, at time.Time) (models.Credential, error) {
	credential, err := s.store.GetCredential(ownerID, credentialID)
	if err != nil {
		return models.Credential{}, err
	}

	credential.Valid = valid
	credential.LastTestedAt = &at
	credential.UpdatedAt = at

	if err := s.store.SaveCredential(credential); err != nil {
		return models.Credential{}, fmt.Errorf("failed to update credential: %w", err)
	}

	return credential, nil
}
