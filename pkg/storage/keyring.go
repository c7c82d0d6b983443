package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/zalando/go-keyring"

	"github.com/dshills/nodeflow/pkg/capability"
)

const (
	// ServiceName is the keyring service under which nodeflow credentials live.
	ServiceName = "nodeflow"

	indexKey = "__nodeflow_index__"
)

// CredentialStore stores secrets such as HTTP bearer tokens.
type CredentialStore interface {
	capability.CredentialSource
	Set(key string, value string) error
	Delete(key string) error
	// List returns all credential keys, never the values.
	List() ([]string, error)
}

// KeyringCredentialStore implements CredentialStore on the system keyring:
// Keychain on macOS, Credential Manager on Windows and Secret Service on Linux.
// The keyring cannot enumerate entries, so an index entry tracks the keys.
type KeyringCredentialStore struct {
	service string
	log     *slog.Logger
}

var _ CredentialStore = (*KeyringCredentialStore)(nil)

// NewKeyringCredentialStore creates a keyring-based credential store.
func NewKeyringCredentialStore(log *slog.Logger) *KeyringCredentialStore {
	if log == nil {
		log = slog.Default()
	}
	return &KeyringCredentialStore{service: ServiceName, log: log}
}

// Set stores a credential. The key is the account name and value the secret.
func (s *KeyringCredentialStore) Set(key string, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// The credential is stored even when the index update fails.
	if err := s.updateIndex(func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	}); err != nil {
		s.log.Warn("failed to update credential index", "key", key, "error", err)
	}
	return nil
}

// Get retrieves a credential.
func (s *KeyringCredentialStore) Get(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}

	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("credential %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}
	return value, nil
}

// Delete removes a credential.
func (s *KeyringCredentialStore) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("credential %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if err := s.updateIndex(func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	}); err != nil {
		s.log.Warn("failed to update credential index", "key", key, "error", err)
	}
	return nil
}

// List returns the stored credential keys in insertion order.
func (s *KeyringCredentialStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve credential index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential index: %w", err)
	}
	return keys, nil
}

func (s *KeyringCredentialStore) updateIndex(update func([]string) []string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}

	indexJSON, err := json.Marshal(update(keys))
	if err != nil {
		return fmt.Errorf("failed to marshal credential index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(indexJSON)); err != nil {
		return fmt.Errorf("failed to save credential index: %w", err)
	}
	return nil
}

// SetStructured stores a structured credential serialized as JSON.
func (s *KeyringCredentialStore) SetStructured(key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal credential data: %w", err)
	}
	return s.Set(key, string(jsonData))
}

// GetStructured retrieves and deserializes a structured credential.
func (s *KeyringCredentialStore) GetStructured(key string, dest interface{}) error {
	jsonData, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return fmt.Errorf("failed to unmarshal credential data: %w", err)
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}
	if key == indexKey {
		return fmt.Errorf("credential key %q is reserved", key)
	}
	return nil
}
