package secretstore

import (
	"errors"
	"fmt"
	"sync"

	keyringlib "github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get when no secret exists for the given key.
var ErrNotFound = errors.New("secret not found in store")

// DefaultService is the keyring service namespace used by the reporter.
const DefaultService = "halm-reporter"

// Store abstracts the external secret storage that credential references
// resolve against. Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the secret stored for a given service and key.
	// It returns ErrNotFound if no secret is stored.
	Get(service, key string) (string, error)
	// Set stores a secret for a given service and key.
	Set(service, key, secret string) error
	// Delete removes a secret. Deleting a missing secret is not an error.
	Delete(service, key string) error
}

// KeyringStore stores secrets in the operating system keyring.
type KeyringStore struct{}

// NewKeyringStore creates a new KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	secret, err := keyringlib.Get(service, key)
	if err != nil {
		if errors.Is(err, keyringlib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get secret from OS keyring: %w", err)
	}
	return secret, nil
}

func (s *KeyringStore) Set(service, key, secret string) error {
	return keyringlib.Set(service, key, secret)
}

func (s *KeyringStore) Delete(service, key string) error {
	err := keyringlib.Delete(service, key)
	if err != nil && !errors.Is(err, keyringlib.ErrNotFound) {
		return err
	}
	return nil
}

var _ Store = (*KeyringStore)(nil)

// MemoryStore is an in-memory implementation of the Store interface for testing.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> key -> secret
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Get(service, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if keys, ok := s.store[service]; ok {
		if secret, ok := keys[key]; ok {
			return secret, nil
		}
	}
	return "", ErrNotFound
}

func (s *MemoryStore) Set(service, key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store[service]; !ok {
		s.store[service] = make(map[string]string)
	}
	s.store[service][key] = secret
	return nil
}

func (s *MemoryStore) Delete(service, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keys, ok := s.store[service]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.store, service)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
