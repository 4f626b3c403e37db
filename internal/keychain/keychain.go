// Package keychain stores LLM provider API keys in the OS credential store.
package keychain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies the asksql namespace in the credential store.
const ServiceName = "asksql"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("api key not found in keychain")

// Manager reads and writes provider API keys. It is safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the platform's native credential store: macOS Keychain,
// Windows Credential Manager, Secret Service or the kernel keyring.
func Open() (*Manager, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.KeyCtlBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		KeyCtlScope:              "user",
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keychain: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

func itemKey(provider string) string {
	return strings.ToLower(provider) + "_api_key"
}

// SetAPIKey stores key for provider, replacing any previous value.
func (m *Manager) SetAPIKey(provider, key string) error {
	if key == "" {
		return errors.New("api key must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{
		Key:         itemKey(provider),
		Data:        []byte(key),
		Label:       "asksql " + provider + " API key",
		Description: "API key used by asksql to call the " + provider + " model API",
	})
}

// APIKey returns the stored key for provider.
func (m *Manager) APIKey(provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, err := m.ring.Get(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(item.Data) == 0 {
		return "", ErrNotFound
	}
	return string(item.Data), nil
}

// DeleteAPIKey removes the stored key for provider.
func (m *Manager) DeleteAPIKey(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Not every backend reports a missing key on Remove.
	if _, err := m.ring.Get(itemKey(provider)); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return m.ring.Remove(itemKey(provider))
}

// Resolve returns configured when it is set, otherwise the key stored for
// provider. A nil Manager only returns configured.
func Resolve(m *Manager, provider, configured string) (string, error) {
	if configured != "" || m == nil {
		return configured, nil
	}
	key, err := m.APIKey(provider)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return key, err
}

// Mask shortens key for display.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
