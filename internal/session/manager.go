// Package session keeps live chat sessions in memory, keyed by ID, and
// expires them after a period of inactivity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/metrics"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Factory creates a fresh session.
type Factory func() (*agent.Session, error)

// Manager owns the live sessions. Reads refresh a session's idle timer.
type Manager struct {
	cache      *ttlcache.Cache[string, *agent.Session]
	newSession Factory
	log        *slog.Logger
}

// NewManager creates a Manager. A zero maxSessions means unbounded; when
// the bound is hit the least recently used session is evicted.
func NewManager(ttl time.Duration, maxSessions uint64, factory Factory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []ttlcache.Option[string, *agent.Session]{
		ttlcache.WithTTL[string, *agent.Session](ttl),
	}
	if maxSessions > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *agent.Session](maxSessions))
	}
	cache := ttlcache.New(opts...)

	m := &Manager{cache: cache, newSession: factory, log: logger}
	cache.OnInsertion(func(_ context.Context, item *ttlcache.Item[string, *agent.Session]) {
		metrics.ActiveSessions.Inc()
		m.log.Debug("session created", "session_id", item.Key())
	})
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *agent.Session]) {
		metrics.ActiveSessions.Dec()
		m.log.Debug("session evicted", "session_id", item.Key(), "reason", evictionReason(reason))
	})
	return m
}

func evictionReason(r ttlcache.EvictionReason) string {
	switch r {
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity"
	case ttlcache.EvictionReasonExpired:
		return "expired"
	default:
		return "other"
	}
}

// Start runs the expiry loop until Stop is called. It blocks.
func (m *Manager) Start() { m.cache.Start() }

// Stop ends the expiry loop.
func (m *Manager) Stop() { m.cache.Stop() }

// Create starts a new session and returns its ID.
func (m *Manager) Create() (string, *agent.Session, error) {
	s, err := m.newSession()
	if err != nil {
		return "", nil, err
	}
	id := uuid.Must(uuid.NewV7()).String()
	m.cache.Set(id, s, ttlcache.DefaultTTL)
	return id, s, nil
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*agent.Session, error) {
	item := m.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// GetOrCreate returns the session for id, or a new one when id is empty.
// A non-empty unknown id is an error.
func (m *Manager) GetOrCreate(id string) (string, *agent.Session, error) {
	if id == "" {
		return m.Create()
	}
	s, err := m.Get(id)
	if err != nil {
		return "", nil, err
	}
	return id, s, nil
}

// Delete ends the session for id.
func (m *Manager) Delete(id string) error {
	if !m.cache.Has(id) {
		return ErrNotFound
	}
	m.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.cache.Len() }
