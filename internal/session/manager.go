package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/truckroute/internal/vehicle"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

const (
	// DefaultIdleTimeout ends sessions that have not reported for this long.
	DefaultIdleTimeout = 30 * time.Minute

	sweepInterval = time.Minute

	ReasonClient   = "client"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// Manager owns the live sessions.
type Manager struct {
	deps        *Dependencies
	idleTimeout time.Duration
	root        context.Context
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. Sessions inherit values from root but are
// ended explicitly, not by cancelling root.
func NewManager(root context.Context, deps Dependencies, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		deps:        &deps,
		idleTimeout: idleTimeout,
		root:        context.WithoutCancel(root),
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a session for the vehicle profile.
func (m *Manager) Create(profile vehicle.Profile) (*Session, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	s := newSession(m.root, uuid.NewString(), profile, m.deps)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	activeSessions.Inc()

	logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.Float64("height_m", profile.HeightMeters),
		zap.Float64("weight_t", profile.WeightTonnes),
	)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// UpdatePosition records a fix for the session with id.
func (m *Manager) UpdatePosition(id string, p Position) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.UpdatePosition(p)
}

// End ends and forgets a session.
func (m *Manager) End(id, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	activeSessions.Dec()
	s.End(reason)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run expires idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.ExpireIdle()
		case <-ctx.Done():
			return
		}
	}
}

// ExpireIdle ends every session idle for longer than the timeout and
// returns how many it ended.
func (m *Manager) ExpireIdle() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	ended := 0
	for _, id := range idle {
		if err := m.End(id, ReasonIdle); err == nil {
			ended++
			logger.Info("idle session expired", zap.String("session_id", id))
		}
	}
	return ended
}

// Shutdown ends every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		activeSessions.Dec()
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.End(ReasonShutdown)
		}(s)
	}
	wg.Wait()
}
