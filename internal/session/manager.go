package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Manager owns the live controllers by session id
type Manager struct {
	camera      Camera
	pose        PoseEngine
	events      EventSink
	newSelector SelectorFactory
	cfg         Config
	maxSessions int
	logger      *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewManager creates a manager. maxSessions <= 0 means unlimited.
func NewManager(camera Camera, pose PoseEngine, events EventSink, newSelector SelectorFactory, cfg Config, maxSessions int, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		camera:      camera,
		pose:        pose,
		events:      events,
		newSelector: newSelector,
		cfg:         cfg,
		maxSessions: maxSessions,
		logger:      logger,
		sessions:    make(map[string]*Controller),
	}
}

// Create starts a new session in select mode
func (m *Manager) Create() (*Controller, error) {
	id := uuid.New().String()
	c := NewController(id, m.camera, m.pose, m.events, m.newSelector, m.cfg, m.logger)

	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = c
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	c.emit(c.newEvent(models.EventSessionCreated))
	return c, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Close tears down and forgets a session
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.SessionsActive.Dec()
	return c.Close()
}

// CloseAll tears down every session; used on shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for id, c := range sessions {
		metrics.SessionsActive.Dec()
		if err := c.Close(); err != nil {
			m.logger.WithSessionID(id).WarnWithErr("Failed to close session", err)
		}
	}
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
