package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/jengzang/runtrack-go/internal/models"
)

var (
	// ErrSessionActive is returned by Start while another run is tracking or paused
	ErrSessionActive = errors.New("a run session is already active")
	// ErrNoSession is returned when no session was ever started
	ErrNoSession = errors.New("no run session")
)

// Manager holds the client's single run session. The last stopped session
// stays readable until the next Start replaces it.
type Manager struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager building sessions from opts
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts}
}

// Start constructs a fresh session and starts tracking
func (m *Manager) Start() (models.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.Active() {
			return models.SessionSnapshot{}, ErrSessionActive
		}
		m.current.Close()
	}

	s := NewSession(m.opts)
	if err := s.Start(); err != nil {
		s.Close()
		return models.SessionSnapshot{}, err
	}
	m.current = s
	return s.Snapshot(), nil
}

// Pause pauses the current session
func (m *Manager) Pause() (models.SessionSnapshot, error) {
	s, err := m.session()
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	if err := s.Pause(); err != nil {
		return models.SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// Resume resumes the current session
func (m *Manager) Resume() (models.SessionSnapshot, error) {
	s, err := m.session()
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	if err := s.Resume(); err != nil {
		return models.SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// Stop stops the current session and persists the run
func (m *Manager) Stop(ctx context.Context) (*models.StopSummary, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.Stop(ctx)
}

// Snapshot reads the current (or last stopped) session
func (m *Manager) Snapshot() (models.SessionSnapshot, error) {
	s, err := m.session()
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// Close tears down the current session without persisting it
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Close()
	}
}

func (m *Manager) session() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}
