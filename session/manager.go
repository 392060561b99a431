package session

import (
	"context"
	"sync"
	"sync/atomic"
)

// Manager holds the current session and switches files atomically.
//
// A Load that fails leaves the current session untouched. A Load started while another is in
// progress cancels the earlier one.
type Manager struct {
	cfg     *Config
	metrics *Metrics
	current atomic.Pointer[Session]

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewManager creates a Manager with the given options.
func NewManager(opts ...Option) (*Manager, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Manager{cfg: cfg, metrics: &Metrics{}}, nil
}

// Config returns the configuration shared by the sessions.
func (m *Manager) Config() *Config { return m.cfg }

// Metrics returns the counters shared by the sessions.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// Current returns the current session, or nil before the first successful Load.
func (m *Manager) Current() *Session { return m.current.Load() }

// Load opens path and makes it the current session. The previous session is closed only after
// the new one is ready.
func (m *Manager) Load(ctx context.Context, path string) (*Session, error) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	m.metrics.incLoadCount()
	s, err := open(ctx, path, m.cfg, m.metrics)
	if err != nil {
		m.metrics.incLoadErrCount()
		m.cfg.Logger().Error("load failed, current file kept", "file", path, "error", err)
		return nil, err
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = s.Close()
		m.metrics.incLoadErrCount()
		return nil, ErrSuperseded
	}
	m.cancel = nil
	old := m.current.Swap(s)
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.cfg.Logger().Warn("close previous file", "file", old.Path(), "error", err)
		}
	}

	return s, nil
}

// Close closes the current session.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	if s := m.current.Swap(nil); s != nil {
		return s.Close()
	}

	return nil
}
