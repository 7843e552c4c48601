package manager

import (
	"fmt"
	"sync"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/config"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/registry"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/session"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/monitoring"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/shared/id"
	"golang.org/x/sync/errgroup"
)

// Manager is the high-level facade over sessions and their registry.
type Manager struct {
	cfg     config.EngineConfig
	log     *logging.Logger
	reg     *registry.Registry
	metrics *monitoring.Metrics // optional, nil disables recording
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMetrics enables Prometheus recording.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// New creates a manager with an empty registry.
func New(cfg config.EngineConfig, log *logging.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	m := &Manager{
		cfg: cfg,
		log: log,
		reg: registry.New(log),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// sessionConfig maps engine configuration onto per-session tuning.
func (m *Manager) sessionConfig() session.Config {
	return session.Config{
		Program:        m.cfg.Interpreter,
		Args:           m.cfg.Args,
		PollInterval:   m.cfg.PollInterval,
		ChunkWait:      m.cfg.ChunkWait,
		QuietWindow:    m.cfg.QuietWindow,
		GracefulStop:   m.cfg.GracefulStop,
		ReadBufferSize: m.cfg.ReadBufferSize,
	}
}

// Create registers a new, not-yet-started session for the configured
// interpreter. An empty id gets a generated one.
func (m *Manager) Create(sessionID string) (*session.Session, error) {
	return m.CreateWithConfig(sessionID, m.sessionConfig())
}

// CreateWithConfig registers a session running a custom program.
func (m *Manager) CreateWithConfig(sessionID string, scfg session.Config) (*session.Session, error) {
	if sessionID == "" {
		sessionID = id.NewVMID().String()
	}
	s, err := m.reg.Create(sessionID, func(sid string) *session.Session {
		return session.New(sid, scfg, m.log)
	})
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
	}
	return s, nil
}

// Get resolves a session id, failing with engine.ErrNotFound.
func (m *Manager) Get(sessionID string) (*session.Session, error) {
	s, ok := m.reg.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotFound, sessionID)
	}
	return s, nil
}

// Start starts the session's child process.
func (m *Manager) Start(sessionID string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return s.Start()
}

// Terminate shuts the session down but keeps it registered; use Remove to
// also unregister.
func (m *Manager) Terminate(sessionID string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return s.Terminate()
}

// Attach enables output callbacks, auto-starting a fresh session.
func (m *Manager) Attach(sessionID string, cb session.Callback) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return s.Attach(cb)
}

// Detach disables output callbacks.
func (m *Manager) Detach(sessionID string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	s.Detach()
	return nil
}

// SendInput writes a line of input to the interpreter.
func (m *Manager) SendInput(sessionID, text string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return s.SendInput(text)
}

// ReadOutput pops one queued output chunk, blocking up to timeout.
func (m *Manager) ReadOutput(sessionID string, timeout time.Duration) (string, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return "", err
	}
	return s.ReadOutput(timeout), nil
}

// DrainOutput returns everything buffered right now.
func (m *Manager) DrainOutput(sessionID string) (string, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return "", err
	}
	return s.DrainOutput(0), nil
}

// Execute runs one command through output stabilization.
func (m *Manager) Execute(sessionID, command string, timeout time.Duration) (string, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := s.ExecuteAndWait(command, timeout)
	if m.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordCommand(status, time.Since(start), len(out))
	}
	return out, err
}

// Remove terminates and unregisters a session. Returns whether an entry
// was removed; removing an unknown id is a no-op, never an error.
func (m *Manager) Remove(sessionID string) bool {
	removed := m.reg.Remove(sessionID)
	if removed && m.metrics != nil {
		m.metrics.RecordSessionRemoved()
	}
	return removed
}

// List snapshots all sessions.
func (m *Manager) List() []session.Info { return m.reg.List() }

// FindByPattern returns session ids matching a shell-style glob.
func (m *Manager) FindByPattern(pattern string) ([]string, error) {
	return m.reg.FindByPattern(pattern)
}

// CleanupDead reaps sessions whose child exited, returning removed ids.
func (m *Manager) CleanupDead() []string {
	removed := m.reg.CleanupDead()
	if len(removed) > 0 && m.metrics != nil {
		m.metrics.RecordSessionsReaped(len(removed))
	}
	return removed
}

// CleanupAll drains the registry at shutdown.
func (m *Manager) CleanupAll() int {
	count := m.reg.CleanupAll()
	if count > 0 && m.metrics != nil {
		m.metrics.SessionsActive.Sub(float64(count))
		m.metrics.SessionsTerminated.Add(float64(count))
	}
	return count
}

// Stats returns aggregate counts from one registry snapshot.
func (m *Manager) Stats() registry.Stats { return m.reg.Stats() }

// StartAndAttach creates, starts, and optionally attaches a session in one
// call. On start failure the session is unregistered again so no dead
// entry lingers.
func (m *Manager) StartAndAttach(sessionID string, autoAttach bool, cb session.Callback) (*session.Session, error) {
	s, err := m.Create(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		m.Remove(s.ID())
		return nil, err
	}
	if autoAttach {
		if err := s.Attach(cb); err != nil {
			m.Remove(s.ID())
			return nil, err
		}
	}
	return s, nil
}

// BatchExecute runs one command concurrently across many sessions,
// collecting per-session output. A failed session contributes an
// "Error: ..." entry instead of aborting its siblings; a timed-out
// session contributes whatever output accumulated.
func (m *Manager) BatchExecute(sessionIDs []string, command string, timeout time.Duration) map[string]string {
	if m.metrics != nil {
		m.metrics.RecordBatch(len(sessionIDs))
	}

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(sessionIDs))
		g       errgroup.Group
	)
	for _, sid := range sessionIDs {
		sid := sid
		g.Go(func() error {
			out, err := m.Execute(sid, command, timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[sid] = fmt.Sprintf("Error: %s", err)
			} else {
				results[sid] = out
			}
			return nil
		})
	}
	// Workers never return errors; failures live in the result map.
	_ = g.Wait()
	return results
}
