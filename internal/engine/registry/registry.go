package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/session"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Factory constructs a not-yet-started session for an id.
type Factory func(sessionID string) *session.Session

// Stats holds aggregate session counts from one snapshot.
type Stats struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Attached int `json:"attached"`
	Idle     int `json:"idle"`
	Dead     int `json:"dead"`
}

// Registry is a thread-safe map from session id to session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	log      *logging.Logger
}

// New creates an empty registry.
func New(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*session.Session),
		log:      log,
	}
}

// Create constructs and stores a new, not-yet-started session.
func (r *Registry) Create(sessionID string, factory Factory) (*session.Session, error) {
	if factory == nil {
		return nil, fmt.Errorf("nil session factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return nil, fmt.Errorf("%w: %s", engine.ErrAlreadyExists, sessionID)
	}
	s := factory(sessionID)
	r.sessions[sessionID] = s

	r.log.Debug("session registered", zap.String("session_id", sessionID))
	return s, nil
}

// Get returns the session for an id. A missing id is not an error.
func (r *Registry) Get(sessionID string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Remove terminates the session (errors are logged and swallowed; removal
// always succeeds for a known id) and erases the entry. Returns whether
// an entry was removed.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Terminate(); err != nil {
		r.log.Warn("terminate during removal failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	r.log.Debug("session removed", zap.String("session_id", sessionID))
	return true
}

// List returns a snapshot of all sessions. Session-derived fields are
// computed outside the map lock so a slow session cannot stall the
// registry.
func (r *Registry) List() []session.Info {
	snapshot := r.snapshot()

	infos := make([]session.Info, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// CleanupDead removes every session whose child process has exited and
// returns the removed ids.
func (r *Registry) CleanupDead() []string {
	var dead []string
	for id, s := range r.snapshot() {
		// NotStarted sessions never had a child; they are idle, not dead.
		if s.State() != session.StateNotStarted && !s.IsRunning() {
			dead = append(dead, id)
		}
	}

	removed := make([]string, 0, len(dead))
	for _, id := range dead {
		if r.Remove(id) {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	if len(removed) > 0 {
		r.log.Info("reaped dead sessions", zap.Strings("session_ids", removed))
	}
	return removed
}

// CleanupAll removes every session, terminating each. Returns the number
// removed. Used at process shutdown.
func (r *Registry) CleanupAll() int {
	var ids []string
	for id := range r.snapshot() {
		ids = append(ids, id)
	}

	count := 0
	for _, id := range ids {
		if r.Remove(id) {
			count++
		}
	}
	return count
}

// FindByPattern returns the ids matching a shell-style glob, sorted.
func (r *Registry) FindByPattern(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []string
	for id := range r.sessions {
		ok, err := doublestar.Match(pattern, id)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if ok {
			matched = append(matched, id)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// Stats derives aggregate counts from a single consistent snapshot of the
// map.
func (r *Registry) Stats() Stats {
	snapshot := r.snapshot()

	stats := Stats{Total: len(snapshot)}
	for _, s := range snapshot {
		switch {
		case s.IsRunning():
			stats.Running++
			if s.Attached() {
				stats.Attached++
			} else {
				stats.Idle++
			}
		case s.State() != session.StateNotStarted:
			stats.Dead++
		}
	}
	return stats
}

// snapshot copies the map under the read lock; callers work on the copy.
func (r *Registry) snapshot() map[string]*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*session.Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s
	}
	return out
}
