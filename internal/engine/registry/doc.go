// Package registry provides the thread-safe collection of sessions keyed
// by identifier.
//
// The registry guards only the id -> session map; it never reaches into a
// session's internals while holding the map lock beyond obtaining the
// reference. At most one session exists per id, and removal always
// terminates the session first so no running child is ever orphaned from
// the registry.
//
// Operations:
//   - Create: reject duplicate ids
//   - Remove: terminate (best effort) + unregister
//   - CleanupDead: reap sessions whose child exited on its own
//   - CleanupAll: drain everything at shutdown
//   - FindByPattern: shell-style glob over ids
//   - Stats: aggregate counts from a single consistent snapshot
package registry
