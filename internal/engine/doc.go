// Package engine defines the shared error taxonomy for the interactive
// session engine.
//
// The engine manages long-lived interactive interpreter processes behind
// pseudo-terminals. Its subpackages compose bottom-up:
//   - engine/pty: raw PTY channel (open, timed read, write, close)
//   - engine/session: one child process + PTY + background reader
//   - engine/registry: thread-safe id -> session map
//   - engine/manager: high-level facade, batch execution, clusters
//
// Callers distinguish failure modes with errors.Is against the sentinel
// errors declared here; wrapped errors carry session ids and causes.
package engine
