// Package pty provides a bidirectional byte channel backed by an OS
// pseudo-terminal.
//
// A Channel owns a master/slave descriptor pair. The master side is read
// with poll-based timeouts so callers never block indefinitely; a timeout
// yields zero bytes, not an error. The slave side can be bound to a spawned
// process's standard streams, making that process believe it is attached to
// an interactive terminal.
//
// Features:
//   - Non-blocking reads with explicit timeouts (readiness polling)
//   - Distinguished end-of-stream signal (io.EOF) when the peer closes
//   - Idempotent Close; descriptors are released exactly once
//   - Process spawning with the slave as the controlling terminal
package pty
