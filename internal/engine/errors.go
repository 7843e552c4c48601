package engine

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a session that is already running.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotRunning is returned by operations that require a running child
	// process (input, execution, attach on a terminated session).
	ErrNotRunning = errors.New("session not running")

	// ErrAlreadyExists is returned by registry creation for a duplicate id.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrNotFound is returned for operations addressing an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrChannelClosed is returned by PTY channel operations after Close.
	ErrChannelClosed = errors.New("pty channel closed")

	// ErrSpawnFailed wraps the underlying cause when the child process
	// could not be started.
	ErrSpawnFailed = errors.New("failed to spawn process")
)
