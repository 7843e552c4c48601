// Package ws streams live session output over WebSocket.
//
// A connection to /sessions/:id/stream attaches to the session: output
// chunks are pushed to the client in arrival order, and input, resize, and
// ping messages flow back. Closing the connection detaches the observer
// without touching the session's child process.
package ws
