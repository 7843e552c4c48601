// Package main is the entry point for the Lua VM session daemon.
//
// The daemon hosts interactive Lua interpreter sessions behind PTYs and
// exposes a REST control API plus WebSocket streaming for live attach.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./luavmd -port 8077 -interpreter lua
//
//	# Development mode (colored logs, debug level)
//	./luavmd -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (terminates all sessions)
package main
