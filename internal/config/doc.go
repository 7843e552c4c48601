// Package config provides 12-factor configuration management for the
// session engine and its control server.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Engine: interpreter command and session timing (poll interval,
//     stabilization windows, graceful-stop timeout)
//   - Server: HTTP control API settings (port, host)
//   - Env: environment profile and runtime catalog location
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("interpreter: %s\n", cfg.Engine.Interpreter)
//
// Environment Variables:
//   - PORT, HOST
//   - LUA_INTERPRETER, LUA_ARGS, ENGINE_POLL_INTERVAL, ENGINE_CHUNK_WAIT,
//     ENGINE_QUIET_WINDOW, ENGINE_GRACEFUL_STOP, ENGINE_READ_BUFFER
//   - ENV_PROFILE, ENV_CATALOG
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
