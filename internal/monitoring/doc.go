// Package monitoring provides Prometheus metrics for the session engine
// and its HTTP control API.
//
// Metrics cover session lifecycle (created, terminated, reaped, active),
// command execution (count, duration, output volume, batch sizes), and the
// HTTP surface (request counts and latencies). Collectors are registered
// against an explicit registerer so tests can use isolated registries.
package monitoring
