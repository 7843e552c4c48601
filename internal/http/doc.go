// Package http exposes the session engine's boundary surface over a REST
// control API.
//
// Endpoints mirror the programmatic interface: session creation and
// removal, lifecycle control, input/output, stabilization execution,
// listing, glob search, dead-session cleanup, aggregate stats, and cluster
// management. The API is a control plane for one engine instance; it does
// not provide interpreter-to-interpreter networking.
package http
