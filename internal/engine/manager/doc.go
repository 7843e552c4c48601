// Package manager provides the high-level facade over the session engine.
//
// A Manager owns a registry and constructs sessions from the engine
// configuration, exposing the whole boundary surface by session id:
// create, start, terminate, attach/detach, input/output, stabilization
// execution, listing, pattern search, reaping, and aggregate stats. On top
// of that it adds the convenience layer: start-and-attach in one call,
// concurrent batch execution across many sessions with per-session failure
// isolation, and uniformly named session clusters.
package manager
