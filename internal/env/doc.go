// Package env resolves and validates the Lua runtime environment.
//
// A Manager carries an environment profile (minimal, standard, full,
// development, production, networking), discovers the interpreter on PATH,
// probes its version, and loads an optional YAML catalog describing the
// packages each profile expects. Validation returns a list of problems
// instead of failing on the first one, so health checks can report
// everything at once.
package env
