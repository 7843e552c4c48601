// Package server assembles the engine, environment manager, metrics, and
// HTTP control API into one runnable unit with graceful shutdown.
package server
