// Package middleware provides Gin middleware for the control API:
// request id tagging, structured request logging, CORS, and per-IP rate
// limiting.
package middleware
