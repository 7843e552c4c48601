package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig narrows the cors options the control API cares about.
type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
}

// DefaultCORSConfig permits any origin. Deployments fronting the daemon
// with a known UI should narrow AllowOrigins.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
	}
}

// CORS builds the cors middleware for the control API. Methods and headers
// are fixed to what the session endpoints actually use.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			"Authorization",
			RequestIDHeader,
		},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	})
}
