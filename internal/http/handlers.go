package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/manager"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/env"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"github.com/gin-gonic/gin"
)

// Version is the engine release reported by the root endpoint.
const Version = "0.2.0"

// DefaultExecuteTimeout bounds stabilization when a request omits one.
const DefaultExecuteTimeout = 30 * time.Second

// Handlers contains all HTTP handlers.
type Handlers struct {
	manager *manager.Manager
	env     *env.Manager
	log     *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(mgr *manager.Manager, envMgr *env.Manager, log *logging.Logger) *Handlers {
	return &Handlers{
		manager: mgr,
		env:     envMgr,
		log:     log,
	}
}

// Root reports service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "lua session engine",
		"version": Version,
	})
}

// Health reports engine and environment health.
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"sessions": h.manager.Stats(),
	}
	if h.env != nil {
		problems := h.env.Validate(c.Request.Context())
		resp["environment"] = h.env.SystemInfo(c.Request.Context())
		if len(problems) > 0 {
			resp["status"] = "degraded"
			resp["problems"] = problems
		}
	}
	c.JSON(http.StatusOK, resp)
}

type createSessionRequest struct {
	ID     string `json:"id"`
	Start  bool   `json:"start"`
	Attach bool   `json:"attach"`
}

// CreateSession registers a new session, optionally starting it.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Start || req.Attach {
		s, err := h.manager.StartAndAttach(req.ID, req.Attach, nil)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, s.Info())
		return
	}

	s, err := h.manager.Create(req.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.Info())
}

// ListSessions returns a snapshot of all sessions with aggregate stats.
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.manager.List(),
		"stats":    h.manager.Stats(),
	})
}

// GetSession returns one session's snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// RemoveSession terminates and unregisters a session. Removing an unknown
// id is a no-op, not an error.
func (h *Handlers) RemoveSession(c *gin.Context) {
	removed := h.manager.Remove(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// StartSession starts the session's child process.
func (h *Handlers) StartSession(c *gin.Context) {
	if err := h.manager.Start(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true})
}

// TerminateSession stops the child process but keeps the session
// registered.
func (h *Handlers) TerminateSession(c *gin.Context) {
	if err := h.manager.Terminate(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"terminated": true})
}

// DetachSession disables output callbacks.
func (h *Handlers) DetachSession(c *gin.Context) {
	if err := h.manager.Detach(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detached": true})
}

type inputRequest struct {
	Text string `json:"text" binding:"required"`
}

// SendInput writes a line of input to the interpreter.
func (h *Handlers) SendInput(c *gin.Context) {
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.SendInput(c.Param("id"), req.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// ReadOutput returns buffered output. With drain=true everything queued is
// returned immediately; otherwise one chunk is popped, waiting up to the
// timeout query parameter. An empty result means no output, not an error.
func (h *Handlers) ReadOutput(c *gin.Context) {
	sessionID := c.Param("id")

	if c.Query("drain") == "true" {
		out, err := h.manager.DrainOutput(sessionID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"output": out})
		return
	}

	timeout := 100 * time.Millisecond
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout: " + raw})
			return
		}
		timeout = parsed
	}

	out, err := h.manager.ReadOutput(sessionID, timeout)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

type executeRequest struct {
	Command string `json:"command" binding:"required"`
	Timeout string `json:"timeout"`
}

// Execute runs one command through output stabilization and returns the
// accumulated output. A timed-out command returns whatever accumulated.
func (h *Handlers) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := DefaultExecuteTimeout
	if req.Timeout != "" {
		parsed, err := time.ParseDuration(req.Timeout)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout: " + req.Timeout})
			return
		}
		timeout = parsed
	}

	out, err := h.manager.Execute(c.Param("id"), req.Command, timeout)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

type batchExecuteRequest struct {
	Sessions []string `json:"sessions" binding:"required"`
	Command  string   `json:"command" binding:"required"`
	Timeout  string   `json:"timeout"`
}

// BatchExecute fans one command out across many sessions concurrently.
func (h *Handlers) BatchExecute(c *gin.Context) {
	var req batchExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := DefaultExecuteTimeout
	if req.Timeout != "" {
		parsed, err := time.ParseDuration(req.Timeout)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeout: " + req.Timeout})
			return
		}
		timeout = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"results": h.manager.BatchExecute(req.Sessions, req.Command, timeout),
	})
}

// FindSessions returns session ids matching a shell-style glob.
func (h *Handlers) FindSessions(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}
	ids, err := h.manager.FindByPattern(pattern)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

// CleanupDead reaps sessions whose child process exited.
func (h *Handlers) CleanupDead(c *gin.Context) {
	removed := h.manager.CleanupDead()
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"count":   len(removed),
	})
}

// SessionStats returns aggregate counts from one registry snapshot.
func (h *Handlers) SessionStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Stats())
}

type createClusterRequest struct {
	ID   string `json:"id" binding:"required"`
	Size int    `json:"size" binding:"required"`
}

// CreateCluster registers a uniformly named group of sessions.
func (h *Handlers) CreateCluster(c *gin.Context) {
	var req createClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.manager.CreateCluster(req.ID, req.Size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessions": ids})
}

// GetCluster lists a cluster's member ids.
func (h *Handlers) GetCluster(c *gin.Context) {
	ids, err := h.manager.ClusterIDs(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

// RemoveCluster terminates and unregisters a whole cluster.
func (h *Handlers) RemoveCluster(c *gin.Context) {
	count, err := h.manager.RemoveCluster(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": count})
}

// fail maps engine errors onto HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrAlreadyRunning), errors.Is(err, engine.ErrNotRunning):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrSpawnFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
