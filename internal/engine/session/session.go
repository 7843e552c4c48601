package session

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/pty"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/logging"
	"go.uber.org/zap"
)

// State describes the session lifecycle.
type State int32

const (
	StateNotStarted State = iota
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Callback receives output chunks in arrival order while attached.
type Callback func(chunk string)

// Config holds per-session tuning.
type Config struct {
	Program        string
	Args           []string
	PollInterval   time.Duration // reader poll timeout
	ChunkWait      time.Duration // per-iteration wait during stabilization
	QuietWindow    time.Duration // quiet period treated as command completion
	GracefulStop   time.Duration // SIGTERM grace before SIGKILL
	ReadBufferSize int
}

// DefaultConfig returns session defaults for an interactive Lua interpreter.
func DefaultConfig() Config {
	return Config{
		Program:        "lua",
		Args:           []string{"-i"},
		PollInterval:   50 * time.Millisecond,
		ChunkWait:      100 * time.Millisecond,
		QuietWindow:    200 * time.Millisecond,
		GracefulStop:   2 * time.Second,
		ReadBufferSize: 1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Program == "" {
		c.Program = def.Program
		if c.Args == nil {
			c.Args = def.Args
		}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ChunkWait <= 0 {
		c.ChunkWait = def.ChunkWait
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = def.QuietWindow
	}
	if c.GracefulStop <= 0 {
		c.GracefulStop = def.GracefulStop
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	return c
}

// Info is the public snapshot of a session.
type Info struct {
	ID           string    `json:"id"`
	Running      bool      `json:"running"`
	Attached     bool      `json:"attached"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	PID          int       `json:"pid"`
	Program      string    `json:"program"`
}

// Session owns one interactive child process bound to one PTY.
type Session struct {
	id  string
	cfg Config
	log *logging.Logger

	mu           sync.RWMutex
	state        State
	attached     bool
	callback     Callback
	startedAt    time.Time
	lastActivity time.Time
	cmdActive    bool
	cmdBuf       strings.Builder

	// Serializes ExecuteAndWait so concurrent commands never interleave
	// their accumulation buffers.
	execMu sync.Mutex

	queue     *chunkQueue
	cmdNotify chan struct{}

	ch  *pty.Channel
	cmd *exec.Cmd

	stop       chan struct{}
	readerDone chan struct{}
	procDone   chan struct{}
}

// New creates a not-yet-started session.
func New(sessionID string, cfg Config, log *logging.Logger) *Session {
	if log == nil {
		log = logging.NewNop()
	}
	return &Session{
		id:        sessionID,
		cfg:       cfg.withDefaults(),
		log:       log.WithSession(sessionID),
		queue:     newChunkQueue(),
		cmdNotify: make(chan struct{}, 1),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Program returns the interpreter command this session runs.
func (s *Session) Program() string { return s.cfg.Program }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attached reports whether an observer is attached.
func (s *Session) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

// PID returns the child process id, or 0 before start.
func (s *Session) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}

// LastActivity returns the time of the last read or write.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Start spawns the interpreter on a fresh PTY and launches the background
// reader. Valid only from NotStarted; terminated sessions are not
// restartable.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return engine.ErrAlreadyRunning
	case StateTerminated:
		s.mu.Unlock()
		return engine.ErrNotRunning
	}

	ch, err := pty.Open()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	cmd, err := ch.StartProcess(s.cfg.Program, s.cfg.Args...)
	if err != nil {
		ch.Close()
		s.mu.Unlock()
		return err
	}

	now := time.Now()
	s.ch = ch
	s.cmd = cmd
	s.state = StateRunning
	s.startedAt = now
	s.lastActivity = now
	s.stop = make(chan struct{})
	s.readerDone = make(chan struct{})
	s.procDone = make(chan struct{})
	s.mu.Unlock()

	go s.monitor()
	go s.readLoop()

	s.log.Info("session started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("program", s.cfg.Program))
	return nil
}

// monitor reaps the child when it exits on its own, making the exit
// observable through IsRunning without requiring Terminate first.
func (s *Session) monitor() {
	err := s.cmd.Wait()
	close(s.procDone)
	if err != nil {
		s.log.Debug("child process exited", zap.Error(err))
	}
}

// readLoop drains the PTY until stop, end-of-stream, or an unrecoverable
// read error. It never terminates the session itself; descriptor cleanup
// stays with Terminate.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		data, err := s.ch.Read(s.cfg.ReadBufferSize, s.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("output stream closed")
			} else if !errors.Is(err, engine.ErrChannelClosed) {
				s.log.Debug("reader stopped", zap.Error(err))
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		s.deliver(strings.ToValidUTF8(string(data), string(utf8.RuneError)))
	}
}

// deliver fans one chunk out to the queue, the in-flight command buffer,
// and the attached callback.
func (s *Session) deliver(chunk string) {
	s.mu.Lock()
	s.lastActivity = time.Now()
	if s.cmdActive {
		s.cmdBuf.WriteString(chunk)
		select {
		case s.cmdNotify <- struct{}{}:
		default:
		}
	}
	attached := s.attached
	cb := s.callback
	s.mu.Unlock()

	s.queue.push(chunk)

	if attached && cb != nil {
		s.invokeCallback(cb, chunk)
	}
}

// invokeCallback shields the reader from misbehaving observers.
func (s *Session) invokeCallback(cb Callback, chunk string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("output callback panicked", zap.Any("panic", r))
		}
	}()
	cb(chunk)
}

// Attach enables real-time output callbacks. Auto-starts a NotStarted
// session; idempotent while running. A nil callback keeps any previously
// installed one.
func (s *Session) Attach(cb Callback) error {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch state {
	case StateNotStarted:
		if err := s.Start(); err != nil && !errors.Is(err, engine.ErrAlreadyRunning) {
			return err
		}
	case StateTerminated:
		return engine.ErrNotRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return engine.ErrNotRunning
	}
	s.attached = true
	if cb != nil {
		s.callback = cb
	}
	return nil
}

// Detach disables output callbacks. The child process and reader stay
// alive; detaching is an observation switch, not a teardown.
func (s *Session) Detach() {
	s.mu.Lock()
	s.attached = false
	s.callback = nil
	s.mu.Unlock()
}

// SendInput writes text to the interpreter, appending a trailing newline
// if absent. Valid only while running.
func (s *Session) SendInput(text string) error {
	s.mu.RLock()
	state := s.state
	ch := s.ch
	s.mu.RUnlock()

	if state != StateRunning {
		return engine.ErrNotRunning
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := ch.Write([]byte(text)); err != nil {
		if errors.Is(err, engine.ErrChannelClosed) {
			return engine.ErrNotRunning
		}
		return fmt.Errorf("failed to write input: %w", err)
	}
	s.touch()
	return nil
}

// ReadOutput pops one queued chunk, blocking up to timeout. Returns the
// empty string on timeout; a timeout is not an error.
func (s *Session) ReadOutput(timeout time.Duration) string {
	chunk, ok := s.queue.pop(timeout)
	if !ok {
		return ""
	}
	s.touch()
	return chunk
}

// DrainOutput pops up to maxChunks queued chunks without blocking and
// concatenates them in arrival order. maxChunks <= 0 drains everything.
func (s *Session) DrainOutput(maxChunks int) string {
	parts := s.queue.drain(maxChunks)
	if len(parts) == 0 {
		return ""
	}
	s.touch()
	return strings.Join(parts, "")
}

// QueuedChunks reports how many chunks are currently buffered.
func (s *Session) QueuedChunks() int {
	return s.queue.len()
}

// ExecuteAndWait sends a command and waits for its output to stabilize:
// whenever a chunk arrives the quiet clock resets; once no chunk has
// arrived for the quiet window, or the overall timeout elapses, the
// accumulated output is returned. A timed-out command returns whatever
// accumulated, not an error. Calls on the same session are serialized.
func (s *Session) ExecuteAndWait(command string, timeout time.Duration) (string, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return "", engine.ErrNotRunning
	}
	s.queue.reset()
	s.cmdBuf.Reset()
	s.cmdActive = true
	s.mu.Unlock()

	// Discard a stale notification from a previous command.
	select {
	case <-s.cmdNotify:
	default:
	}

	if err := s.SendInput(command); err != nil {
		s.finishCommand()
		return "", err
	}

	deadline := time.Now().Add(timeout)
	lastChunk := time.Now()
stabilize:
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitFor := s.cfg.ChunkWait
		if remaining < waitFor {
			waitFor = remaining
		}
		select {
		case <-s.cmdNotify:
			lastChunk = time.Now()
		case <-time.After(waitFor):
			if time.Since(lastChunk) >= s.cfg.QuietWindow {
				break stabilize
			}
		}
	}

	return s.finishCommand(), nil
}

func (s *Session) finishCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cmdBuf.String()
	s.cmdBuf.Reset()
	s.cmdActive = false
	return out
}

// IsRunning reports whether the session is running and the child process
// has not already exited on its own.
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	state := s.state
	procDone := s.procDone
	s.mu.RUnlock()

	if state != StateRunning {
		return false
	}
	select {
	case <-procDone:
		return false
	default:
		return true
	}
}

// Resize changes the terminal dimensions reported to the interpreter.
func (s *Session) Resize(cols, rows int) error {
	s.mu.RLock()
	state := s.state
	ch := s.ch
	s.mu.RUnlock()

	if state != StateRunning {
		return engine.ErrNotRunning
	}
	return ch.Resize(cols, rows)
}

// Info returns a point-in-time snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	info := Info{
		ID:           s.id,
		Attached:     s.attached,
		StartedAt:    s.startedAt,
		LastActivity: s.lastActivity,
		Program:      s.cfg.Program,
	}
	cmd := s.cmd
	s.mu.RUnlock()

	info.Running = s.IsRunning()
	if cmd != nil && cmd.Process != nil {
		info.PID = cmd.Process.Pid
	}
	return info
}

// Terminate stops the reader, shuts the child down (SIGTERM, escalating to
// SIGKILL of the process group after the grace period), and releases the
// PTY. Idempotent; always reaches Terminated even when the kill itself
// fails, so resource cleanup is never skipped.
func (s *Session) Terminate() error {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateTerminated
	s.attached = false
	s.callback = nil
	ch := s.ch
	cmd := s.cmd
	stop := s.stop
	readerDone := s.readerDone
	procDone := s.procDone
	s.mu.Unlock()

	if prev == StateNotStarted {
		return nil
	}

	close(stop)
	<-readerDone

	var killErr error
	if cmd != nil && cmd.Process != nil {
		exited := false
		select {
		case <-procDone:
			exited = true
		default:
		}
		if !exited {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				s.log.Debug("failed to signal child", zap.Error(err))
			}
			select {
			case <-procDone:
			case <-time.After(s.cfg.GracefulStop):
				s.log.Warn("graceful stop timed out, killing process group",
					zap.Int("pid", cmd.Process.Pid))
				if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
					killErr = fmt.Errorf("failed to kill process group %d: %w", cmd.Process.Pid, err)
					s.log.Error("forceful kill failed", zap.Error(killErr))
				}
				select {
				case <-procDone:
				case <-time.After(time.Second):
					s.log.Warn("child not reaped after kill")
				}
			}
		}
	}

	if ch != nil {
		if err := ch.Close(); err != nil {
			s.log.Debug("failed to close pty channel", zap.Error(err))
		}
	}

	s.log.Info("session terminated")
	return killErr
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}
