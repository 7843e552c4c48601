package pty

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Channel is a bidirectional byte channel backed by a pseudo-terminal pair.
// The channel exclusively owns both descriptors; Close must run on every
// exit path to avoid leaks.
type Channel struct {
	mu     sync.Mutex
	ptmx   *os.File
	tty    *os.File
	closed bool
}

// Open allocates a new master/slave pseudo-terminal pair.
func Open() (*Channel, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate pty: %w", err)
	}
	return &Channel{ptmx: ptmx, tty: tty}, nil
}

// StartProcess spawns program with its standard streams bound to the slave
// side of the pseudo-terminal. The process is placed in its own session with
// the slave as controlling terminal, so signals sent to the process group
// reach the whole interpreter tree. The parent's copy of the slave is closed
// after the spawn; end-of-stream on the master then tracks child exit.
func (c *Channel) StartProcess(program string, args ...string) (*exec.Cmd, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, engine.ErrChannelClosed
	}
	if c.tty == nil {
		return nil, fmt.Errorf("%w: slave descriptor already consumed", engine.ErrSpawnFailed)
	}

	cmd := exec.Command(program, args...)
	cmd.Stdin = c.tty
	cmd.Stdout = c.tty
	cmd.Stderr = c.tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrSpawnFailed, err)
	}

	// Child holds its own copy of the slave now.
	c.tty.Close()
	c.tty = nil

	return cmd, nil
}

// Read waits up to timeout for data on the master side and returns whatever
// is available, at most maxBytes. A timeout is not an error: it returns a
// nil slice and nil error. io.EOF signals that the peer closed the slave
// side (typically child exit).
func (c *Channel) Read(maxBytes int, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, engine.ErrChannelClosed
	}
	fd := int(c.ptmx.Fd())
	c.mu.Unlock()

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("poll failed: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return nil, nil
	}

	buf := make([]byte, maxBytes)
	rn, err := unix.Read(fd, buf)
	if err != nil {
		// Linux reports EIO on the master once the slave side is gone.
		if err == unix.EIO {
			return nil, io.EOF
		}
		if err == unix.EINTR || err == unix.EAGAIN {
			return nil, nil
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if rn == 0 {
		return nil, io.EOF
	}
	return buf[:rn], nil
}

// Write sends data to the master side, delivering it to the child as
// terminal input.
func (c *Channel) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, engine.ErrChannelClosed
	}
	return c.ptmx.Write(data)
}

// Resize changes the terminal dimensions reported to the child.
func (c *Channel) Resize(cols, rows int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return engine.ErrChannelClosed
	}
	return pty.Setsize(c.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Close releases both descriptors. Safe to call multiple times; operations
// after Close fail with engine.ErrChannelClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.ptmx.Close(); err != nil {
		firstErr = err
	}
	if c.tty != nil {
		if err := c.tty.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.tty = nil
	}
	return firstErr
}
