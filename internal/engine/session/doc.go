// Package session manages one interactive interpreter process bound to a
// pseudo-terminal.
//
// A Session owns its child process, PTY channel, and one background reader
// goroutine. The reader polls the PTY with a short timeout, decodes output
// leniently (undecodable bytes become replacement runes), and fans each
// chunk out to the FIFO output queue, to the in-flight command buffer, and
// to the attached observer callback.
//
// State machine:
//
//	NotStarted -> Running -> Terminated
//
// with an orthogonal Attached/Detached flag valid while Running. Terminated
// is absorbing: a terminated session is inert and should be discarded.
//
// Command execution uses output stabilization: after sending a command,
// ExecuteAndWait collects output until no new chunk has arrived for a quiet
// window (or the overall timeout elapses) and returns whatever accumulated.
// Interactive interpreters emit no structured completion marker, so "quiet
// for the window" is the documented, best-effort contract; slow or paused
// programs can yield a false completion, and output produced after
// ExecuteAndWait returns flows to the queue and callback as usual.
package session
