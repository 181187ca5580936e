package spotdl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const terminateGrace = 5 * time.Second

// maxLineSize bounds a single scanned output line. spotdl can emit very long
// lines (full tracklists, stack traces); past this the line is dropped and the
// rest of the stream must be drained with Drain.
const maxLineSize = 1 << 20

// Handle supervises one running spotdl process. Lines are consumed by exactly
// one worker via Scan/Text; Wait must be called exactly once by that worker.
// Terminate may be called from any goroutine, concurrently with Scan and Wait.
type Handle struct {
	cmd     *exec.Cmd
	out     io.Reader
	scanner *bufio.Scanner

	done     chan struct{} // closed once Wait has reaped the process
	waitOnce sync.Once
	exitCode int

	termOnce sync.Once
}

// Start launches the process with stdout and stderr merged into a single
// stream, preserving the tool's natural emission order.
func Start(name string, args ...string) (*Handle, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Handle{
		cmd:     cmd,
		out:     stdout,
		scanner: scanner,
		done:    make(chan struct{}),
	}, nil
}

// Scan advances to the next output line. It returns false once the process
// closes its output stream or a line exceeds maxLineSize; the stream is not
// restartable. Callers must Drain after the loop so the process can finish
// writing even when scanning stopped early.
func (h *Handle) Scan() bool { return h.scanner.Scan() }

// Text returns the current output line.
func (h *Handle) Text() string { return h.scanner.Text() }

// Err returns the error that stopped Scan, or nil on clean EOF.
func (h *Handle) Err() error { return h.scanner.Err() }

// Drain consumes and discards the rest of the output stream. Without it a
// process abandoned mid-stream can block on a full pipe and never exit.
func (h *Handle) Drain() {
	_, _ = io.Copy(io.Discard, h.out)
}

// Wait blocks until the process exits and returns its exit code. A process
// killed by a signal reports -1.
func (h *Handle) Wait() int {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		switch e := err.(type) {
		case nil:
			h.exitCode = 0
		case *exec.ExitError:
			h.exitCode = e.ExitCode()
		default:
			h.exitCode = -1
		}
		close(h.done)
	})
	<-h.done
	return h.exitCode
}

// Terminate asks the process to stop gracefully, escalating to a kill if it
// has not exited within the grace period. Safe to call more than once.
func (h *Handle) Terminate() {
	h.termOnce.Do(func() {
		_ = h.cmd.Process.Signal(os.Interrupt)
		go func() {
			select {
			case <-h.done:
			case <-time.After(terminateGrace):
				_ = h.cmd.Process.Kill()
			}
		}()
	})
}
