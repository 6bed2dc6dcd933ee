// Package process runs short-lived external commands (such as ffmpeg or yt-dlp)
// with bounded output capture and a hard time budget. Commands are started in
// their own process group so that a timed out command can be torn down along
// with any children it spawned.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/hbomb79/Aria/pkg/logger"
)

var log = logger.Get("Process")

var (
	ErrTimeout     = errors.New("process exceeded its time budget")
	ErrOutputLimit = errors.New("process output exceeded limit")
)

const (
	defaultWaitDelay   = 2 * time.Second
	defaultStderrLimit = 64 * 1024
)

type (
	// Command describes a single invocation of an external binary.
	Command struct {
		Path  string
		Args  []string
		Stdin io.Reader

		// Timeout bounds the entire invocation. Zero disables the timeout, leaving only
		// the callers context to cancel the command.
		Timeout time.Duration

		// MaxOutput bounds the number of bytes captured from stdout. Zero means unbounded.
		MaxOutput int64
	}

	// Output contains whatever the process wrote before it exited. It is
	// populated even when Run returns an error.
	Output struct {
		Stdout []byte
		Stderr []byte
	}

	// ExitError is returned when the process ran to completion but
	// exited with a non-zero status.
	ExitError struct {
		Code   int
		Stderr []byte
	}

	Runner interface {
		Run(context.Context, Command) (*Output, error)
	}

	execRunner struct {
		waitDelay   time.Duration
		stderrLimit int
	}
)

func (err *ExitError) Error() string {
	return fmt.Sprintf("process exited with status %d", err.Code)
}

// NewRunner returns a Runner which executes commands on the host.
func NewRunner() Runner {
	return &execRunner{waitDelay: defaultWaitDelay, stderrLimit: defaultStderrLimit}
}

func (runner *execRunner) Run(parent context.Context, command Command) (*Output, error) {
	ctx := parent
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, command.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command.Path, command.Args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = runner.waitDelay
	cmd.Stdin = command.Stdin

	stdout := &limitedBuffer{limit: command.MaxOutput}
	stderr := &tailBuffer{limit: runner.stderrLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	log.Debugf("Command %s exited after %s (err=%v)\n", command.Path, time.Since(started).Round(time.Millisecond), err)

	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return out, ErrTimeout
		}

		return out, fmt.Errorf("process cancelled: %w", ctxErr)
	}

	if stdout.overflowed {
		return out, ErrOutputLimit
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{Code: exitErr.ExitCode(), Stderr: out.Stderr}
	}

	return out, fmt.Errorf("failed to run %s: %w", command.Path, err)
}

// limitedBuffer collects writes until the limit is reached, after which
// all writes fail. A failing write causes the pipe to the child to be closed.
// The buffer is held in a field rather than embedded so that io.Copy cannot
// bypass Write through bytes.Buffer's ReadFrom.
type limitedBuffer struct {
	buf        bytes.Buffer
	limit      int64
	overflowed bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	if lb.limit > 0 && int64(lb.buf.Len()+len(p)) > lb.limit {
		lb.overflowed = true
		return 0, ErrOutputLimit
	}

	return lb.buf.Write(p)
}

func (lb *limitedBuffer) Bytes() []byte { return lb.buf.Bytes() }

// tailBuffer retains only the final limit bytes written to it. Diagnostic
// output from media tools puts the useful information at the end.
type tailBuffer struct {
	data  []byte
	limit int
}

func (buf *tailBuffer) Write(p []byte) (int, error) {
	buf.data = append(buf.data, p...)
	if over := len(buf.data) - buf.limit; buf.limit > 0 && over > 0 {
		buf.data = append(buf.data[:0], buf.data[over:]...)
	}

	return len(p), nil
}

func (buf *tailBuffer) Bytes() []byte { return buf.data }
