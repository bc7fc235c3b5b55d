// Package vcs mirrors remote git and Subversion repositories by driving the
// git and svn command line tools.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is one invocation of an external tool.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// String renders the command for logs and errors with secrets masked.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	mask := false
	for _, a := range c.Args {
		if mask {
			parts = append(parts, "****")
			mask = false
			continue
		}
		parts = append(parts, a)
		if a == "--password" {
			mask = true
		}
	}
	return strings.Join(parts, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner runs external commands. Implementations must kill the child when
// the command's timeout expires.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ProcessError reports a command that exited non-zero, could not start, or
// was killed after its timeout.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ProcessError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s: timed out", e.Command)
	case e.ExitCode > 0:
		msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
		if s := lastLine(e.Stderr); s != "" {
			msg += ": " + s
		}
		return msg
	default:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// killGrace is how long a killed child may keep its output pipes open.
const killGrace = 5 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run starts cmd and waits for it. On timeout the child is killed and a
// *ProcessError with TimedOut set is returned; whatever the child wrote to
// disk is left in place.
func (r ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	if r.Logger != nil {
		r.Logger.Debug("command finished", "cmd", cmd.String(), "dir", cmd.Dir, "duration", time.Since(start).Round(time.Millisecond))
	}

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	perr := &ProcessError{Command: cmd.String(), ExitCode: -1, Stderr: stderr.String(), Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		perr.TimedOut = true
		return res, perr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
	}
	return res, perr
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
