package npm

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Exit codes reserved for execution failures, mirroring shell conventions.
const (
	exitTimeout  = 124
	exitNotFound = 127
)

// commandResult captures a finished subprocess invocation.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// runCommand executes a command in dir, capturing output and duration. The
// ExitCode distinguishes timeout (124) and missing executable (127) from
// ordinary non-zero exits.
func runCommand(ctx context.Context, name string, args []string, dir string) (commandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
		}
		if ctx.Err() == context.DeadlineExceeded {
			res.ExitCode = exitTimeout
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = exitNotFound
		}
	}

	return res, err
}
