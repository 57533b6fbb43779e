// Package npm shells out to the external package manager for the install and
// audit steps of a scan. The Runner interface keeps the pipeline testable
// without a real npm on PATH.
package npm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// DefaultBin is the package-manager executable used when none is configured.
const DefaultBin = "npm"

// defaultStepTimeout bounds each subprocess invocation when the caller does
// not configure one. Installs against cold caches can be slow.
const defaultStepTimeout = 5 * time.Minute

// AuditResult carries the audit tool's verbatim output and its exit status.
// A non-zero exit with captured output is a normal outcome: npm audit exits
// non-zero precisely when it finds vulnerabilities.
type AuditResult struct {
	Output   string
	ExitCode int
}

// Runner abstracts the package manager's install and audit subcommands.
type Runner interface {
	// Install materializes the lockfile and node_modules for the manifest in dir.
	Install(ctx context.Context, dir string) error

	// Audit runs the vulnerability audit in dir. An error is returned only
	// when the tool could not be executed at all.
	Audit(ctx context.Context, dir string) (AuditResult, error)
}

// CLIRunner invokes the real package manager binary.
type CLIRunner struct {
	Bin     string        // executable name or path; DefaultBin when empty
	Timeout time.Duration // per-step timeout; defaultStepTimeout when zero
	Logger  *zap.SugaredLogger
}

func (r *CLIRunner) bin() string {
	if r.Bin != "" {
		return r.Bin
	}
	return DefaultBin
}

func (r *CLIRunner) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Install creates the lockfile first, then installs the dependency tree.
// The lockfile step failing is an error; the full install is allowed to exit
// non-zero because registry packages derived from fingerprints occasionally
// fail postinstall scripts without invalidating the audit.
func (r *CLIRunner) Install(ctx context.Context, dir string) error {
	bin := r.bin()
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("package manager %q not found in PATH: %w", bin, err)
	}

	lockCtx, cancel := r.stepCtx(ctx)
	defer cancel()
	res, err := runCommand(lockCtx, bin, []string{"install", "--package-lock-only"}, dir)
	if err != nil {
		return fmt.Errorf("create lockfile (exit %d): %w: %s", res.ExitCode, err, res.Stderr)
	}

	installCtx, cancel := r.stepCtx(ctx)
	defer cancel()
	res, err = runCommand(installCtx, bin, []string{"install"}, dir)
	if err != nil {
		if res.ExitCode == exitTimeout || res.ExitCode == exitNotFound {
			return fmt.Errorf("install dependencies (exit %d): %w", res.ExitCode, err)
		}
		if r.Logger != nil {
			r.Logger.Warnw("npm install completed with errors", "exit_code", res.ExitCode, "stderr", res.Stderr)
		}
	}

	return nil
}

// Audit runs the audit subcommand and captures its output. Vulnerability
// findings surface as a non-zero ExitCode, not as an error.
func (r *CLIRunner) Audit(ctx context.Context, dir string) (AuditResult, error) {
	bin := r.bin()

	auditCtx, cancel := r.stepCtx(ctx)
	defer cancel()
	res, err := runCommand(auditCtx, bin, []string{"audit"}, dir)

	result := AuditResult{Output: res.Stdout, ExitCode: res.ExitCode}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && res.ExitCode != exitTimeout {
			// The tool ran and reported findings.
			return result, nil
		}
		return result, fmt.Errorf("execute %s audit (exit %d): %w", bin, res.ExitCode, err)
	}

	return result, nil
}
