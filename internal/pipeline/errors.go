package pipeline

import "fmt"

// InputError reports a missing, unreadable, or malformed fingerprinting
// report. No partial output is produced when it occurs.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input report %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// DependencyInstallError reports a fatal failure of the package manager's
// install step. The audit never runs when it occurs.
type DependencyInstallError struct {
	Err error
}

func (e *DependencyInstallError) Error() string {
	return fmt.Sprintf("dependency install failed: %v", e.Err)
}

func (e *DependencyInstallError) Unwrap() error { return e.Err }

// AuditExecutionError reports that the audit tool could not be invoked at
// all. The tool running and finding vulnerabilities is a normal outcome and
// never produces this error.
type AuditExecutionError struct {
	Err error
}

func (e *AuditExecutionError) Error() string {
	return fmt.Sprintf("audit tool could not be executed: %v", e.Err)
}

func (e *AuditExecutionError) Unwrap() error { return e.Err }
