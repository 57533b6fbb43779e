package npm

import (
	"context"
	"testing"
	"time"
)

func TestRunCommandSuccess(t *testing.T) {
	res, err := runCommand(context.Background(), "sh", []string{"-c", "echo hello"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("expected stdout %q, got %q", "hello\n", res.Stdout)
	}
}

func TestRunCommandExitCode(t *testing.T) {
	res, err := runCommand(context.Background(), "sh", []string{"-c", "echo oops >&2; exit 3"}, "")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.Stderr != "oops\n" {
		t.Fatalf("expected stderr captured, got %q", res.Stderr)
	}
}

func TestRunCommandNotFound(t *testing.T) {
	res, _ := runCommand(context.Background(), "definitely-missing-binary-12345", nil, "")
	if res.ExitCode != exitNotFound {
		t.Fatalf("expected exit code %d for missing command, got %d", exitNotFound, res.ExitCode)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, _ := runCommand(ctx, "sleep", []string{"2"}, "")
	if res.ExitCode == exitNotFound {
		t.Skip("sleep command not found")
	}
	if res.ExitCode != exitTimeout {
		t.Fatalf("expected exit code %d for timeout, got %d", exitTimeout, res.ExitCode)
	}
}
