//go:build unix

package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExecCommandRunsLocally(t *testing.T) {
	path := writeTestConfig(t, "")
	out, err := runRoot(t, "exec", "-c", path, "--", "echo", "hello")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExecCommandReportsFailure(t *testing.T) {
	path := writeTestConfig(t, "")
	if _, err := runRoot(t, "exec", "-c", path, "--", "exit 3"); err == nil {
		t.Fatalf("expected failing command to return an error")
	}
}

func TestExecCommandDefaultsToPreviewRoot(t *testing.T) {
	path := writeTestConfig(t, "")
	out, err := runRoot(t, "exec", "-c", path, "--", "pwd", "-P")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	want, err := filepath.EvalSymlinks(filepath.Join(filepath.Dir(path), "preview"))
	if err != nil {
		t.Fatalf("resolve preview root: %v", err)
	}
	if got := strings.TrimSpace(out); got != want {
		t.Fatalf("expected command to run in %q, got %q", want, got)
	}
}
