package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestVersionInfo tests that every version field has a value.
func TestVersionInfo(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("expected non-empty version")
	}
	if getDate() == "" {
		t.Error("expected non-empty date")
	}
	if c := getCommit(); c == "" || len(c) > 7 && c != "unknown" {
		t.Errorf("expected short commit, got %q", c)
	}
}

// TestFirstNonEmpty tests the version fallback order.
func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	if got := firstNonEmpty("x", "", "b", "c"); got != "b" {
		t.Errorf("expected b, got %q", got)
	}
	if got := firstNonEmpty("x", "", ""); got != "x" {
		t.Errorf("expected fallback, got %q", got)
	}
}

// TestNewVersionCmd tests the version command output.
func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"sitecrawl version", "commit:", "built:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
}
