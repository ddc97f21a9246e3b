package testutil

import (
	"errors"
	"os"
		"path/filepath"
	"strings"
	"testing"
)

// ErrTest is a generic test error.
var ErrTest = errors.New("test error")

// TempDir creates a temporary directory for tests.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "crashguard-test-*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// TempFile creates a temporary file with content.
func TempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// AssertNoError fails if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertContains fails if s does not contain substr.
func AssertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected %q to contain %q", s, substr)
	}
}

// AssertNotContains fails if s contains substr.
func AssertNotContains(t *testing.T, s, substr string) {
	t.Helper()
	if strings.Contains(s, substr) {
		t.Fatalf("expected %q to not contain %q", s, substr)
	}
}

// AssertLen fails if len(s) != want.
func AssertLen[T any](t *testing.T, s []T, want int) {
	t.Helper()
	if len(s) != want {
		t.Fatalf("len() = %d, want %d", len(s), want)
	}
}

// AssertTrue fails if b is false.
func AssertTrue(t *testing.T, b bool, msg string) {
	t.Helper()
	if !b {
		t.Fatalf("expected true: %s", msg)
	}
}

// AssertFalse fails if b is true.
func AssertFalse(t *testing.T, b bool, msg string) {
	t.Helper()
	if b {
		t.Fatalf("expected false: %s", msg)
	}
}
