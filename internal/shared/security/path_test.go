package security

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveWithin_AllowsChildPaths(t *testing.T) {
	base := t.TempDir()
	got, err := ResolveWithin(base, "run-20260301-100000-deadbeef", "results.jsonl")
	if err != nil {
		t.Fatalf("ResolveWithin failed: %v", err)
	}
	if !strings.HasPrefix(got, base) {
		t.Fatalf("resolved path %q not under base %q", got, base)
	}
	if filepath.Base(got) != "results.jsonl" {
		t.Fatalf("unexpected leaf: %s", got)
	}
}

func TestResolveWithin_RejectsTraversal(t *testing.T) {
	base := t.TempDir()
	for _, elems := range [][]string{
		{".."},
		{"..", "etc", "passwd"},
		{"ok", "..", "..", "escape"},
	} {
		_, err := ResolveWithin(base, elems...)
		if !errors.Is(err, ErrPathEscape) {
			t.Errorf("elems %v: expected ErrPathEscape, got %v", elems, err)
		}
	}
}

func TestResolveWithin_RequiresBase(t *testing.T) {
	if _, err := ResolveWithin(""); err == nil {
		t.Fatal("expected error for empty base")
	}
}

func TestValidSessionID(t *testing.T) {
	valid := []string{"run-20260301-100000-deadbeef", "a", "abc_def-123"}
	invalid := []string{"", "-leading", "_leading", "Has/Slash", "UPPER", "..", strings.Repeat("a", 200)}
	for _, id := range valid {
		if !ValidSessionID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}
	for _, id := range invalid {
		if ValidSessionID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}
