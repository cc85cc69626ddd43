package safety

import (
	"errors"
	"strings"
	"testing"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

func TestValidate_AllowsPlainCommand(t *testing.T) {
	v := &Validator{}
	err := v.Validate(Request{
		Tool:   "nmap",
		Argv:   []string{"nmap", "-sV", "--top-ports", "1000", "scanme.example.com"},
		Target: "scanme.example.com",
	})
	if err != nil {
		t.Fatalf("expected clearance, got %v", err)
	}
}

func TestValidate_DeniesShellMetacharacters(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"semicolon", []string{"nmap", "host; id"}},
		{"pipe", []string{"nikto", "-h", "host | tee out"}},
		{"and chain", []string{"dirb", "http://h/ && whoami"}},
		{"backtick", []string{"whatweb", "`id`"}},
		{"substitution", []string{"nmap", "$(id)"}},
		{"newline", []string{"nmap", "host\nid"}},
	}
	v := &Validator{AllowPrivate: true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(Request{Tool: tt.argv[0], Argv: tt.argv, Target: "198.51.100.7"})
			var denied *DeniedError
			if !errors.As(err, &denied) {
				t.Fatalf("expected DeniedError, got %v", err)
			}
			if !strings.Contains(denied.Reason, "metacharacter") {
				t.Errorf("unexpected reason: %s", denied.Reason)
			}
		})
	}
}

func TestValidate_ShellDeclaredRelaxesMetacharacterRule(t *testing.T) {
	v := &Validator{}
	err := v.Validate(Request{
		Tool:          "custom",
		Argv:          []string{"custom", "a|b"},
		Target:        "198.51.100.7",
		ShellDeclared: true,
	})
	if err != nil {
		t.Fatalf("declared shell use should pass metacharacter check, got %v", err)
	}
}

func TestValidate_DeniesDestructivePatterns(t *testing.T) {
	tests := [][]string{
		{"sh", "-c", "rm -rf /tmp/x"},
		{"dd", "dd if=/dev/zero"},
		{"x", "mkfs.ext4"},
		{"x", "shutdown"},
		{"x", "REBOOT"},
	}
	v := &Validator{AllowPrivate: true}
	for _, argv := range tests {
		err := v.Validate(Request{Tool: argv[0], Argv: argv, Target: "198.51.100.7", ShellDeclared: true})
		var denied *DeniedError
		if !errors.As(err, &denied) {
			t.Errorf("argv %v: expected denial, got %v", argv, err)
			continue
		}
		if !strings.Contains(denied.Reason, "destructive") {
			t.Errorf("argv %v: unexpected reason %s", argv, denied.Reason)
		}
	}
}

func TestValidate_PrivateTargets(t *testing.T) {
	tests := []struct {
		target  string
		private bool
	}{
		{"127.0.0.1", true},
		{"localhost", true},
		{"LOCALHOST", true},
		{"http://127.0.0.1:8080/app", true},
		{"10.1.2.3", true},
		{"192.168.1.50", true},
		{"172.16.0.9", true},
		{"169.254.10.10", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"10.0.0.0/24", true},
		{"198.51.100.7", false},
		{"scanme.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			v := &Validator{}
			err := v.Validate(Request{Tool: "nmap", Argv: []string{"nmap", tt.target}, Target: tt.target})
			gotDenied := err != nil
			if gotDenied != tt.private {
				t.Fatalf("target %q: denied=%v, want %v (err=%v)", tt.target, gotDenied, tt.private, err)
			}
		})
	}
}

func TestValidate_DenialsWrapSentinels(t *testing.T) {
	v := &Validator{}
	err := v.Validate(Request{Tool: "nmap", Argv: []string{"nmap", "h;id"}, Target: "198.51.100.7"})
	if !errors.Is(err, sharedErrors.ErrCommandDenied) {
		t.Errorf("metacharacter denial should wrap ErrCommandDenied, got %v", err)
	}
	err = v.Validate(Request{Tool: "nmap", Argv: []string{"nmap", "127.0.0.1"}, Target: "127.0.0.1"})
	if !errors.Is(err, sharedErrors.ErrPrivateTarget) {
		t.Errorf("private-target denial should wrap ErrPrivateTarget, got %v", err)
	}
}

func TestValidate_AllowPrivateOverride(t *testing.T) {
	v := &Validator{AllowPrivate: true}
	err := v.Validate(Request{Tool: "nmap", Argv: []string{"nmap", "192.168.1.50"}, Target: "192.168.1.50"})
	if err != nil {
		t.Fatalf("override should clear private target, got %v", err)
	}
}

func TestValidate_EmptyCommand(t *testing.T) {
	v := &Validator{}
	if err := v.Validate(Request{Tool: "nmap", Target: "h"}); err == nil {
		t.Fatal("expected denial of empty argv")
	}
}
