// Package safety gates every resolved command line before it reaches the
// process spawner. A denial is surfaced with its reason and recorded in the
// session; it is never silently skipped.
package safety

import (
	"fmt"
	"net"
	"strings"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// DeniedError explains why a command was refused. It wraps either
// ErrCommandDenied or ErrPrivateTarget so callers can branch with errors.Is.
type DeniedError struct {
	Tool   string
	Reason string
	kind   error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("command for %s denied: %s", e.Tool, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	if e.kind != nil {
		return e.kind
	}
	return sharedErrors.ErrCommandDenied
}

// Request is a fully-resolved command awaiting clearance.
type Request struct {
	Tool   string
	Argv   []string
	Target string
	// ShellDeclared mirrors ToolSpec.NeedsShell. Only when set does the
	// validator tolerate shell metacharacters in arguments.
	ShellDeclared bool
}

// Validator applies the deny policy. The zero value is the strict default;
// AllowPrivate relaxes the loopback/private-range rule for lab targets.
type Validator struct {
	AllowPrivate bool
}

// shellMetaPatterns are argument substrings that indicate shell chaining or
// command substitution. They are denied per-token unless the spec declared
// shell use, because argv elements are handed to the process verbatim.
var shellMetaPatterns = []string{";", "|", "&&", "`", "$(", "\n"}

// destructivePatterns block commands that could damage the host running the
// orchestrator. Matched case-insensitively against the joined command line.
var destructivePatterns = []string{
	"rm -rf",
	"dd if=",
	"mkfs",
	"> /dev/",
	"shutdown",
	"reboot",
	"halt",
	"init 0",
	"init 6",
}

// Validate returns nil when the request may execute, or a *DeniedError.
func (v *Validator) Validate(req Request) error {
	if len(req.Argv) == 0 {
		return &DeniedError{Tool: req.Tool, Reason: "empty command"}
	}

	if !req.ShellDeclared {
		for _, arg := range req.Argv {
			for _, meta := range shellMetaPatterns {
				if strings.Contains(arg, meta) {
					return &DeniedError{
						Tool:   req.Tool,
						Reason: fmt.Sprintf("argument %q contains shell metacharacter %q", arg, meta),
					}
				}
			}
		}
	}

	joined := strings.ToLower(strings.Join(req.Argv, " "))
	for _, pattern := range destructivePatterns {
		if strings.Contains(joined, pattern) {
			return &DeniedError{
				Tool:   req.Tool,
				Reason: fmt.Sprintf("command matches destructive pattern %q", pattern),
			}
		}
	}

	if !v.AllowPrivate && isPrivateTarget(req.Target) {
		return &DeniedError{
			Tool:   req.Tool,
			Reason: fmt.Sprintf("target %s is private or loopback (use the allow-private override for lab targets)", req.Target),
			kind:   sharedErrors.ErrPrivateTarget,
		}
	}

	return nil
}

// isPrivateTarget reports whether the target names a loopback, link-local, or
// RFC1918 address. Hostnames are not resolved; only literal addresses and the
// localhost aliases are checked. This reduces accidental self-testing, it is
// not a security boundary.
func isPrivateTarget(target string) bool {
	host := strings.TrimSpace(target)
	if host == "" {
		return false
	}
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Could be a CIDR lab range.
		if parsed, _, err := net.ParseCIDR(host); err == nil {
			ip = parsed
		}
	}
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
