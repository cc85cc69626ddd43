// Package toolcheck reports whether catalog tools are present on the host.
// Detection only; installing tools is the operator's job.
package toolcheck

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// Installed reports whether the named binary is resolvable on PATH.
func Installed(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Version best-effort probes the tool's version string, trying the common
// flags in order. Returns "" when nothing responds; many security tools exit
// non-zero even when printing a version, so output presence wins over exit
// status.
func Version(ctx context.Context, name string) string {
	if !Installed(name) {
		return ""
	}
	for _, flag := range []string{"--version", "-V", "-v", "version"} {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		out, _ := exec.CommandContext(probeCtx, name, flag).CombinedOutput()
		cancel()
		line := firstLine(string(out))
		if line != "" {
			if len(line) > 100 {
				line = line[:100]
			}
			return line
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
