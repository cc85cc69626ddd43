package run

import (
	"regexp"
	"strings"
)

// runContext accumulates values extracted from prior tool output so later
// tools' placeholders can be resolved from what the run has already learned
// (discovered ports feeding a follow-up scan, a found path feeding sqlmap).
// Tool output is otherwise treated as opaque text.
type runContext struct {
	target   string
	seed     map[string]string
	ports    []string
	services []string
	paths    []string
}

var (
	// nmap-style "22/tcp open ssh" lines.
	openPortPattern = regexp.MustCompile(`(?m)^(\d{1,5})/(?:tcp|udp)\s+open\s+(\S+)`)
	// gobuster-style "/admin (Status: 200)" lines.
	gobusterPathPattern = regexp.MustCompile(`(?m)^(/\S*)\s+\(Status:\s*2\d\d\)`)
	// dirb-style "+ http://host/admin (CODE:200..." lines.
	dirbPathPattern = regexp.MustCompile(`\+ https?://[^/\s]+(/\S*)\s+\(CODE:2\d\d`)
)

func newRunContext(target string, seed map[string]string) *runContext {
	rc := &runContext{target: target, seed: make(map[string]string, len(seed))}
	for k, v := range seed {
		if v != "" {
			rc.seed[k] = v
		}
	}
	return rc
}

// absorb scans one successful tool's stdout for reusable values.
func (rc *runContext) absorb(stdout string) {
	for _, m := range openPortPattern.FindAllStringSubmatch(stdout, -1) {
		rc.addPort(m[1])
		rc.addService(m[2])
	}
	for _, m := range gobusterPathPattern.FindAllStringSubmatch(stdout, -1) {
		rc.addPath(m[1])
	}
	for _, m := range dirbPathPattern.FindAllStringSubmatch(stdout, -1) {
		rc.addPath(m[1])
	}
}

// params builds the substitution map for the next tool. Seed parameters win
// over derived ones; target is always present.
func (rc *runContext) params() map[string]string {
	params := map[string]string{"target": rc.target}

	if len(rc.ports) > 0 {
		params["ports"] = strings.Join(rc.ports, ",")
		params["port"] = rc.ports[0]
	}
	if svc := rc.preferredService(); svc != "" {
		params["service"] = svc
	}
	if len(rc.paths) > 0 {
		params["path"] = rc.paths[0]
	}

	for k, v := range rc.seed {
		params[k] = v
	}
	return params
}

// preferredService picks the brute-force target the way operators usually
// would: ssh first, then ftp, then web.
func (rc *runContext) preferredService() string {
	for _, want := range []string{"ssh", "ftp", "http", "https"} {
		for _, got := range rc.services {
			if got == want {
				return want
			}
		}
	}
	if len(rc.services) > 0 {
		return rc.services[0]
	}
	return ""
}

func (rc *runContext) addPort(port string) {
	for _, p := range rc.ports {
		if p == port {
			return
		}
	}
	rc.ports = append(rc.ports, port)
}

func (rc *runContext) addService(service string) {
	service = strings.ToLower(service)
	for _, s := range rc.services {
		if s == service {
			return
		}
	}
	rc.services = append(rc.services, service)
}

func (rc *runContext) addPath(path string) {
	for _, p := range rc.paths {
		if p == path {
			return
		}
	}
	rc.paths = append(rc.paths, path)
}
