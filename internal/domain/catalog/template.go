package catalog

import (
	"fmt"
	"regexp"
	"strings"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Resolve substitutes params into the spec's argv template and returns the
// concrete argument vector. Substitution is purely textual within a single
// token: the result always has exactly len(spec.Template) elements no matter
// what characters the parameter values contain, which is what prevents
// argument-splitting injection. A placeholder with no value in params fails
// with ErrMissingParameter and names the offending placeholder.
func Resolve(spec ToolSpec, params map[string]string) ([]string, error) {
	argv := make([]string, len(spec.Template))
	for i, token := range spec.Template {
		resolved, err := resolveToken(token, params)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", spec.Name, err)
		}
		argv[i] = resolved
	}
	return argv, nil
}

func resolveToken(token string, params map[string]string) (string, error) {
	var missing string
	resolved := placeholderPattern.ReplaceAllStringFunc(token, func(match string) string {
		name := strings.Trim(match, "{}")
		value, ok := params[name]
		if !ok || value == "" {
			if missing == "" {
				missing = name
			}
			return match
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrMissingParameter, missing)
	}
	return resolved, nil
}

func placeholderNames(token string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(token, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
