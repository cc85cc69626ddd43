package intelligence

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// The collaborator is asked for JSON but free models routinely wrap it in
// prose or markdown fences. Parsing is therefore layered: strict JSON first,
// then an extracted embedded object, then a lenient line scan. Anything that
// survives none of the layers is an ErrUnparsableResponse, which callers
// translate into the fallback plan.

type recommendationEnvelope struct {
	Tools []recommendationEntry `json:"tools"`
}

type recommendationEntry struct {
	Tool      string `json:"tool"`
	Name      string `json:"name"`
	Rationale string `json:"rationale"`
	Reason    string `json:"reason"`
	Priority  string `json:"priority"`
}

var (
	toolNamePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9_.+-]*$`)
	listLinePattern   = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s*([A-Za-z0-9_.+-]+)\s*(?:[-:–]\s*(.+))?$`)
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
)

// ParseRecommendations turns raw collaborator output into an ordered plan.
func ParseRecommendations(raw string) ([]Recommendation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty content", sharedErrors.ErrUnparsableResponse)
	}

	if recs := decodeEnvelope(raw); len(recs) > 0 {
		return recs, nil
	}
	if extracted := ExtractJSON(raw); extracted != "" {
		if recs := decodeEnvelope(extracted); len(recs) > 0 {
			return recs, nil
		}
	}
	if recs := parseListLines(raw); len(recs) > 0 {
		return recs, nil
	}
	return nil, fmt.Errorf("%w: no tool list found", sharedErrors.ErrUnparsableResponse)
}

func decodeEnvelope(raw string) []Recommendation {
	var envelope recommendationEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil
	}
	recs := make([]Recommendation, 0, len(envelope.Tools))
	for _, entry := range envelope.Tools {
		name := strings.ToLower(strings.TrimSpace(firstNonEmpty(entry.Tool, entry.Name)))
		if !toolNamePattern.MatchString(name) {
			continue
		}
		recs = append(recs, Recommendation{
			Tool:      name,
			Rationale: firstNonEmpty(entry.Rationale, entry.Reason),
			Priority:  normalizePriority(entry.Priority),
		})
	}
	return recs
}

func parseListLines(raw string) []Recommendation {
	var recs []Recommendation
	for _, line := range strings.Split(raw, "\n") {
		m := listLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if !toolNamePattern.MatchString(name) {
			continue
		}
		recs = append(recs, Recommendation{
			Tool:      name,
			Rationale: strings.TrimSpace(m[2]),
			Priority:  "medium",
		})
	}
	return recs
}

// ExtractJSON pulls the first JSON object out of content that may wrap it in
// markdown fences or prose. Returns "" when no balanced object is present.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "{") {
		return content
	}
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return extractBalancedObject(content)
}

func extractBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

type argvEnvelope struct {
	Argv    []string `json:"argv"`
	Command string   `json:"command"`
}

// ParseArgv decodes a corrected command from fix-command output. The fixed
// argv keeps placeholder-free literal tokens only; an empty or unusable
// response is ErrUnparsableResponse so the caller falls back to the original
// command unchanged.
func ParseArgv(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if extracted := ExtractJSON(raw); extracted != "" {
		var envelope argvEnvelope
		if err := json.Unmarshal([]byte(extracted), &envelope); err == nil {
			if len(envelope.Argv) > 0 {
				return cleanArgv(envelope.Argv)
			}
			if envelope.Command != "" {
				return cleanArgv(strings.Fields(envelope.Command))
			}
		}
	}
	// Last resort: a bare command line, possibly fenced.
	raw = strings.Trim(raw, "`")
	if line := firstNonEmptyLine(raw); line != "" && !strings.ContainsAny(line, "{}") {
		return cleanArgv(strings.Fields(line))
	}
	return nil, fmt.Errorf("%w: no corrected command", sharedErrors.ErrUnparsableResponse)
}

func cleanArgv(argv []string) ([]string, error) {
	cleaned := make([]string, 0, len(argv))
	for _, token := range argv {
		token = strings.TrimSpace(token)
		if token != "" {
			cleaned = append(cleaned, token)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: empty argv", sharedErrors.ErrUnparsableResponse)
	}
	return cleaned, nil
}

func firstNonEmptyLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "high"
	case "specialized", "low":
		return "specialized"
	default:
		return "medium"
	}
}
