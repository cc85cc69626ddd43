package catalog

import (
	"errors"
	"strings"
	"testing"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

func TestResolve_SubstitutesPlaceholders(t *testing.T) {
	spec := ToolSpec{
		Name:     "nmap",
		Template: []string{"nmap", "-sV", "--top-ports", "1000", "{target}"},
	}
	argv, err := Resolve(spec, map[string]string{"target": "scanme.example.com"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{"nmap", "-sV", "--top-ports", "1000", "scanme.example.com"}
	if strings.Join(argv, " ") != strings.Join(want, " ") {
		t.Fatalf("want %v, got %v", want, argv)
	}
}

func TestResolve_FixedArity(t *testing.T) {
	// Parameter values with spaces and shell metacharacters must stay inside
	// a single argv element.
	spec := ToolSpec{
		Name:     "gobuster",
		Template: []string{"gobuster", "dir", "-u", "http://{target}/", "-w", "{wordlist}"},
	}
	params := map[string]string{
		"target":   "host; rm -rf /",
		"wordlist": "/tmp/my word list.txt && reboot",
	}
	argv, err := Resolve(spec, params)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(argv) != len(spec.Template) {
		t.Fatalf("arity changed: template has %d tokens, argv has %d", len(spec.Template), len(argv))
	}
	if argv[3] != "http://host; rm -rf //" {
		t.Errorf("target not substituted textually: %q", argv[3])
	}
	if argv[5] != "/tmp/my word list.txt && reboot" {
		t.Errorf("wordlist not kept as one element: %q", argv[5])
	}
}

func TestResolve_MissingParameterNamesPlaceholder(t *testing.T) {
	spec := ToolSpec{
		Name:     "hydra",
		Template: []string{"hydra", "-l", "{username}", "-P", "{wordlist}", "{target}", "{service}"},
	}
	_, err := Resolve(spec, map[string]string{"target": "10.0.0.5"})
	if !errors.Is(err, sharedErrors.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
	if !strings.Contains(err.Error(), "username") {
		t.Errorf("error should name the first missing placeholder: %v", err)
	}
}

func TestResolve_EmptyValueCountsAsMissing(t *testing.T) {
	spec := ToolSpec{Name: "dirb", Template: []string{"dirb", "http://{target}/", "{wordlist}"}}
	_, err := Resolve(spec, map[string]string{"target": "example.com", "wordlist": ""})
	if !errors.Is(err, sharedErrors.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter for empty value, got %v", err)
	}
}

func TestResolve_MultiplePlaceholdersInOneToken(t *testing.T) {
	spec := ToolSpec{Name: "sqlmap", Template: []string{"sqlmap", "-u", "http://{target}{path}"}}
	argv, err := Resolve(spec, map[string]string{"target": "example.com", "path": "/login.php"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if argv[2] != "http://example.com/login.php" {
		t.Fatalf("unexpected token: %q", argv[2])
	}
}

func TestBuiltinSpecs_AllValid(t *testing.T) {
	// Every shipped spec must resolve given its own placeholder set.
	for _, spec := range Default().All() {
		params := map[string]string{}
		for _, name := range spec.Placeholders() {
			params[name] = "value"
		}
		argv, err := Resolve(spec, params)
		if err != nil {
			t.Errorf("spec %s does not resolve: %v", spec.Name, err)
			continue
		}
		if len(argv) != len(spec.Template) {
			t.Errorf("spec %s changed arity", spec.Name)
		}
	}
}
