package catalog

import (
	"fmt"
	"sort"

	sharedErrors "github.com/runtimeterrors/aegisec/internal/shared/errors"
)

// Priority ranks how strongly a tool is recommended for its category.
type Priority string

const (
	PriorityHigh        Priority = "high"
	PriorityMedium      Priority = "medium"
	PrioritySpecialized Priority = "specialized"
)

// ToolSpec describes one external security-testing binary the orchestrator
// knows how to invoke. Specs are immutable catalog data: adding a tool is a
// data change in specs.go, never a code change.
type ToolSpec struct {
	Name        string
	Category    string
	Description string
	// Template is the argv template. Each element is one argument token;
	// {placeholder} markers are substituted by Resolve without ever changing
	// the token count.
	Template []string
	Priority Priority
	// NeedsShell declares that the tool legitimately requires shell
	// interpretation. No shipped spec sets it; the safety validator relaxes
	// its metacharacter policy only for specs that do.
	NeedsShell bool
}

// Placeholders returns the distinct placeholder names used by the template,
// in first-appearance order.
func (s ToolSpec) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, token := range s.Template {
		for _, name := range placeholderNames(token) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Catalog is the static lookup table of tool specs, keyed by tool name.
type Catalog struct {
	specs map[string]ToolSpec
}

// New builds a catalog from the given specs. Duplicate names and empty
// templates are rejected so a malformed catalog entry surfaces at startup,
// before any execution begins.
func New(specs []ToolSpec) (*Catalog, error) {
	byName := make(map[string]ToolSpec, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		if len(spec.Template) == 0 {
			return nil, fmt.Errorf("catalog entry %q: %w", spec.Name, sharedErrors.ErrEmptyTemplate)
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, fmt.Errorf("catalog entry %q declared twice", spec.Name)
		}
		byName[spec.Name] = spec
	}
	return &Catalog{specs: byName}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtinSpecs)
	if err != nil {
		// The built-in table is compile-time data; a failure here is a
		// programming error, not an operator error.
		panic(err)
	}
	return c
}

// Lookup returns the spec for the named tool.
func (c *Catalog) Lookup(name string) (ToolSpec, error) {
	spec, ok := c.specs[name]
	if !ok {
		return ToolSpec{}, fmt.Errorf("%w: %s", sharedErrors.ErrToolNotFound, name)
	}
	return spec, nil
}

// ByCategory returns all specs in the category, highest priority first and
// alphabetical within a tier.
func (c *Catalog) ByCategory(category string) []ToolSpec {
	var specs []ToolSpec
	for _, spec := range c.specs {
		if spec.Category == category {
			specs = append(specs, spec)
		}
	}
	sortSpecs(specs)
	return specs
}

// All returns every spec in the catalog, sorted like ByCategory.
func (c *Catalog) All() []ToolSpec {
	specs := make([]ToolSpec, 0, len(c.specs))
	for _, spec := range c.specs {
		specs = append(specs, spec)
	}
	sortSpecs(specs)
	return specs
}

// Categories returns the distinct category names, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, spec := range c.specs {
		if !seen[spec.Category] {
			seen[spec.Category] = true
			categories = append(categories, spec.Category)
		}
	}
	sort.Strings(categories)
	return categories
}

func sortSpecs(specs []ToolSpec) {
	rank := map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PrioritySpecialized: 2}
	sort.Slice(specs, func(i, j int) bool {
		if rank[specs[i].Priority] != rank[specs[j].Priority] {
			return rank[specs[i].Priority] < rank[specs[j].Priority]
		}
		return specs[i].Name < specs[j].Name
	})
}
