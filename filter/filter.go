// Package filter compiles user-supplied expressions that hide noisy entries
// from poll composites: virtual network interfaces, ephemeral mounts,
// duplicate sensors. Expressions use the expr language, e.g.
//
//	Name matches "^veth"
//	Kind == "fs" && contains(Name, "overlay")
//	Kind == "sensor" && Value == 0
package filter

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Entry is one named item from a poll composite.
type Entry struct {
	// Name is the entry's stable identifier (interface name, mount point,
	// sensor label).
	Name string
	// Kind distinguishes entry categories: "network", "fs", "sensor".
	Kind string
	// Value is the entry's primary numeric reading, when it has one.
	Value float64
}

// Filter is a compiled filter expression.
type Filter struct {
	program *vm.Program
	source  string
}

func environment(e Entry) map[string]any {
	return map[string]any{
		"Name":  e.Name,
		"Kind":  e.Kind,
		"Value": e.Value,
		"contains": func(s, substr string) bool {
			return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
		},
		"startsWith": func(s, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
		},
		"endsWith": func(s, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
	}
}

// Compile compiles a filter expression. The expression must evaluate to a
// boolean; true means the entry is hidden.
func Compile(source string) (*Filter, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("empty filter expression")
	}

	program, err := expr.Compile(source, expr.Env(environment(Entry{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", source, err)
	}

	return &Filter{program: program, source: source}, nil
}

// Source returns the original expression text.
func (f *Filter) Source() string {
	return f.source
}

// Match evaluates the filter against an entry.
func (f *Filter) Match(e Entry) (bool, error) {
	out, err := expr.Run(f.program, environment(e))
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q: %w", f.source, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q did not evaluate to a boolean", f.source)
	}
	return matched, nil
}

// Set is a compiled group of filters. An entry matching any filter in the
// set is hidden.
type Set struct {
	filters []*Filter
}

// Empty reports whether the set has no filters.
func (s *Set) Empty() bool {
	return s == nil || len(s.filters) == 0
}

// Drop reports whether the entry should be hidden. An expression that fails
// at evaluation time never hides data.
func (s *Set) Drop(e Entry) bool {
	if s == nil {
		return false
	}
	for _, f := range s.filters {
		matched, err := f.Match(e)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
