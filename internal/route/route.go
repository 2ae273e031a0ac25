// Package route matches request paths against colon-style patterns such as
// "/v1/tasks/:taskId" or "/v1/tasks/:taskId:cancel".
//
// A segment that starts with ':' is a parameter. Its name runs over
// identifier characters; whatever follows in the same segment is a literal
// suffix. Parameters capture one or more non-slash characters. Matching is
// anchored to the whole path and trailing slashes are significant.
package route

import (
	"fmt"
	"regexp"
	"strings"
)

// Params maps parameter names to the path segments they captured.
type Params map[string]string

// Pattern is a compiled route pattern.
type Pattern struct {
	raw   string
	re    *regexp.Regexp
	names []string
}

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// Compile parses pattern. Literal text is quoted so regexp metacharacters in
// paths (such as '.' or '+') match themselves.
func Compile(pattern string) (*Pattern, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("route: pattern %q must start with '/'", pattern)
	}

	var (
		b     strings.Builder
		names []string
	)
	b.WriteString("^")
	for i, seg := range strings.Split(pattern, "/") {
		if i > 0 {
			b.WriteString("/")
		}
		if !strings.HasPrefix(seg, ":") {
			b.WriteString(regexp.QuoteMeta(seg))
			continue
		}

		name := paramName.FindString(seg[1:])
		if name == "" {
			return nil, fmt.Errorf("route: pattern %q has an unnamed parameter", pattern)
		}
		for _, n := range names {
			if n == name {
				return nil, fmt.Errorf("route: pattern %q repeats parameter %q", pattern, name)
			}
		}
		names = append(names, name)
		fmt.Fprintf(&b, "(?P<%s>[^/]+?)", name)
		b.WriteString(regexp.QuoteMeta(seg[1+len(name):]))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("route: compiling %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, re: re, names: names}, nil
}

// MustCompile is like Compile but panics on error. It is meant for route
// tables built at package initialization.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern.
func (p *Pattern) String() string { return p.raw }

// Match reports whether path matches p and returns the captured parameters.
// A pattern without parameters yields an empty, non-nil Params on match.
func (p *Pattern) Match(path string) (Params, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params, len(p.names))
	for i, name := range p.re.SubexpNames() {
		if name != "" {
			params[name] = m[i]
		}
	}
	return params, true
}

// Match compiles pattern and matches it against path. Invalid patterns never
// match.
func Match(pattern, path string) (Params, bool) {
	p, err := Compile(pattern)
	if err != nil {
		return nil, false
	}
	return p.Match(path)
}
