package emitter

import (
	"fmt"
	"regexp"

	"github.com/gobwas/glob"
)

// Selector names the registry entries an operation applies to. It is either
// a literal Key or a *Pattern.
type Selector interface {
	selector()
}

// Key is a literal event key.
type Key string

func (Key) selector() {}

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }

// Keys converts plain strings to literal keys.
func Keys(names ...string) []Key {
	keys := make([]Key, len(names))
	for i, n := range names {
		keys[i] = Key(n)
	}
	return keys
}

// PatternKind identifies the syntax a Pattern was compiled from.
type PatternKind string

const (
	PatternRegexp PatternKind = "regexp"
	PatternGlob   PatternKind = "glob"
)

// Pattern selects every existing key it matches. It is never stored as a key
// itself.
type Pattern struct {
	expr  string
	kind  PatternKind
	match func(string) bool
}

func (*Pattern) selector() {}

// Regexp compiles a regular expression pattern. Matching is unanchored, so
// "^ba" selects "bar" and "baz" while "a" selects any key containing an a.
func Regexp(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling regexp pattern %q: %w", expr, err)
	}
	return FromRegexp(re), nil
}

// MustRegexp is like Regexp but panics if the expression cannot be parsed.
func MustRegexp(expr string) *Pattern {
	p, err := Regexp(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// FromRegexp wraps an already compiled regular expression.
func FromRegexp(re *regexp.Regexp) *Pattern {
	return &Pattern{expr: re.String(), kind: PatternRegexp, match: re.MatchString}
}

// Glob compiles a glob pattern over dot separated keys: "*" matches within
// one segment, "**" across segments, and "{a,b}" alternatives.
func Glob(expr string) (*Pattern, error) {
	g, err := glob.Compile(expr, '.')
	if err != nil {
		return nil, fmt.Errorf("compiling glob pattern %q: %w", expr, err)
	}
	return &Pattern{expr: expr, kind: PatternGlob, match: g.Match}, nil
}

// MustGlob is like Glob but panics if the expression cannot be parsed.
func MustGlob(expr string) *Pattern {
	p, err := Glob(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether key is selected by the pattern. A nil pattern
// matches nothing.
func (p *Pattern) Match(key string) bool {
	if p == nil || p.match == nil {
		return false
	}
	return p.match(key)
}

// Kind returns the syntax the pattern was compiled from.
func (p *Pattern) Kind() PatternKind { return p.kind }

// String returns the source expression.
func (p *Pattern) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.expr
}

// describe renders a selector for log output.
func describe(sel Selector) string {
	switch s := sel.(type) {
	case Key:
		return string(s)
	case *Pattern:
		return fmt.Sprintf("%s(%s)", s.Kind(), s.String())
	default:
		return "<none>"
	}
}
