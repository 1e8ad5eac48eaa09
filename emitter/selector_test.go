package emitter_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/emitter/emitter"
)

func TestRegexpPattern(t *testing.T) {
	p := emitter.MustRegexp("^ba")

	assert.Equal(t, emitter.PatternRegexp, p.Kind())
	assert.Equal(t, "^ba", p.String())
	assert.True(t, p.Match("bar"))
	assert.True(t, p.Match("baz"))
	assert.False(t, p.Match("foo"))

	unanchored := emitter.FromRegexp(regexp.MustCompile("a"))
	assert.True(t, unanchored.Match("bar"))
}

func TestRegexpPattern_Invalid(t *testing.T) {
	_, err := emitter.Regexp("(")
	require.Error(t, err)
	assert.Panics(t, func() { emitter.MustRegexp("(") })
}

func TestGlobPattern(t *testing.T) {
	tests := []struct {
		expr  string
		key   string
		match bool
	}{
		{"job.*", "job.done", true},
		{"job.*", "job.step.done", false},
		{"job.**", "job.step.done", true},
		{"*.changed", "config.changed", true},
		{"{job,task}.done", "task.done", true},
		{"{job,task}.done", "user.done", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr+"/"+tt.key, func(t *testing.T) {
			p := emitter.MustGlob(tt.expr)
			assert.Equal(t, emitter.PatternGlob, p.Kind())
			assert.Equal(t, tt.match, p.Match(tt.key))
		})
	}
}

func TestNilPattern(t *testing.T) {
	var p *emitter.Pattern
	assert.False(t, p.Match("anything"))
	assert.Equal(t, "<nil>", p.String())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []emitter.Key{"a", "b"}, emitter.Keys("a", "b"))
	assert.Equal(t, "a", emitter.Key("a").String())
}
