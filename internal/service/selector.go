package service

import (
	"fmt"
	"strings"

	"github.com/shaharia-lab/emitter/emitter"
	"github.com/shaharia-lab/emitter/internal/storage"
)

// SelectorSpec is the wire form of a selector. An empty Pattern means the
// selector is a literal key.
type SelectorSpec struct {
	Selector string `json:"selector" yaml:"selector"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Kind reports the storage kind of the selector.
func (s SelectorSpec) Kind() string {
	switch strings.ToLower(s.Pattern) {
	case storage.SelectorRegexp:
		return storage.SelectorRegexp
	case storage.SelectorGlob:
		return storage.SelectorGlob
	default:
		return storage.SelectorKey
	}
}

// ParseSelector turns a SelectorSpec into an emitter selector.
func ParseSelector(spec SelectorSpec) (emitter.Selector, error) {
	if spec.Selector == "" {
		return nil, invalidField("selector", "selector is required")
	}
	switch strings.ToLower(spec.Pattern) {
	case "", storage.SelectorKey:
		return emitter.Key(spec.Selector), nil
	case storage.SelectorRegexp:
		p, err := emitter.Regexp(spec.Selector)
		if err != nil {
			return nil, invalidSelector(err)
		}
		return p, nil
	case storage.SelectorGlob:
		p, err := emitter.Glob(spec.Selector)
		if err != nil {
			return nil, invalidSelector(err)
		}
		return p, nil
	default:
		return nil, invalidField("pattern", fmt.Sprintf("unknown pattern type %q (want regexp or glob)", spec.Pattern))
	}
}
