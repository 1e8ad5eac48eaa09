// Package scenario replays scripted listener registrations and emissions
// against an in-process emitter and records what every listener saw.
//
// A scenario file looks like:
//
//	requires: ">= 0.3.0"
//	once_return_value: done
//	listeners:
//	  audit: {}
//	  closer: {returns: done}
//	  chain: {reemit: job.done}
//	steps:
//	  - define: [job.start, job.done]
//	  - on: {selector: "^job", pattern: regexp, listeners: [audit, closer]}
//	  - emit: {selector: job.start, args: [1], expect: [closer, audit]}
package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/emitter/internal/service"
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Requires        string                  `yaml:"requires"`
	OnceReturnValue yaml.Node               `yaml:"once_return_value"`
	Listeners       map[string]ListenerSpec `yaml:"listeners"`
	Steps           []Step                  `yaml:"steps"`

	constraint *semver.Constraints
}

// ListenerSpec declares a named recording listener.
type ListenerSpec struct {
	// Returns is the value the listener returns. Absent means it returns a
	// value that never matches the once-return value.
	Returns yaml.Node `yaml:"returns"`
	// Reemit is a key emitted, with the same arguments, from inside the listener.
	Reemit string `yaml:"reemit"`
}

// Step is a single operation. Exactly one field must be set.
type Step struct {
	Define      []string              `yaml:"define,omitempty"`
	On          *Binding              `yaml:"on,omitempty"`
	Once        *Binding              `yaml:"once,omitempty"`
	Off         *Binding              `yaml:"off,omitempty"`
	Emit        *EmitStep             `yaml:"emit,omitempty"`
	RemoveEvent *service.SelectorSpec `yaml:"remove_event,omitempty"`
}

// Binding attaches or detaches listeners by name.
type Binding struct {
	service.SelectorSpec `yaml:",inline"`
	Listener             string   `yaml:"listener,omitempty"`
	Listeners            []string `yaml:"listeners,omitempty"`
}

// names returns the listener names of b, single form first.
func (b *Binding) names() []string {
	var out []string
	if b.Listener != "" {
		out = append(out, b.Listener)
	}
	return append(out, b.Listeners...)
}

// EmitStep emits args to a selector. When Expect is set, the names of the
// listeners invoked by this step, nested re-emits included, must match it.
type EmitStep struct {
	service.SelectorSpec `yaml:",inline"`
	Args                 []any    `yaml:"args,omitempty"`
	Expect               []string `yaml:"expect,omitempty"`
}

// Op names the operation a step performs.
func (s Step) Op() string {
	switch {
	case s.Define != nil:
		return "define"
	case s.On != nil:
		return "on"
	case s.Once != nil:
		return "once"
	case s.Off != nil:
		return "off"
	case s.Emit != nil:
		return "emit"
	case s.RemoveEvent != nil:
		return "remove_event"
	default:
		return ""
	}
}

func (s Step) opCount() int {
	n := 0
	for _, set := range []bool{s.Define != nil, s.On != nil, s.Once != nil, s.Off != nil, s.Emit != nil, s.RemoveEvent != nil} {
		if set {
			n++
		}
	}
	return n
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Requires != "" {
		c, err := semver.NewConstraint(sc.Requires)
		if err != nil {
			return fmt.Errorf("requires: %w", err)
		}
		sc.constraint = c
	}
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}

	var errs []error
	for i, step := range sc.Steps {
		if err := sc.validateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (sc *Scenario) validateStep(step Step) error {
	switch step.opCount() {
	case 0:
		return errors.New("no operation")
	case 1:
	default:
		return errors.New("more than one operation")
	}

	switch {
	case step.Define != nil:
		if len(step.Define) == 0 {
			return errors.New("define needs at least one key")
		}
	case step.On != nil, step.Once != nil, step.Off != nil:
		b := step.On
		if b == nil {
			b = step.Once
		}
		if b == nil {
			b = step.Off
		}
		if _, err := service.ParseSelector(b.SelectorSpec); err != nil {
			return err
		}
		names := b.names()
		if len(names) == 0 {
			return fmt.Errorf("%s needs a listener", step.Op())
		}
		for _, n := range names {
			if _, ok := sc.Listeners[n]; !ok {
				return fmt.Errorf("unknown listener %q", n)
			}
		}
	case step.Emit != nil:
		if _, err := service.ParseSelector(step.Emit.SelectorSpec); err != nil {
			return err
		}
	case step.RemoveEvent != nil:
		if step.RemoveEvent.Selector != "" {
			if _, err := service.ParseSelector(*step.RemoveEvent); err != nil {
				return err
			}
		}
	}
	return nil
}
