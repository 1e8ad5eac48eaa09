package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ScheduleType identifies how a scheduled emit is triggered.
type ScheduleType string

// Schedule types.
const (
	ScheduleInterval ScheduleType = "interval"
	ScheduleCron     ScheduleType = "cron"
	ScheduleOneOff   ScheduleType = "one_off"
)

// rawSchedule is used for initial YAML parsing before the trigger is typed.
type rawSchedule struct {
	Event       string `yaml:"event"`
	Pattern     string `yaml:"pattern"`
	PatternType string `yaml:"pattern_type"`
	Args        []any  `yaml:"args"`
	Every       string `yaml:"every"`
	Cron        string `yaml:"cron"`
	At          string `yaml:"at"`
}

// ScheduleDefinition is one scheduled emit.
type ScheduleDefinition struct {
	Name string
	// Event is a literal key; Pattern is used when Event is empty.
	Event       string
	Pattern     string
	PatternType string
	Args        []any

	Type       ScheduleType
	Every      time.Duration
	Expression string
	RunAt      time.Time
}

// LoadSchedules reads the schedules YAML file at filePath. If the file does
// not exist, no schedules are returned (not an error). Definitions are
// sorted by name.
func LoadSchedules(filePath string) ([]ScheduleDefinition, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // path is from admin-configured data dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading schedules %q: %w", filePath, err)
	}
	return ParseSchedules(data)
}

// ParseSchedules parses schedule definitions from YAML.
func ParseSchedules(data []byte) ([]ScheduleDefinition, error) {
	var raw map[string]rawSchedule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schedules: %w", err)
	}

	defs := make([]ScheduleDefinition, 0, len(raw))
	for name, entry := range raw {
		def, err := entry.definition(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func (r rawSchedule) definition(name string) (ScheduleDefinition, error) {
	def := ScheduleDefinition{
		Name:        name,
		Event:       r.Event,
		Pattern:     r.Pattern,
		PatternType: r.PatternType,
	}

	switch {
	case r.Event == "" && r.Pattern == "":
		return def, fmt.Errorf("schedule %q: one of event or pattern is required", name)
	case r.Event != "" && r.Pattern != "":
		return def, fmt.Errorf("schedule %q: event and pattern are mutually exclusive", name)
	}
	if r.Pattern != "" && def.PatternType == "" {
		def.PatternType = "regexp"
	}

	args, err := interpolateArgs(name, r.Args)
	if err != nil {
		return def, err
	}
	def.Args = args

	triggers := 0
	if r.Every != "" {
		triggers++
		every, err := time.ParseDuration(r.Every)
		if err != nil {
			return def, fmt.Errorf("schedule %q: parsing every: %w", name, err)
		}
		if every <= 0 {
			return def, fmt.Errorf("schedule %q: every must be positive", name)
		}
		def.Type, def.Every = ScheduleInterval, every
	}
	if r.Cron != "" {
		triggers++
		def.Type, def.Expression = ScheduleCron, r.Cron
	}
	if r.At != "" {
		triggers++
		at, err := time.Parse(time.RFC3339, r.At)
		if err != nil {
			return def, fmt.Errorf("schedule %q: parsing at: %w", name, err)
		}
		def.Type, def.RunAt = ScheduleOneOff, at
	}
	if triggers != 1 {
		return def, fmt.Errorf("schedule %q: exactly one of every, cron or at is required", name)
	}
	return def, nil
}

// interpolateArgs applies ${ENV:VAR_NAME} substitution to string arguments.
func interpolateArgs(scheduleName string, args []any) ([]any, error) {
	if len(args) == 0 {
		return args, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			out[i] = a
			continue
		}
		interpolated, err := interpolateEnv(s)
		if err != nil {
			return nil, fmt.Errorf("schedule %q arg %d: %w", scheduleName, i, err)
		}
		out[i] = interpolated
	}
	return out, nil
}

// interpolateEnv replaces all ${ENV:VAR_NAME} patterns in s with the corresponding
// environment variable values. Returns an error if a referenced variable is not set.
func interpolateEnv(s string) (string, error) {
	result := s
	for {
		start := strings.Index(result, "${ENV:")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := result[start+6 : end]
		value := os.Getenv(varName)
		if value == "" {
			return "", fmt.Errorf("required env var %q is not set", varName)
		}
		result = result[:start] + value + result[end+1:]
	}
	return result, nil
}
