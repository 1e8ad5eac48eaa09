package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/emitter/internal/logger"
	"github.com/shaharia-lab/emitter/internal/scenario"
)

// NewReplayCmd returns the "replay" subcommand that runs a scenario file
// against an in-process emitter.
func NewReplayCmd() *cobra.Command {
	var (
		asJSON  bool
		noColor bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run a scenario file and print the listener trace",
		Long: `Run the steps of a scenario file against a fresh in-process emitter and
print every listener call followed by the final registry state.

Examples:
  emitter replay scenarios/once.yaml
  emitter replay --json scenarios/once.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			opts := scenario.RunOptions{Logger: logger.NewConsoleLogger(cmd.ErrOrStderr(), level)}

			trace, runErr := sc.Run(cmd.Context(), opts)
			out := cmd.OutOrStdout()
			if trace != nil {
				if asJSON {
					if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out).Encode(trace); err != nil {
						return err
					}
				} else {
					r := lipgloss.NewRenderer(out)
					if noColor {
						r.SetColorProfile(termenv.Ascii)
					}
					fmt.Fprint(out, renderTrace(newTraceStyles(r), trace))
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the trace as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every step to stderr")
	return cmd
}

type traceStyles struct {
	heading  lipgloss.Style
	step     lipgloss.Style
	listener lipgloss.Style
	muted    lipgloss.Style
	once     lipgloss.Style
}

func newTraceStyles(r *lipgloss.Renderer) traceStyles {
	return traceStyles{
		heading:  r.NewStyle().Bold(true).Underline(true),
		step:     r.NewStyle().Foreground(lipgloss.Color("4")).Width(6),
		listener: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		once:     r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func renderTrace(st traceStyles, t *scenario.Trace) string {
	var b strings.Builder

	b.WriteString(st.heading.Render("Calls") + "\n")
	if len(t.Calls) == 0 {
		b.WriteString(st.muted.Render("  (none)") + "\n")
	}
	for _, c := range t.Calls {
		indent := strings.Repeat("  ", c.Depth)
		fmt.Fprintf(&b, "  %s%s%s %s\n",
			st.step.Render(fmt.Sprintf("#%d", c.Step)),
			indent,
			st.listener.Render(c.Listener),
			st.muted.Render(formatArgs(c.Args)),
		)
	}

	b.WriteString("\n" + st.heading.Render("Events") + "\n")
	if len(t.Events) == 0 {
		b.WriteString(st.muted.Render("  (none)") + "\n")
	}
	for _, e := range t.Events {
		names := make([]string, 0, len(e.Listeners))
		for _, a := range e.Listeners {
			name := a.Listener
			if a.Once {
				name += st.once.Render(" (once)")
			}
			names = append(names, name)
		}
		if len(names) == 0 {
			names = append(names, st.muted.Render("-"))
		}
		fmt.Fprintf(&b, "  %s: %s\n", e.Key, strings.Join(names, ", "))
	}
	return b.String()
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return "()"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
