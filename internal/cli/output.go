package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/me/mise/pkg/model"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.Bold, color.FgGreen).SprintFunc()
	yellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	red    = color.New(color.Bold, color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// maxBar caps the width of the timeline bars.
const maxBar = 60

func statusLabel(s model.SolveStatus) string {
	switch s {
	case model.SolveStatusOptimal:
		return green(s)
	case model.SolveStatusFeasible:
		return yellow(s)
	default:
		return red(s)
	}
}

// printSchedule writes a table of the schedule ordered by start time, with
// a bar per task drawn to scale.
func printSchedule(w io.Writer, s *model.Schedule) {
	fmt.Fprintf(w, "%s  makespan %s  %s\n",
		statusLabel(s.Status), bold(s.Makespan),
		dim(fmt.Sprintf("(horizon %d, %s nodes, %s, %s)", s.Horizon, humanize.Comma(s.Stats.Nodes), s.Stats.DurationStr, s.RunID)))
	if s.Status == model.SolveStatusFeasible {
		fmt.Fprintln(w, yellow("warning: budget exhausted; schedule is not proven optimal"))
	}

	ordered := s.Ordered()
	width := 0
	for _, e := range ordered {
		width = max(width, len(e.Key.String()))
	}
	scale := 1.0
	if s.Makespan > maxBar {
		scale = float64(maxBar) / float64(s.Makespan)
	}
	for _, e := range ordered {
		lead := int(float64(e.Start) * scale)
		bar := max(1, int(float64(e.End)*scale)-lead)
		fmt.Fprintf(w, "  %-*s  %4d -> %-4d  %s%s\n",
			width, e.Key, e.Start, e.End, strings.Repeat(" ", lead), cyan(strings.Repeat("#", bar)))
	}
}

func printReport(w io.Writer, r *model.ValidationReport) {
	if r.Valid {
		fmt.Fprintf(w, "%s  %d tasks in %d dishes, horizon %d, makespan at least %d\n",
			green("valid"), r.Tasks, r.Dishes, r.Horizon, r.LowerBound)
		return
	}
	fmt.Fprintf(w, "%s  %d tasks, %d problems\n", red("invalid"), r.Tasks, len(r.Errors))
	for _, e := range r.Errors {
		where := e.Path
		if where == "" {
			where = e.Field
		}
		fmt.Fprintf(w, "  %s: %s\n", bold(where), e.Message)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
