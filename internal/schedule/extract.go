// Package schedule turns a solved start-indicator assignment into a keyed
// schedule of task intervals.
package schedule

import (
	"fmt"

	"github.com/me/mise/internal/formulation"
	"github.com/me/mise/internal/solver"
	"github.com/me/mise/pkg/model"
)

// Extract reads the start of every task from res and builds the schedule.
// Each group must have exactly one indicator set; anything else is reported
// as an internal *model.SolverError.
func Extract(m *formulation.Model, res *solver.Result) (*model.Schedule, error) {
	if res == nil || !res.Status.HasSolution() {
		return nil, &model.SolverError{Err: fmt.Errorf("no assignment to extract")}
	}

	s := &model.Schedule{
		Status:  res.Status,
		Horizon: m.Horizon,
		Entries: make(map[model.TaskKey]model.Interval, len(m.Groups)),
		Stats: model.SolveStats{
			Nodes:       res.Nodes,
			Incumbents:  res.Incumbents,
			Variables:   m.Variables(),
			Constraints: len(m.Rows),
			Duration:    res.Duration,
			DurationStr: res.Duration.String(),
		},
	}

	for g, grp := range m.Groups {
		start, err := uniqueStart(grp, g, res)
		if err != nil {
			return nil, &model.SolverError{Err: err}
		}
		iv := model.Interval{Start: start, End: start + grp.Duration}
		s.Entries[grp.Key] = iv
		if iv.End > s.Makespan {
			s.Makespan = iv.End
		}
	}
	return s, nil
}

func uniqueStart(grp formulation.Group, g int, res *solver.Result) (int, error) {
	start, found := -1, 0
	for t := grp.First; t <= grp.Last; t++ {
		if res.Value(g, t) {
			start = t
			found++
		}
	}
	if found != 1 {
		return 0, fmt.Errorf("task %s has %d start indicators set, want exactly 1", grp.Key, found)
	}
	return start, nil
}
