package solver

import (
	"context"
	"fmt"

	"github.com/me/mise/internal/formulation"
	"github.com/me/mise/pkg/model"
)

// Backend names a search engine.
type Backend string

const (
	// BackendSearch is the branch and bound of Search.
	BackendSearch Backend = "search"
	// BackendPB hands the model to a pseudo-boolean optimizer, see SearchPB.
	BackendPB Backend = "pb"
)

// Drive runs the configured backend and maps its status onto the scheduling
// error kinds:
//
//	OPTIMAL                   -> result, nil
//	INFEASIBLE                -> *model.InfeasibleScheduleError
//	TIME_LIMIT / NODE_LIMIT   -> *model.SolverError, or a FEASIBLE result when
//	                             AcceptFeasible is set and an incumbent exists
//	CANCELLED                 -> *model.SolverError wrapping ctx.Err()
//	internal failure          -> *model.SolverError wrapping the cause
func Drive(ctx context.Context, m *formulation.Model, opts Options) (*Result, error) {
	var run func(context.Context, *formulation.Model, Options) (*Result, error)
	switch opts.Backend {
	case "", BackendSearch:
		run = Search
	case BackendPB:
		run = SearchPB
	default:
		return nil, &model.SolverError{Err: fmt.Errorf("unknown solver backend %q", opts.Backend)}
	}
	res, err := run(ctx, m, opts)
	if err != nil {
		return res, &model.SolverError{Err: err}
	}
	return res, outcome(ctx, m, res, opts)
}

func outcome(ctx context.Context, m *formulation.Model, res *Result, opts Options) error {
	switch res.Status {
	case model.SolveStatusOptimal:
		return nil
	case model.SolveStatusInfeasible:
		return &model.InfeasibleScheduleError{Horizon: m.Horizon, Reason: infeasibleReason(m)}
	case model.SolveStatusTimeLimit, model.SolveStatusNodeLimit:
		if res.Starts != nil && opts.AcceptFeasible {
			res.Status = model.SolveStatusFeasible
			return nil
		}
		return &model.SolverError{Status: res.Status, BestMakespan: res.Makespan}
	case model.SolveStatusCancelled:
		return &model.SolverError{Status: res.Status, BestMakespan: res.Makespan, Err: ctx.Err()}
	default:
		return &model.SolverError{Err: fmt.Errorf("unexpected solve status %q", res.Status)}
	}
}

// infeasibleReason names the cheapest explanation available without search:
// a task with no start slot, or a pair of same-dish tasks that must each
// precede the other.
func infeasibleReason(m *formulation.Model) string {
	for _, g := range m.Groups {
		if g.Size() == 0 {
			return fmt.Sprintf("task %s cannot fit: its dish needs more than %d slots", g.Key, m.Horizon)
		}
	}
	seen := make(map[[2]int]bool)
	for _, r := range m.Rows {
		if r.Family != formulation.FamilySequence || len(r.Terms) != 2 {
			continue
		}
		a, b := r.Terms[0].Group, r.Terms[1].Group
		if seen[[2]int{b, a}] {
			return fmt.Sprintf("tasks %s and %s share a sequence index", m.Groups[b].Key, m.Groups[a].Key)
		}
		seen[[2]int{a, b}] = true
	}
	if len(m.Exclusive) > 0 {
		return "exclusive tasks cannot be serialized within the horizon"
	}
	return ""
}
