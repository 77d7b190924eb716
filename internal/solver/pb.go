package solver

import (
	"context"
	"fmt"
	"sync"
	"time"

	gsolver "github.com/crillab/gophersat/solver"

	"github.com/me/mise/internal/formulation"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/pkg/model"
)

// pbEncoding numbers the model's 0-1 variables for the pseudo-boolean
// optimizer. start[g, t] is variable base[g] + t − First + 1. The makespan is
// unary: variable ms + k, k in 1..Horizon, is true when the makespan is at
// least k, so the makespan is the number of true makespan variables.
type pbEncoding struct {
	m    *formulation.Model
	base []int
	ms   int
}

func newPBEncoding(m *formulation.Model) *pbEncoding {
	e := &pbEncoding{m: m, base: make([]int, len(m.Groups))}
	n := 0
	for g, grp := range m.Groups {
		e.base[g] = n
		n += grp.Size()
	}
	e.ms = n
	return e
}

func (e *pbEncoding) start(g, t int) int {
	return e.base[g] + t - e.m.Groups[g].First + 1
}

func (e *pbEncoding) makespan(k int) int {
	return e.ms + k
}

// constraints translates every model row. ok is false when a row can never
// be satisfied, which the optimizer need not be asked about.
func (e *pbEncoding) constraints(ctx context.Context) (cs []gsolver.PBConstr, ok bool, err error) {
	for i, r := range e.m.Rows {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
		}
		var lits, weights []int
		for _, tm := range r.Terms {
			g := e.m.Groups[tm.Group]
			for t := max(tm.From, g.First); t <= min(tm.To, g.Last); t++ {
				if c := tm.At(t); c != 0 {
					lits = append(lits, e.start(tm.Group, t))
					weights = append(weights, c)
				}
			}
		}
		if r.Makespan != 0 {
			for k := 1; k <= e.m.Horizon; k++ {
				lits = append(lits, e.makespan(k))
				weights = append(weights, r.Makespan)
			}
		}

		rows := []gsolver.PBConstr{leq(lits, weights, r.RHS)}
		if r.Sense == formulation.Equal {
			rows = append(rows, geq(clone(lits), clone(weights), r.RHS))
		}
		for _, c := range rows {
			switch {
			case c.AtLeast <= 0:
				continue
			case sum(c.Weights) < c.AtLeast:
				return nil, false, nil
			}
			cs = append(cs, c)
		}
	}
	// Makespan variables form a prefix: m_{k+1} implies m_k.
	for k := 1; k < e.m.Horizon; k++ {
		cs = append(cs, gsolver.PBConstr{
			Lits:    []int{-e.makespan(k + 1), e.makespan(k)},
			Weights: []int{1, 1},
			AtLeast: 1,
		})
	}
	return cs, true, nil
}

// cost is the number of true makespan variables.
func (e *pbEncoding) cost() ([]gsolver.Lit, []int) {
	lits := make([]gsolver.Lit, e.m.Horizon)
	weights := make([]int, e.m.Horizon)
	for k := 1; k <= e.m.Horizon; k++ {
		lits[k-1] = gsolver.IntToLit(int32(e.makespan(k)))
		weights[k-1] = 1
	}
	return lits, weights
}

// decode reads the start slot of every group from a model of the optimizer.
func (e *pbEncoding) decode(values []bool) ([]int, error) {
	starts := make([]int, len(e.m.Groups))
	for g, grp := range e.m.Groups {
		starts[g] = -1
		for t := grp.First; t <= grp.Last; t++ {
			if !values[e.start(g, t)-1] {
				continue
			}
			if starts[g] >= 0 {
				return nil, fmt.Errorf("task %s starts at both %d and %d", grp.Key, starts[g], t)
			}
			starts[g] = t
		}
		if starts[g] < 0 {
			return nil, fmt.Errorf("task %s has no start", grp.Key)
		}
	}
	return starts, nil
}

// geq returns Σ w·l >= k with positive weights: a literal with a negative
// weight w is replaced by its negation with weight −w, adding −w to k.
func geq(lits, weights []int, k int) gsolver.PBConstr {
	for i, w := range weights {
		if w < 0 {
			lits[i], weights[i] = -lits[i], -w
			k -= w
		}
	}
	return gsolver.PBConstr{Lits: lits, Weights: weights, AtLeast: k}
}

// leq returns Σ w·l <= k as Σ −w·l >= −k.
func leq(lits, weights []int, k int) gsolver.PBConstr {
	neg := make([]int, len(weights))
	for i, w := range weights {
		neg[i] = -w
	}
	return geq(clone(lits), neg, -k)
}

func clone(xs []int) []int {
	return append([]int(nil), xs...)
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

// SearchPB solves m with the gophersat pseudo-boolean optimizer. The time
// limit and the context stop the optimizer, which then returns its best
// model so far. The optimizer keeps no node count, so NodeLimit does not
// apply and Result.Nodes stays zero.
//
// The encoding expands every row into one literal per slot, so this backend
// suits small and medium kitchens; Search handles long horizons better.
func SearchPB(ctx context.Context, m *formulation.Model, opts Options) (*Result, error) {
	started := time.Now()
	logger := logging.OrDiscard(opts.Logger).With("component", "solver", "backend", BackendPB)
	res := &Result{}
	finish := func(status model.SolveStatus) (*Result, error) {
		res.Status = status
		res.Duration = time.Since(started)
		logger.Debug("search finished", "status", res.Status, "makespan", res.Makespan, "duration", res.Duration.String())
		return res, nil
	}

	if ctx.Err() != nil {
		return finish(model.SolveStatusCancelled)
	}
	for _, g := range m.Groups {
		if g.Size() == 0 {
			return finish(model.SolveStatusInfeasible)
		}
	}

	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = started.Add(opts.TimeLimit)
	}
	buildCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	enc := newPBEncoding(m)
	constrs, ok, err := enc.constraints(buildCtx)
	switch {
	case err != nil && ctx.Err() != nil:
		return finish(model.SolveStatusCancelled)
	case err != nil:
		return finish(model.SolveStatusTimeLimit)
	case !ok:
		return finish(model.SolveStatusInfeasible)
	}
	logger.Debug("search started", "constraints", len(constrs), "time_limit", opts.TimeLimit)

	pb := gsolver.ParsePBConstrs(constrs)
	pb.SetCostFunc(enc.cost())
	s := gsolver.New(pb)

	// reason is written before stop is closed and read after the watcher
	// has exited.
	var (
		reason model.SolveStatus
		wg     sync.WaitGroup
	)
	stop := make(chan struct{})
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		var timeout <-chan time.Time
		if !deadline.IsZero() {
			timer := time.NewTimer(time.Until(deadline))
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-done:
		case <-ctx.Done():
			reason = model.SolveStatusCancelled
			close(stop)
		case <-timeout:
			reason = model.SolveStatusTimeLimit
			close(stop)
		}
	}()
	out := s.Optimal(nil, stop)
	close(done)
	wg.Wait()

	switch out.Status {
	case gsolver.Unsat:
		if reason != "" {
			return finish(reason)
		}
		return finish(model.SolveStatusInfeasible)
	case gsolver.Sat:
		starts, err := enc.decode(out.Model)
		if err != nil {
			return nil, err
		}
		makespan := 0
		for g, grp := range m.Groups {
			makespan = max(makespan, starts[g]+grp.Duration)
		}
		if err := m.Check(starts, makespan); err != nil {
			return nil, fmt.Errorf("optimizer returned an invalid assignment: %w", err)
		}
		res.Starts, res.Makespan, res.Incumbents = starts, makespan, 1
		if reason != "" {
			return finish(reason)
		}
		return finish(model.SolveStatusOptimal)
	default:
		if reason != "" {
			return finish(reason)
		}
		return nil, fmt.Errorf("optimizer stopped without a result")
	}
}
