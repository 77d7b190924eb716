package solver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/me/mise/internal/formulation"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/pkg/model"
)

// checkEvery is how many nodes pass between clock and context checks.
const checkEvery = 64

// Options bounds one search.
type Options struct {
	TimeLimit time.Duration // 0 = unlimited
	NodeLimit int64         // 0 = unlimited
	// AcceptFeasible makes Drive return the incumbent when a budget runs out.
	AcceptFeasible bool
	// Backend selects the engine Drive runs; empty means BackendSearch.
	Backend Backend
	Logger  *slog.Logger
}

// Result is the outcome of a search. Starts holds the chosen slot of every
// group when the status carries a solution, or the incumbent when a budget
// stopped the search after one was found.
type Result struct {
	Status     model.SolveStatus
	Starts     []int
	Makespan   int
	Nodes      int64
	Incumbents int
	Duration   time.Duration
}

// Value reports whether start[group, t] is 1 in the result's assignment.
func (r *Result) Value(group, t int) bool {
	return r.Starts != nil && r.Starts[group] == t
}

type search struct {
	ctx      context.Context
	m        *formulation.Model
	lay      layout
	prop     *propagator
	opts     Options
	logger   *slog.Logger
	deadline time.Time

	nodes      int64
	best       []int
	bestMS     int
	incumbents int
	stop       model.SolveStatus
	err        error
}

// Search runs depth-first branch and bound over m, seeded with a greedy list
// schedule. Budget stops and cancellation are reported through
// Result.Status; the error is non-nil only for malformed models or an
// assignment that fails the final model check. The clock and the context are
// also checked during propagation, so a large model still stops close to the
// time limit.
func Search(ctx context.Context, m *formulation.Model, opts Options) (*Result, error) {
	started := time.Now()
	if ctx.Err() != nil {
		return &Result{Status: model.SolveStatusCancelled, Duration: time.Since(started)}, nil
	}
	rows, err := compile(m)
	if err != nil {
		return nil, err
	}

	sizes := make([]int, len(m.Groups))
	for g, grp := range m.Groups {
		sizes[g] = grp.Size()
	}
	s := &search{
		ctx:    ctx,
		m:      m,
		lay:    newLayout(sizes),
		prop:   newPropagator(rows, len(m.Groups)),
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger).With("component", "solver"),
	}
	if opts.TimeLimit > 0 {
		s.deadline = started.Add(opts.TimeLimit)
	}
	s.prop.stop = s.clock

	s.logger.Debug("search started",
		"groups", len(m.Groups), "rows", len(rows), "horizon", m.Horizon,
		"time_limit", opts.TimeLimit, "node_limit", opts.NodeLimit)

	root := newRoot(&s.lay, m.Horizon)
	if root.msHi < 0 {
		root.msHi = 0
	}
	switch {
	case s.empty(root):
		s.logger.Debug("root infeasible")
	case s.seed(root):
		s.logger.Debug("greedy schedule meets the root bound", "makespan", s.bestMS)
	case !s.prop.all(root):
		if s.stop == "" {
			s.logger.Debug("root infeasible")
		}
	default:
		s.dfs(root)
	}

	res := &Result{
		Nodes:      s.nodes,
		Incumbents: s.incumbents,
		Duration:   time.Since(started),
	}
	if s.err != nil {
		return res, s.err
	}
	if s.best != nil {
		res.Starts = s.best
		res.Makespan = s.bestMS
	}
	switch {
	case s.stop != "":
		res.Status = s.stop
	case s.best != nil:
		res.Status = model.SolveStatusOptimal
	default:
		res.Status = model.SolveStatusInfeasible
	}
	s.logger.Debug("search finished",
		"status", res.Status, "makespan", res.Makespan, "nodes", res.Nodes,
		"incumbents", res.Incumbents, "duration", res.Duration.String())
	return res, nil
}

func (s *search) empty(n *node) bool {
	for g := range s.m.Groups {
		if n.lay.size[g] == 0 {
			return true
		}
	}
	return false
}

// seed records the greedy schedule as the first incumbent and reports
// whether it already meets the lower bound of the unpropagated root.
func (s *search) seed(root *node) bool {
	starts := greedy(s.m)
	if starts == nil {
		return false
	}
	if err := s.offer(starts); err != nil {
		s.logger.Debug("greedy schedule rejected", "error", err)
		return false
	}
	return s.bestMS <= s.lowerBound(root)
}

// halted checks the budgets and the context, recording why the search stops.
func (s *search) halted() bool {
	if s.stop != "" || s.err != nil {
		return true
	}
	if s.opts.NodeLimit > 0 && s.nodes >= s.opts.NodeLimit {
		s.stop = model.SolveStatusNodeLimit
		return true
	}
	return s.nodes%checkEvery == 0 && s.clock()
}

// clock checks the context and the deadline, recording why the search stops.
func (s *search) clock() bool {
	if s.stop != "" {
		return true
	}
	if s.ctx.Err() != nil {
		s.stop = model.SolveStatusCancelled
		return true
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.stop = model.SolveStatusTimeLimit
		return true
	}
	return false
}

// dfs explores n, which has already been propagated. It returns true when the
// whole search must stop.
func (s *search) dfs(n *node) bool {
	if s.halted() {
		return true
	}
	s.nodes++

	if s.best != nil && n.msHi >= s.bestMS {
		n.msHi = s.bestMS - 1
		if n.msLo > n.msHi || !s.prop.changed(n, nil, true) {
			return false
		}
	}
	if s.lowerBound(n) > n.msHi {
		return false
	}

	g := s.branchGroup(n)
	if g < 0 {
		s.record(n)
		return s.err != nil
	}

	for _, v := range n.values(g) {
		child := n.clone()
		child.fix(g, v)
		if !s.prop.changed(child, []int{g}, false) {
			if s.stop != "" {
				return true
			}
			continue
		}
		if s.dfs(child) {
			return true
		}
		// A better incumbent may have been found below; stop early if this
		// node can no longer improve on it.
		if s.best != nil && s.lowerBound(n) >= s.bestMS {
			return false
		}
	}
	return false
}

// branchGroup picks the unfixed group with the earliest possible start.
// Ties go to exclusive groups, then to the longest remaining dish chain
// (duration plus tail), then to the lower index.
// Returns -1 if every group is fixed.
func (s *search) branchGroup(n *node) int {
	best := -1
	bestStart := 0
	for g, grp := range s.m.Groups {
		if n.count(g) <= 1 {
			continue
		}
		start := grp.First + n.min(g)
		if best < 0 || start < bestStart || (start == bestStart && better(grp, s.m.Groups[best])) {
			best, bestStart = g, start
		}
	}
	return best
}

func better(a, b formulation.Group) bool {
	if a.Exclusive != b.Exclusive {
		return a.Exclusive
	}
	return a.Duration+a.Tail > b.Duration+b.Tail
}

// record stores the assignment of a fully fixed node as the new incumbent.
func (s *search) record(n *node) {
	starts := make([]int, len(s.m.Groups))
	for g, grp := range s.m.Groups {
		starts[g] = grp.First + n.min(g)
	}
	if err := s.offer(starts); err != nil {
		s.err = fmt.Errorf("propagation accepted an invalid assignment: %w", err)
	}
}

// offer checks starts against every model row and keeps it if it improves on
// the incumbent.
func (s *search) offer(starts []int) error {
	makespan := 0
	for g, grp := range s.m.Groups {
		makespan = max(makespan, starts[g]+grp.Duration)
	}
	if err := s.m.Check(starts, makespan); err != nil {
		return err
	}
	if s.best == nil || makespan < s.bestMS {
		s.best, s.bestMS = starts, makespan
		s.incumbents++
		s.logger.Debug("incumbent", "makespan", makespan, "nodes", s.nodes)
	}
	return nil
}

// lowerBound returns a makespan bound valid for every completion of n:
// the makespan variable's lower bound, each task's earliest end plus its dish
// tail, and the head-body-tail bound of the exclusive resource.
func (s *search) lowerBound(n *node) int {
	lb := n.msLo
	for g, grp := range s.m.Groups {
		if v := grp.First + n.min(g) + grp.Duration + grp.Tail; v > lb {
			lb = v
		}
	}
	if v := s.resourceBound(n); v > lb {
		lb = v
	}
	return lb
}

type job struct {
	head, body, tail int
}

// resourceBound: every exclusive task that cannot start before r runs after r
// on one resource, and the last of them still needs its own tail.
func (s *search) resourceBound(n *node) int {
	if len(s.m.Exclusive) < 2 {
		return 0
	}
	jobs := make([]job, 0, len(s.m.Exclusive))
	for _, g := range s.m.Exclusive {
		grp := s.m.Groups[g]
		jobs = append(jobs, job{head: grp.First + n.min(g), body: grp.Duration, tail: grp.Tail})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].head < jobs[j].head })

	best, sum, minTail := 0, 0, -1
	for k := len(jobs) - 1; k >= 0; k-- {
		sum += jobs[k].body
		if minTail < 0 || jobs[k].tail < minTail {
			minTail = jobs[k].tail
		}
		if v := jobs[k].head + sum + minTail; v > best {
			best = v
		}
	}
	return best
}
