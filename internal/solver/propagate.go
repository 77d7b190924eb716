package solver

import (
	"fmt"
	"math"

	"github.com/me/mise/internal/formulation"
)

// term is a formulation.Term rebased onto the group's values: value v in
// [lo, hi] has coefficient coef + slope·(v−lo), every other value 0.
type term struct {
	group int
	lo    int
	hi    int
	coef  int
	slope int
}

func (t term) at(v int) int {
	if v < t.lo || v > t.hi {
		return 0
	}
	return t.coef + t.slope*(v-t.lo)
}

// row is a compiled <= row. Equal rows are the start_once family, which the
// group domains enforce directly, so they are not compiled.
type row struct {
	name     string
	terms    []term
	makespan int
	rhs      int
}

// compile turns the model rows into propagation rows and checks that every
// equality row has the start_once shape. Terms are clipped to their group's
// window; terms left with no value are dropped.
func compile(m *formulation.Model) ([]row, error) {
	var rows []row
	for _, r := range m.Rows {
		if r.Sense == formulation.Equal {
			if err := checkStartOnce(m, r); err != nil {
				return nil, err
			}
			continue
		}
		cr := row{name: r.Name, makespan: r.Makespan, rhs: r.RHS}
		seen := make(map[int]bool, len(r.Terms))
		for _, tm := range r.Terms {
			if seen[tm.Group] {
				return nil, fmt.Errorf("row %s: group %d appears twice", r.Name, tm.Group)
			}
			seen[tm.Group] = true
			g := m.Groups[tm.Group]
			t := term{
				group: tm.Group,
				lo:    tm.From - g.First,
				hi:    tm.To - g.First,
				coef:  tm.Coef,
				slope: tm.Slope,
			}
			if t.lo < 0 {
				t.coef += t.slope * -t.lo
				t.lo = 0
			}
			t.hi = min(t.hi, g.Size()-1)
			if t.lo > t.hi {
				continue
			}
			cr.terms = append(cr.terms, t)
		}
		rows = append(rows, cr)
	}
	return rows, nil
}

func checkStartOnce(m *formulation.Model, r formulation.Row) error {
	if r.RHS != 1 || r.Makespan != 0 || len(r.Terms) != 1 {
		return fmt.Errorf("row %s: unsupported equality row", r.Name)
	}
	tm := r.Terms[0]
	g := m.Groups[tm.Group]
	if tm.From != g.First || tm.To != g.Last {
		return fmt.Errorf("row %s: equality row must cover the whole group", r.Name)
	}
	if tm.Coef != 1 || tm.Slope != 0 {
		return fmt.Errorf("row %s: equality row coefficients must be 1", r.Name)
	}
	return nil
}

// stopEvery is how many row evaluations pass between calls to the stop
// function.
const stopEvery = 256

// propagator runs bound propagation to a fixpoint over the compiled rows.
// A run that stop cuts short reports a conflict; callers tell the two apart
// through the stop function's own state.
type propagator struct {
	rows         []row
	rowsByGroup  [][]int
	makespanRows []int
	queue        []int
	queued       []bool
	mins         []int
	stop         func() bool
	steps        int
}

func newPropagator(rows []row, groups int) *propagator {
	p := &propagator{
		rows:        rows,
		rowsByGroup: make([][]int, groups),
		queued:      make([]bool, len(rows)),
	}
	for ri, r := range rows {
		for _, t := range r.terms {
			p.rowsByGroup[t.group] = append(p.rowsByGroup[t.group], ri)
		}
		if r.makespan != 0 {
			p.makespanRows = append(p.makespanRows, ri)
		}
	}
	return p
}

func (p *propagator) push(ri int) {
	if !p.queued[ri] {
		p.queued[ri] = true
		p.queue = append(p.queue, ri)
	}
}

func (p *propagator) reset() {
	for _, ri := range p.queue {
		p.queued[ri] = false
	}
	p.queue = p.queue[:0]
}

// all propagates every row. Returns false on a conflict.
func (p *propagator) all(n *node) bool {
	for ri := range p.rows {
		p.push(ri)
	}
	return p.run(n)
}

// changed propagates the rows touching the given groups, plus the makespan
// rows if msChanged. Returns false on a conflict.
func (p *propagator) changed(n *node, groups []int, msChanged bool) bool {
	for _, g := range groups {
		for _, ri := range p.rowsByGroup[g] {
			p.push(ri)
		}
	}
	if msChanged {
		for _, ri := range p.makespanRows {
			p.push(ri)
		}
	}
	return p.run(n)
}

func (p *propagator) run(n *node) bool {
	for len(p.queue) > 0 {
		p.steps++
		if p.stop != nil && p.steps%stopEvery == 0 && p.stop() {
			p.reset()
			return false
		}
		ri := p.queue[0]
		p.queue = p.queue[1:]
		p.queued[ri] = false
		if !p.row(n, ri) {
			p.reset()
			return false
		}
	}
	p.queue = p.queue[:0]
	return true
}

// row tightens the domains against one <= row. With exactly one indicator
// per group set, a term's smallest contribution is the smallest coefficient
// over the values left in its group. Coefficients are affine inside a term's
// range, so only the extreme values in range and the presence of a value
// outside it matter.
func (p *propagator) row(n *node, ri int) bool {
	r := &p.rows[ri]
	if cap(p.mins) < len(r.terms) {
		p.mins = make([]int, len(r.terms))
	}
	mins := p.mins[:len(r.terms)]

	act := 0
	for k, t := range r.terms {
		lo, ok := termMin(n, t)
		if !ok {
			return false
		}
		mins[k] = lo
		act += lo
	}
	msPart := 0
	switch {
	case r.makespan > 0:
		msPart = r.makespan * n.msLo
	case r.makespan < 0:
		msPart = r.makespan * n.msHi
	}
	act += msPart
	if act > r.rhs {
		return false
	}

	for k, t := range r.terms {
		slack := r.rhs - (act - mins[k])
		if !prune(n, t, slack) {
			continue
		}
		if n.min(t.group) < 0 {
			return false
		}
		for _, other := range p.rowsByGroup[t.group] {
			if other != ri {
				p.push(other)
			}
		}
	}

	if r.makespan != 0 {
		rest := act - msPart
		msChanged := false
		if r.makespan < 0 {
			c := -r.makespan
			if lo := ceilDiv(rest-r.rhs, c); lo > n.msLo {
				n.msLo = lo
				msChanged = true
			}
		} else {
			if hi := floorDiv(r.rhs-rest, r.makespan); hi < n.msHi {
				n.msHi = hi
				msChanged = true
			}
		}
		if n.msLo > n.msHi {
			return false
		}
		if msChanged {
			for _, other := range p.makespanRows {
				if other != ri {
					p.push(other)
				}
			}
		}
	}
	return true
}

// termMin returns the smallest coefficient of t over the values left in its
// group. ok is false if the group is empty.
func termMin(n *node, t term) (int, bool) {
	lo, found := math.MaxInt, false
	if first := n.minIn(t.group, t.lo, t.hi); first >= 0 {
		last := n.maxIn(t.group, t.lo, t.hi)
		lo, found = min(t.at(first), t.at(last)), true
	}
	if n.outside(t.group, t.lo, t.hi) {
		lo, found = min(lo, 0), true
	}
	return lo, found
}

// prune removes the values of t's group whose coefficient exceeds slack and
// reports whether anything was removed.
func prune(n *node, t term, slack int) bool {
	removed := false
	if slack < 0 {
		removed = n.removeRange(t.group, 0, t.lo-1)
		removed = n.removeRange(t.group, t.hi+1, n.lay.size[t.group]-1) || removed
	}
	switch {
	case t.slope == 0:
		if t.coef > slack {
			removed = n.removeRange(t.group, t.lo, t.hi) || removed
		}
	case t.slope > 0:
		// coef + slope·(v−lo) > slack  <=>  v > lo + floor((slack−coef)/slope)
		cut := t.lo + floorDiv(slack-t.coef, t.slope)
		removed = n.removeRange(t.group, max(cut+1, t.lo), t.hi) || removed
	default:
		// coef − s·(v−lo) > slack  <=>  v < lo + ceil((coef−slack)/s)
		cut := t.lo + ceilDiv(t.coef-slack, -t.slope)
		removed = n.removeRange(t.group, t.lo, min(cut-1, t.hi)) || removed
	}
	return removed
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
