package formulation

import (
	"context"
	"fmt"

	"github.com/me/mise/internal/registry"
	"github.com/me/mise/internal/timeline"
)

// Build encodes reg over tl. Families:
//
//   - start_once: every task starts exactly once.
//   - sequence: consecutive tasks of a dish do not overlap and keep order.
//     Tasks sharing a sequence index must each precede the other, which no
//     assignment satisfies.
//   - exclusive: if exclusive task a starts at t, no other exclusive task
//     starts in [t, t+dur_a). Two intervals intersect exactly when one starts
//     inside the other, so the rows of both tasks together forbid overlap.
//   - makespan: makespan >= end of every task.
//
// Contiguous occupancy is implied: a task is placed by its start indicator
// alone and occupies [t, t+dur) by construction.
//
// The exclusive family grows with the square of the exclusive task count
// times the horizon, so Build stops with ctx.Err() once ctx is done.
func Build(ctx context.Context, reg *registry.Registry, tl *timeline.Timeline) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := &Model{
		Name:    "mise_kitchen",
		Horizon: tl.Horizon,
		Groups:  make([]Group, reg.Len()),
	}

	for i := 0; i < reg.Len(); i++ {
		t := reg.Task(i)
		w := tl.Window(i)
		m.Groups[i] = Group{
			Task:      i,
			Key:       t.Key(),
			Duration:  t.Duration,
			First:     w.Earliest,
			Last:      w.Latest,
			Exclusive: t.IsExclusive(),
			Tail:      tl.Tails[i],
		}
		if t.IsExclusive() {
			m.Exclusive = append(m.Exclusive, i)
		}
	}

	// M must exceed the number of other exclusive starts a window can hold.
	m.BigM = max(tl.Horizon, len(m.Exclusive))

	m.addStartOnce()
	m.addSequence(reg)
	if err := m.addExclusive(ctx); err != nil {
		return nil, err
	}
	m.addMakespan()
	return m, nil
}

func (m *Model) addStartOnce() {
	for gi, g := range m.Groups {
		m.Rows = append(m.Rows, Row{
			Name:   "start_once_" + g.Key.String(),
			Family: FamilyStartOnce,
			Terms:  []Term{{Group: gi, From: g.First, To: g.Last, Coef: 1}},
			Sense:  Equal,
			RHS:    1,
		})
	}
}

func (m *Model) addSequence(reg *registry.Registry) {
	for _, d := range reg.Dishes() {
		for k := 0; k+1 < len(d.Tasks); k++ {
			a, b := d.Tasks[k], d.Tasks[k+1]
			m.addPrecedence(a, b)
			if reg.Task(a).Sequence == reg.Task(b).Sequence {
				m.addPrecedence(b, a)
			}
		}
	}
}

// addPrecedence emits end(a) <= start(b):
// Σ (t+dur_a)·start[a,t] − Σ t·start[b,t] <= 0.
func (m *Model) addPrecedence(a, b int) {
	ga, gb := m.Groups[a], m.Groups[b]
	m.Rows = append(m.Rows, Row{
		Name:   fmt.Sprintf("sequence_%s_%s", ga.Key, gb.Key),
		Family: FamilySequence,
		Terms: []Term{
			{Group: a, From: ga.First, To: ga.Last, Coef: ga.First + ga.Duration, Slope: 1},
			{Group: b, From: gb.First, To: gb.Last, Coef: -gb.First, Slope: -1},
		},
		Sense: LessEqual,
		RHS:   0,
	})
}

// checkRows is how many exclusive rows are emitted between context checks.
const checkRows = 1024

// addExclusive emits, for every exclusive task a and start slot t:
// Σ_{b≠a} Σ_{t'∈[t,t+dur_a)} start[b,t'] + M·start[a,t] <= M.
// Rows where no other task can start inside the window are omitted.
func (m *Model) addExclusive(ctx context.Context) error {
	emitted := 0
	for _, a := range m.Exclusive {
		ga := m.Groups[a]
		for t := ga.First; t <= ga.Last; t++ {
			var terms []Term
			for _, b := range m.Exclusive {
				if b == a {
					continue
				}
				gb := m.Groups[b]
				lo, hi := max(t, gb.First), min(t+ga.Duration-1, gb.Last)
				if lo > hi {
					continue
				}
				terms = append(terms, Term{Group: b, From: lo, To: hi, Coef: 1})
			}
			if len(terms) == 0 {
				continue
			}
			terms = append(terms, Term{Group: a, From: t, To: t, Coef: m.BigM})
			m.Rows = append(m.Rows, Row{
				Name:   fmt.Sprintf("exclusive_%s_%d", ga.Key, t),
				Family: FamilyExclusive,
				Terms:  terms,
				Sense:  LessEqual,
				RHS:    m.BigM,
			})
			emitted++
			if emitted%checkRows == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addMakespan emits Σ (t+dur)·start[task,t] − makespan <= 0 for every task.
func (m *Model) addMakespan() {
	for gi, g := range m.Groups {
		m.Rows = append(m.Rows, Row{
			Name:     "makespan_" + g.Key.String(),
			Family:   FamilyMakespan,
			Terms:    []Term{{Group: gi, From: g.First, To: g.Last, Coef: g.First + g.Duration, Slope: 1}},
			Makespan: -1,
			Sense:    LessEqual,
			RHS:      0,
		})
	}
}
