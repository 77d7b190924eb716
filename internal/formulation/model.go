// Package formulation encodes a task registry as a time-indexed 0-1 model:
// one binary start indicator per (task, slot), linear rows over those
// indicators, and an integer makespan variable to minimize.
package formulation

import (
	"fmt"

	"github.com/me/mise/pkg/model"
)

// Family groups rows by the constraint they encode.
type Family string

const (
	FamilyStartOnce Family = "start_once"
	FamilySequence  Family = "sequence"
	FamilyExclusive Family = "exclusive"
	FamilyMakespan  Family = "makespan"
)

// Sense is the comparison of a row against its right-hand side.
type Sense int

const (
	LessEqual Sense = iota
	Equal
)

func (s Sense) String() string {
	if s == Equal {
		return "="
	}
	return "<="
}

// Group is the set of start indicators of one task: start[task, t] for
// t in [First, Last]. Exactly one of them is 1.
type Group struct {
	Task      int // registry index
	Key       model.TaskKey
	Duration  int
	First     int
	Last      int
	Exclusive bool
	// Tail is the total duration of the task's dish successors.
	Tail int
}

// Size returns the number of indicators in the group.
func (g Group) Size() int {
	if g.Last < g.First {
		return 0
	}
	return g.Last - g.First + 1
}

// Term holds the coefficients of one group inside a row. Slot t in
// [From, To] has coefficient Coef + Slope·(t−From); every other slot has
// coefficient 0.
type Term struct {
	Group int
	From  int
	To    int
	Coef  int
	Slope int
}

// At returns the coefficient of start[group, t].
func (tm Term) At(t int) int {
	if t < tm.From || t > tm.To {
		return 0
	}
	return tm.Coef + tm.Slope*(t-tm.From)
}

// Row is one linear constraint:
//
//	Σ_terms Σ_t coef·start[g,t] + Makespan·makespan  (<= | =)  RHS
type Row struct {
	Name     string
	Family   Family
	Terms    []Term
	Makespan int
	Sense    Sense
	RHS      int
}

// Activity evaluates the left-hand side for a complete assignment.
func (r Row) Activity(starts []int, makespan int) int {
	sum := r.Makespan * makespan
	for _, tm := range r.Terms {
		sum += tm.At(starts[tm.Group])
	}
	return sum
}

// Satisfied reports whether the assignment meets the row.
func (r Row) Satisfied(starts []int, makespan int) bool {
	act := r.Activity(starts, makespan)
	if r.Sense == Equal {
		return act == r.RHS
	}
	return act <= r.RHS
}

// Model is a complete scheduling model. The objective is always to minimize
// the makespan variable.
type Model struct {
	Name    string
	Horizon int
	BigM    int
	Groups  []Group
	Rows    []Row
	// Exclusive lists the groups that share the exclusive resource.
	Exclusive []int
}

// Variables returns the number of decision variables, makespan included.
func (m *Model) Variables() int {
	n := 1
	for _, g := range m.Groups {
		n += g.Size()
	}
	return n
}

// FamilyCounts returns the number of rows per family.
func (m *Model) FamilyCounts() map[Family]int {
	out := make(map[Family]int, 4)
	for _, r := range m.Rows {
		out[r.Family]++
	}
	return out
}

// Check verifies a complete assignment against every row and against the
// group windows. starts[g] is the chosen slot of group g.
func (m *Model) Check(starts []int, makespan int) error {
	if len(starts) != len(m.Groups) {
		return fmt.Errorf("assignment has %d starts, model has %d groups", len(starts), len(m.Groups))
	}
	for gi, g := range m.Groups {
		if starts[gi] < g.First || starts[gi] > g.Last {
			return fmt.Errorf("start %d of %s outside window [%d, %d]", starts[gi], g.Key, g.First, g.Last)
		}
	}
	for _, r := range m.Rows {
		if !r.Satisfied(starts, makespan) {
			return fmt.Errorf("row %s violated: activity %d %s %d",
				r.Name, r.Activity(starts, makespan), r.Sense, r.RHS)
		}
	}
	return nil
}
