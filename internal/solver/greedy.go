package solver

import "github.com/me/mise/internal/formulation"

// greedy builds a list schedule: it repeatedly starts the task whose dish
// predecessors are done and which can start earliest, exclusive tasks waiting
// for the shared resource. Ties follow the branching order. It returns nil
// when some task cannot be placed inside its window.
func greedy(m *formulation.Model) []int {
	n := len(m.Groups)
	preds := make([][]int, n)
	for _, r := range m.Rows {
		if r.Family == formulation.FamilySequence && len(r.Terms) == 2 {
			a, b := r.Terms[0].Group, r.Terms[1].Group
			preds[b] = append(preds[b], a)
		}
	}

	starts := make([]int, n)
	for g := range starts {
		starts[g] = -1
	}
	free := 0
	for placed := 0; placed < n; placed++ {
		best, bestStart := -1, 0
		for g, grp := range m.Groups {
			if starts[g] >= 0 {
				continue
			}
			ready, ok := grp.First, true
			for _, p := range preds[g] {
				if starts[p] < 0 {
					ok = false
					break
				}
				ready = max(ready, starts[p]+m.Groups[p].Duration)
			}
			if !ok {
				continue
			}
			if grp.Exclusive {
				ready = max(ready, free)
			}
			if best < 0 || ready < bestStart || (ready == bestStart && better(grp, m.Groups[best])) {
				best, bestStart = g, ready
			}
		}
		if best < 0 || bestStart > m.Groups[best].Last {
			return nil
		}
		starts[best] = bestStart
		if m.Groups[best].Exclusive {
			free = bestStart + m.Groups[best].Duration
		}
	}
	return starts
}
