// Package timeline discretizes the scheduling horizon into integer slots and
// derives the start window of every task.
package timeline

import (
	"fmt"

	"github.com/me/mise/internal/registry"
)

// Window is the inclusive range of start slots a task may use.
// Latest < Earliest means the task cannot fit in the horizon.
type Window struct {
	Earliest int
	Latest   int
}

// Empty reports whether the window admits no start slot.
func (w Window) Empty() bool {
	return w.Latest < w.Earliest
}

// Size returns the number of start slots in the window.
func (w Window) Size() int {
	if w.Empty() {
		return 0
	}
	return w.Latest - w.Earliest + 1
}

// Timeline is the discrete time axis of one run.
type Timeline struct {
	// Horizon is the number of slots, {0, ..., Horizon-1}.
	Horizon int
	// Heads[i] is the total duration of task i's dish predecessors.
	Heads []int
	// Tails[i] is the total duration of task i's dish successors.
	Tails []int

	durations []int
	windows   []Window
}

// New builds the timeline for reg. If horizon is zero the horizon is the sum
// of all durations, which always admits the fully serial schedule.
func New(reg *registry.Registry, horizon int) (*Timeline, error) {
	if horizon < 0 {
		return nil, fmt.Errorf("horizon must not be negative, got %d", horizon)
	}
	if horizon == 0 {
		horizon = reg.TotalDuration()
	}

	n := reg.Len()
	tl := &Timeline{
		Horizon:   horizon,
		Heads:     make([]int, n),
		Tails:     make([]int, n),
		durations: make([]int, n),
		windows:   make([]Window, n),
	}

	// Forward and backward pass along each precedence chain.
	for _, d := range reg.Dishes() {
		head := 0
		for _, i := range d.Tasks {
			tl.Heads[i] = head
			head += reg.Task(i).Duration
		}
		tail := 0
		for k := len(d.Tasks) - 1; k >= 0; k-- {
			i := d.Tasks[k]
			tl.Tails[i] = tail
			tail += reg.Task(i).Duration
		}
	}

	for i := 0; i < n; i++ {
		tl.durations[i] = reg.Task(i).Duration
		tl.windows[i] = Window{
			Earliest: tl.Heads[i],
			Latest:   horizon - tl.Tails[i] - tl.durations[i],
		}
	}
	return tl, nil
}

// Window returns the start window of task i.
func (tl *Timeline) Window(i int) Window {
	return tl.windows[i]
}

// ChainBound returns the length of the longest dish chain, a lower bound on
// any makespan.
func (tl *Timeline) ChainBound() int {
	best := 0
	for i := range tl.Heads {
		if l := tl.Heads[i] + tl.durations[i] + tl.Tails[i]; l > best {
			best = l
		}
	}
	return best
}
