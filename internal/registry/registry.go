// Package registry validates the task list of one scheduling run and groups
// it into per-dish precedence chains.
package registry

import (
	"sort"

	"github.com/me/mise/pkg/model"
)

// Dish is one precedence chain: registry indices ordered by
// sequence index.
type Dish struct {
	Name  string
	Tasks []int
}

// Registry is the immutable task collection of a single run.
type Registry struct {
	tasks  []model.Task
	dishes []Dish
	index  map[model.TaskKey]int
}

// Group builds a Registry without validating it. Tasks must already carry
// their resource class. Dishes keep first-appearance order; tasks within a
// dish are sorted by sequence index, ties by input order.
func Group(tasks []model.Task) *Registry {
	r := &Registry{
		tasks: append([]model.Task(nil), tasks...),
		index: make(map[model.TaskKey]int, len(tasks)),
	}
	byDish := make(map[string]int)
	for i, t := range r.tasks {
		r.index[t.Key()] = i
		di, ok := byDish[t.Dish]
		if !ok {
			di = len(r.dishes)
			byDish[t.Dish] = di
			r.dishes = append(r.dishes, Dish{Name: t.Dish})
		}
		r.dishes[di].Tasks = append(r.dishes[di].Tasks, i)
	}
	for _, d := range r.dishes {
		sort.SliceStable(d.Tasks, func(a, b int) bool {
			return r.tasks[d.Tasks[a]].Sequence < r.tasks[d.Tasks[b]].Sequence
		})
	}
	return r
}

// Len returns the number of tasks.
func (r *Registry) Len() int { return len(r.tasks) }

// Task returns the i-th task in input order.
func (r *Registry) Task(i int) model.Task { return r.tasks[i] }

// Dishes returns the precedence chains.
func (r *Registry) Dishes() []Dish { return r.dishes }

// Lookup returns the index of the task with the given key.
func (r *Registry) Lookup(key model.TaskKey) (int, bool) {
	i, ok := r.index[key]
	return i, ok
}

// Exclusive returns the indices of exclusive-class tasks in input order.
func (r *Registry) Exclusive() []int {
	var out []int
	for i, t := range r.tasks {
		if t.IsExclusive() {
			out = append(out, i)
		}
	}
	return out
}

// TotalDuration returns the sum of all task durations.
func (r *Registry) TotalDuration() int {
	total := 0
	for _, t := range r.tasks {
		total += t.Duration
	}
	return total
}
