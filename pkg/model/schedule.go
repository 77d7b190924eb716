package model

import (
	"sort"
	"time"
)

// Interval is the half-open occupancy [Start, End) of a scheduled task.
type Interval struct {
	Start int `json:"start_time"`
	End   int `json:"end_time"`
}

// Overlaps reports whether two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// SolveStats summarizes the search that produced a schedule.
type SolveStats struct {
	Nodes       int64         `json:"nodes"`
	Incumbents  int           `json:"incumbents"`
	Variables   int           `json:"variables"`
	Constraints int           `json:"constraints"`
	Duration    time.Duration `json:"duration_ns"`
	DurationStr string        `json:"duration"`
}

// Schedule is the immutable result of one scheduling run.
type Schedule struct {
	RunID    string               `json:"run_id"`
	Status   SolveStatus          `json:"status"`
	Makespan int                  `json:"makespan"`
	Horizon  int                  `json:"horizon"`
	Entries  map[TaskKey]Interval `json:"schedule"`
	Stats    SolveStats           `json:"stats"`
}

// Lookup returns the interval assigned to key.
func (s *Schedule) Lookup(key TaskKey) (Interval, bool) {
	iv, ok := s.Entries[key]
	return iv, ok
}

// ScheduledTask is a task with its assigned interval, used for ordered output.
type ScheduledTask struct {
	Key TaskKey
	Interval
}

// Ordered returns the entries sorted by start time, then by key.
func (s *Schedule) Ordered() []ScheduledTask {
	out := make([]ScheduledTask, 0, len(s.Entries))
	for k, iv := range s.Entries {
		out = append(out, ScheduledTask{Key: k, Interval: iv})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Apply fills StartTime/EndTime on copies of tasks from the schedule.
func (s *Schedule) Apply(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t
		if iv, ok := s.Entries[t.Key()]; ok {
			start, end := iv.Start, iv.End
			out[i].StartTime = &start
			out[i].EndTime = &end
		}
	}
	return out
}
