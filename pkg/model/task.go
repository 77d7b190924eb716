package model

import (
	"fmt"
	"strings"
)

// ActionType is the categorical label of a preparation task (chop, fry, ...).
type ActionType string

const (
	ActionChop  ActionType = "chop"
	ActionFry   ActionType = "fry"
	ActionWash  ActionType = "wash"
	ActionSteam ActionType = "steam"
)

// String returns the string representation of the action type.
func (a ActionType) String() string {
	return string(a)
}

// ResourceClass tells the model whether a task needs the shared exclusive
// resource. It is resolved once by the registry.
type ResourceClass int

const (
	// ResourceParallel tasks have unconstrained capacity.
	ResourceParallel ResourceClass = iota
	// ResourceExclusive tasks may never overlap another exclusive task.
	ResourceExclusive
)

// String returns the string representation of the resource class.
func (c ResourceClass) String() string {
	switch c {
	case ResourceExclusive:
		return "exclusive"
	case ResourceParallel:
		return "parallel"
	}
	return fmt.Sprintf("ResourceClass(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ResourceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Task is one atomic preparation step of a dish.
//
// JSON and YAML field names follow the intake format: name, task_type,
// duration, sequence.
type Task struct {
	Dish     string     `json:"name" yaml:"name"`
	Action   ActionType `json:"task_type" yaml:"task_type"`
	Duration int        `json:"duration" yaml:"duration"`
	Sequence int        `json:"sequence" yaml:"sequence"`

	// Class is set by the registry during validation.
	Class ResourceClass `json:"-" yaml:"-"`

	// StartTime and EndTime stay nil until the task has been scheduled. They
	// are ignored on input.
	StartTime *int `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime   *int `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// Key returns the task's identity within a run.
func (t Task) Key() TaskKey {
	return TaskKey{Dish: t.Dish, Action: t.Action}
}

// IsExclusive reports whether the task holds the exclusive resource.
func (t Task) IsExclusive() bool {
	return t.Class == ResourceExclusive
}

// TaskKey identifies a task by (dish, action). Its text form is
// "<dish>_<action>", which is what JSON object keys carry.
type TaskKey struct {
	Dish   string
	Action ActionType
}

// String returns "<dish>_<action>".
func (k TaskKey) String() string {
	return k.Dish + "_" + string(k.Action)
}

// MarshalText implements encoding.TextMarshaler so TaskKey can key JSON maps.
func (k TaskKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText splits on the last underscore; dish names may contain
// underscores, action types do not.
func (k *TaskKey) UnmarshalText(b []byte) error {
	s := string(b)
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return fmt.Errorf("invalid task key %q", s)
	}
	k.Dish = s[:i]
	k.Action = ActionType(s[i+1:])
	return nil
}
