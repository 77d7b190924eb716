package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/internal/logging"
	"github.com/me/mise/pkg/model"
)

// Validator checks task lists against the configured action vocabulary and
// resolves each task's resource class.
type Validator struct {
	logger     *slog.Logger
	actions    map[model.ActionType]bool
	exclusive  map[model.ActionType]bool
	horizon    int
	maxHorizon int
}

// NewValidator creates a Validator for the actions named in cfg.
func NewValidator(cfg config.SolverConfig, logger *slog.Logger) *Validator {
	v := &Validator{
		logger:     logging.OrDiscard(logger).With("component", "registry"),
		actions:    make(map[model.ActionType]bool, len(cfg.Actions)),
		exclusive:  make(map[model.ActionType]bool, len(cfg.Exclusive)),
		horizon:    cfg.Horizon,
		maxHorizon: cfg.MaxHorizon,
	}
	for _, a := range cfg.Actions {
		v.actions[a] = true
	}
	for _, a := range cfg.Exclusive {
		v.exclusive[a] = true
	}
	return v
}

// Build validates tasks and returns the run's Registry.
// Returns a *model.ValidationError listing every problem found.
func (v *Validator) Build(tasks []model.Task) (*Registry, error) {
	if errs := v.Validate(tasks); len(errs) > 0 {
		v.logger.Debug("task list rejected", "tasks", len(tasks), "errors", len(errs))
		return nil, &model.ValidationError{Fields: errs}
	}

	classified := make([]model.Task, len(tasks))
	for i, t := range tasks {
		t.Class = v.Classify(t.Action)
		t.StartTime, t.EndTime = nil, nil
		classified[i] = t
	}
	r := Group(classified)
	v.logger.Debug("task list accepted", "tasks", r.Len(), "dishes", len(r.Dishes()))
	return r, nil
}

// Classify resolves the resource class of an action type.
func (v *Validator) Classify(a model.ActionType) model.ResourceClass {
	if v.exclusive[a] {
		return model.ResourceExclusive
	}
	return model.ResourceParallel
}

// Validate returns the field errors for tasks, or nil if the list is valid.
func (v *Validator) Validate(tasks []model.Task) []model.FieldError {
	if len(tasks) == 0 {
		return []model.FieldError{{Field: "tasks", Message: "task list is empty"}}
	}

	var errs []model.FieldError
	errs = append(errs, v.validateFields(tasks)...)
	errs = append(errs, v.validateKeys(tasks)...)
	errs = append(errs, v.validateSequences(tasks)...)
	errs = append(errs, v.validateHorizon(tasks)...)
	return errs
}

// validateHorizon rejects task lists whose default horizon, the sum of all
// durations, exceeds the configured maximum. Model size grows with the
// horizon, so this runs before any model is built.
func (v *Validator) validateHorizon(tasks []model.Task) []model.FieldError {
	if v.maxHorizon <= 0 || v.horizon > 0 {
		return nil
	}
	total := 0
	for _, t := range tasks {
		if t.Duration > 0 {
			total += t.Duration
		}
		if total > v.maxHorizon {
			return []model.FieldError{{
				Field:   "duration",
				Path:    "tasks",
				Message: fmt.Sprintf("total duration exceeds the maximum horizon of %d slots", v.maxHorizon),
			}}
		}
	}
	return nil
}

func (v *Validator) validateFields(tasks []model.Task) []model.FieldError {
	var errs []model.FieldError
	for i, t := range tasks {
		if strings.TrimSpace(t.Dish) == "" {
			errs = append(errs, model.FieldError{
				Field:   "name",
				Path:    fmt.Sprintf("tasks[%d].name", i),
				Message: "dish name is required",
			})
		}
		if !v.actions[t.Action] {
			errs = append(errs, model.FieldError{
				Field:   "task_type",
				Path:    fmt.Sprintf("tasks[%d].task_type", i),
				Message: fmt.Sprintf("unrecognized task_type %q; expected one of %s", t.Action, v.actionList()),
			})
		}
		if t.Duration <= 0 {
			errs = append(errs, model.FieldError{
				Field:   "duration",
				Path:    fmt.Sprintf("tasks[%d].duration", i),
				Message: fmt.Sprintf("duration must be positive, got %d", t.Duration),
			})
		}
		if t.Sequence <= 0 {
			errs = append(errs, model.FieldError{
				Field:   "sequence",
				Path:    fmt.Sprintf("tasks[%d].sequence", i),
				Message: fmt.Sprintf("sequence must be positive, got %d", t.Sequence),
			})
		}
	}
	return errs
}

func (v *Validator) validateKeys(tasks []model.Task) []model.FieldError {
	var errs []model.FieldError
	seen := make(map[model.TaskKey]int, len(tasks))
	for i, t := range tasks {
		if first, ok := seen[t.Key()]; ok {
			errs = append(errs, model.FieldError{
				Field:   "task_type",
				Path:    fmt.Sprintf("tasks[%d]", i),
				Message: fmt.Sprintf("duplicate task %q (first defined at tasks[%d])", t.Key(), first),
			})
			continue
		}
		seen[t.Key()] = i
	}
	return errs
}

func (v *Validator) validateSequences(tasks []model.Task) []model.FieldError {
	type dishSeq struct {
		dish string
		seq  int
	}
	var errs []model.FieldError
	seen := make(map[dishSeq]int, len(tasks))
	for i, t := range tasks {
		k := dishSeq{t.Dish, t.Sequence}
		if first, ok := seen[k]; ok {
			errs = append(errs, model.FieldError{
				Field:   "sequence",
				Path:    fmt.Sprintf("tasks[%d].sequence", i),
				Message: fmt.Sprintf("dish %q already has a task at sequence %d (tasks[%d])", t.Dish, t.Sequence, first),
			})
			continue
		}
		seen[k] = i
	}
	return errs
}

func (v *Validator) actionList() string {
	names := make([]string, 0, len(v.actions))
	for a := range v.actions {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
