package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/me/mise/internal/config"
	"github.com/me/mise/pkg/model"
)

func testValidator() *Validator {
	return NewValidator(config.DefaultSolverConfig(), nil)
}

func eggRice() []model.Task {
	return []model.Task{
		{Dish: "egg", Action: model.ActionFry, Duration: 5, Sequence: 2},
		{Dish: "rice", Action: model.ActionWash, Duration: 2, Sequence: 1},
		{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
		{Dish: "rice", Action: model.ActionSteam, Duration: 20, Sequence: 2},
	}
}

func TestBuild_GroupsAndClassifies(t *testing.T) {
	reg, err := testValidator().Build(eggRice())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("Len = %d, want 4", reg.Len())
	}

	dishes := reg.Dishes()
	if len(dishes) != 2 || dishes[0].Name != "egg" || dishes[1].Name != "rice" {
		t.Fatalf("dishes = %+v, want [egg rice] in first-appearance order", dishes)
	}
	egg := dishes[0].Tasks
	if reg.Task(egg[0]).Action != model.ActionChop || reg.Task(egg[1]).Action != model.ActionFry {
		t.Errorf("egg chain = %v, want chop then fry", egg)
	}

	steam, ok := reg.Lookup(model.TaskKey{Dish: "rice", Action: model.ActionSteam})
	if !ok {
		t.Fatal("rice_steam not found")
	}
	if reg.Task(steam).Class != model.ResourceParallel {
		t.Errorf("steam class = %v, want parallel", reg.Task(steam).Class)
	}
	if got := len(reg.Exclusive()); got != 3 {
		t.Errorf("exclusive tasks = %d, want 3", got)
	}
	if reg.TotalDuration() != 32 {
		t.Errorf("TotalDuration = %d, want 32", reg.TotalDuration())
	}
}

func TestBuild_ClearsPreviousTimes(t *testing.T) {
	start, end := 3, 8
	tasks := []model.Task{{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1, StartTime: &start, EndTime: &end}}
	reg, err := testValidator().Build(tasks)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Task(0).StartTime != nil || reg.Task(0).EndTime != nil {
		t.Error("registry kept stale start/end times")
	}
	if tasks[0].StartTime == nil {
		t.Error("Build mutated the caller's slice")
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []model.Task
		wantMsg string
	}{
		{"empty", nil, "task list is empty"},
		{"unknown action", []model.Task{{Dish: "egg", Action: "boil", Duration: 5, Sequence: 1}}, `unrecognized task_type "boil"`},
		{"zero duration", []model.Task{{Dish: "egg", Action: model.ActionChop, Duration: 0, Sequence: 1}}, "duration must be positive"},
		{"negative duration", []model.Task{{Dish: "egg", Action: model.ActionChop, Duration: -3, Sequence: 1}}, "duration must be positive"},
		{"zero sequence", []model.Task{{Dish: "egg", Action: model.ActionChop, Duration: 1, Sequence: 0}}, "sequence must be positive"},
		{"blank dish", []model.Task{{Dish: " ", Action: model.ActionChop, Duration: 1, Sequence: 1}}, "dish name is required"},
		{"duplicate key", []model.Task{
			{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
			{Dish: "egg", Action: model.ActionChop, Duration: 3, Sequence: 2},
		}, `duplicate task "egg_chop"`},
		{"duplicate sequence", []model.Task{
			{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
			{Dish: "egg", Action: model.ActionFry, Duration: 5, Sequence: 1},
		}, "already has a task at sequence 1"},
		{"total duration above max horizon", []model.Task{
			{Dish: "a", Action: model.ActionChop, Duration: 1000, Sequence: 1},
			{Dish: "b", Action: model.ActionChop, Duration: 1000, Sequence: 1},
		}, "exceeds the maximum horizon of 1440 slots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testValidator().Build(tt.tasks)
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *model.ValidationError", err)
			}
			if !strings.Contains(verr.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", verr.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	errs := testValidator().Validate([]model.Task{
		{Dish: "egg", Action: "boil", Duration: 0, Sequence: 1},
		{Dish: "rice", Action: model.ActionWash, Duration: -1, Sequence: 1},
	})
	if len(errs) != 3 {
		t.Fatalf("errors = %d, want 3: %+v", len(errs), errs)
	}
	if errs[0].Path != "tasks[0].task_type" {
		t.Errorf("first error path = %q, want tasks[0].task_type", errs[0].Path)
	}
}

func TestValidate_SameSequenceAcrossDishes(t *testing.T) {
	errs := testValidator().Validate([]model.Task{
		{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
		{Dish: "tofu", Action: model.ActionChop, Duration: 5, Sequence: 1},
	})
	if len(errs) != 0 {
		t.Errorf("sequence indices are per dish, got errors %+v", errs)
	}
}

func TestClassify_CustomExclusiveSet(t *testing.T) {
	cfg := config.DefaultSolverConfig().WithExclusive([]model.ActionType{model.ActionSteam})
	v := NewValidator(cfg, nil)
	if v.Classify(model.ActionSteam) != model.ResourceExclusive {
		t.Error("steam should be exclusive under the custom set")
	}
	if v.Classify(model.ActionChop) != model.ResourceParallel {
		t.Error("chop should be parallel under the custom set")
	}
}

func TestGroup_TiesKeepInputOrder(t *testing.T) {
	reg := Group([]model.Task{
		{Dish: "egg", Action: model.ActionFry, Duration: 5, Sequence: 1},
		{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
	})
	chain := reg.Dishes()[0].Tasks
	if chain[0] != 0 || chain[1] != 1 {
		t.Errorf("chain = %v, want [0 1]", chain)
	}
}

func TestValidate_MaxHorizon(t *testing.T) {
	big := []model.Task{
		{Dish: "a", Action: model.ActionChop, Duration: 4000, Sequence: 1},
		{Dish: "b", Action: model.ActionChop, Duration: 4000, Sequence: 1},
		{Dish: "c", Action: model.ActionFry, Duration: 4000, Sequence: 1},
	}

	cfg := config.DefaultSolverConfig()
	cfg.MaxHorizon = 0
	if errs := NewValidator(cfg, nil).Validate(big); len(errs) != 0 {
		t.Errorf("max_horizon 0 should not limit the horizon, got %+v", errs)
	}

	// An explicit horizon replaces the sum of durations.
	cfg = config.DefaultSolverConfig()
	cfg.Horizon = 100
	if errs := NewValidator(cfg, nil).Validate(big); len(errs) != 0 {
		t.Errorf("horizon override should skip the duration sum, got %+v", errs)
	}
}
