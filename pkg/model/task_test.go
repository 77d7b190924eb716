package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTaskKey_String(t *testing.T) {
	k := Task{Dish: "chicken_broccoli", Action: ActionFry}.Key()
	if got := k.String(); got != "chicken_broccoli_fry" {
		t.Errorf("String() = %q, want chicken_broccoli_fry", got)
	}
}

func TestTaskKey_UnmarshalText(t *testing.T) {
	var k TaskKey
	if err := k.UnmarshalText([]byte("chicken_broccoli_fry")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if k.Dish != "chicken_broccoli" || k.Action != ActionFry {
		t.Errorf("got %+v", k)
	}
	for _, bad := range []string{"nounderscore", "_fry", "egg_"} {
		if err := k.UnmarshalText([]byte(bad)); err == nil {
			t.Errorf("UnmarshalText(%q) should fail", bad)
		}
	}
}

func TestTask_JSONFieldNames(t *testing.T) {
	var task Task
	body := `{"name":"rice","task_type":"steam","duration":20,"sequence":2}`
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if task.Dish != "rice" || task.Action != ActionSteam || task.Duration != 20 || task.Sequence != 2 {
		t.Errorf("decoded %+v", task)
	}
	out, _ := json.Marshal(task)
	if strings.Contains(string(out), "start_time") {
		t.Errorf("unscheduled task should omit start_time: %s", out)
	}
}

func TestResourceClass_String(t *testing.T) {
	if ResourceExclusive.String() != "exclusive" || ResourceParallel.String() != "parallel" {
		t.Error("unexpected resource class names")
	}
}

func TestInterval_Overlaps(t *testing.T) {
	tests := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 5}, Interval{5, 10}, false},
		{Interval{0, 5}, Interval{4, 10}, true},
		{Interval{2, 3}, Interval{0, 10}, true},
		{Interval{7, 9}, Interval{0, 7}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSchedule_OrderedAndApply(t *testing.T) {
	s := &Schedule{Entries: map[TaskKey]Interval{
		{Dish: "egg", Action: ActionFry}:  {7, 12},
		{Dish: "rice", Action: ActionWash}: {0, 2},
		{Dish: "egg", Action: ActionChop}: {2, 7},
	}}
	ordered := s.Ordered()
	if len(ordered) != 3 || ordered[0].Key.String() != "rice_wash" || ordered[2].Key.String() != "egg_fry" {
		t.Errorf("Ordered() = %+v", ordered)
	}

	tasks := s.Apply([]Task{{Dish: "egg", Action: ActionChop, Duration: 5}, {Dish: "tofu", Action: ActionChop}})
	if tasks[0].StartTime == nil || *tasks[0].StartTime != 2 || *tasks[0].EndTime != 7 {
		t.Errorf("Apply() did not set egg_chop times: %+v", tasks[0])
	}
	if tasks[1].StartTime != nil {
		t.Error("Apply() set times on an unscheduled task")
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"rice_wash":{"start_time":0,"end_time":2}`) {
		t.Errorf("schedule JSON = %s", data)
	}
}
