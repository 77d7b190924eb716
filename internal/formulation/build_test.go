package formulation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/me/mise/internal/registry"
	"github.com/me/mise/internal/timeline"
	"github.com/me/mise/pkg/model"
)

func buildModel(t *testing.T, tasks []model.Task, horizon int) *Model {
	t.Helper()
	reg := registry.Group(tasks)
	tl, err := timeline.New(reg, horizon)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	m, err := Build(context.Background(), reg, tl)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

// eggRice returns egg_chop, egg_fry, rice_wash, rice_steam in that order.
func eggRice() []model.Task {
	return []model.Task{
		{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "egg", Action: model.ActionFry, Duration: 5, Sequence: 2, Class: model.ResourceExclusive},
		{Dish: "rice", Action: model.ActionWash, Duration: 2, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "rice", Action: model.ActionSteam, Duration: 20, Sequence: 2, Class: model.ResourceParallel},
	}
}

func TestBuild_Families(t *testing.T) {
	m := buildModel(t, eggRice(), 0)

	if m.Horizon != 32 || m.BigM != 32 {
		t.Errorf("Horizon/BigM = %d/%d, want 32/32", m.Horizon, m.BigM)
	}
	if len(m.Exclusive) != 3 {
		t.Errorf("Exclusive = %v, want 3 groups", m.Exclusive)
	}
	counts := m.FamilyCounts()
	if counts[FamilyStartOnce] != 4 {
		t.Errorf("start_once rows = %d, want 4", counts[FamilyStartOnce])
	}
	if counts[FamilySequence] != 2 {
		t.Errorf("sequence rows = %d, want 2", counts[FamilySequence])
	}
	if counts[FamilyMakespan] != 4 {
		t.Errorf("makespan rows = %d, want 4", counts[FamilyMakespan])
	}
	// egg_chop 23 + egg_fry 18 + rice_wash 11: egg_fry starts from 23 on
	// leave no room for another exclusive start and are omitted.
	if counts[FamilyExclusive] != 52 {
		t.Errorf("exclusive rows = %d, want 52", counts[FamilyExclusive])
	}
	// 23 + 23 + 11 + 11 start indicators plus the makespan.
	if m.Variables() != 69 {
		t.Errorf("Variables = %d, want 69", m.Variables())
	}
}

func TestBuild_SequenceRow(t *testing.T) {
	m := buildModel(t, eggRice(), 0)
	var row *Row
	for i := range m.Rows {
		if m.Rows[i].Name == "sequence_egg_chop_egg_fry" {
			row = &m.Rows[i]
		}
	}
	if row == nil {
		t.Fatal("sequence_egg_chop_egg_fry not found")
	}
	if got := row.Terms[0].At(3); got != 8 {
		t.Errorf("chop coefficient at t=3 = %d, want 8 (end time)", got)
	}
	if got := row.Terms[1].At(9); got != -9 {
		t.Errorf("fry coefficient at t=9 = %d, want -9", got)
	}
	if got := row.Terms[1].At(2); got != 0 {
		t.Errorf("fry coefficient outside its window = %d, want 0", got)
	}
}

func TestCheck_OptimalAssignment(t *testing.T) {
	m := buildModel(t, eggRice(), 0)
	// egg_chop [2,7), egg_fry [7,12), rice_wash [0,2), rice_steam [2,22).
	if err := m.Check([]int{2, 7, 0, 2}, 22); err != nil {
		t.Errorf("Check rejected a valid schedule: %v", err)
	}
}

func TestCheck_Violations(t *testing.T) {
	m := buildModel(t, eggRice(), 0)
	tests := []struct {
		name     string
		starts   []int
		makespan int
		family   string
	}{
		// rice_wash starts at 3 while egg_chop (started at 0) is still running.
		{"running overlap", []int{0, 7, 3, 5}, 25, "exclusive_"},
		{"simultaneous start", []int{0, 7, 0, 2}, 22, "exclusive_"},
		{"fry before chop ends", []int{2, 6, 0, 2}, 22, "sequence_egg_chop_egg_fry"},
		{"makespan too small", []int{2, 7, 0, 2}, 21, "makespan_rice_steam"},
		{"outside window", []int{2, 7, 0, 1}, 22, "outside window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Check(tt.starts, tt.makespan)
			if err == nil {
				t.Fatal("Check accepted an invalid assignment")
			}
			if !strings.Contains(err.Error(), tt.family) {
				t.Errorf("error %q does not mention %q", err, tt.family)
			}
		})
	}
}

func TestCheck_ParallelOverlapAllowed(t *testing.T) {
	m := buildModel(t, eggRice(), 0)
	// rice_steam [2,22) overlaps both egg tasks; only exclusive pairs matter.
	if err := m.Check([]int{2, 7, 0, 2}, 22); err != nil {
		t.Errorf("parallel overlap rejected: %v", err)
	}
}

func TestBuild_DuplicateSequenceIsContradictory(t *testing.T) {
	tasks := []model.Task{
		{Dish: "egg", Action: model.ActionChop, Duration: 2, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "egg", Action: model.ActionFry, Duration: 3, Sequence: 1, Class: model.ResourceExclusive},
	}
	m := buildModel(t, tasks, 0)
	if got := m.FamilyCounts()[FamilySequence]; got != 2 {
		t.Fatalf("sequence rows = %d, want both directions", got)
	}
	for a := m.Groups[0].First; a <= m.Groups[0].Last; a++ {
		for b := m.Groups[1].First; b <= m.Groups[1].Last; b++ {
			if m.Check([]int{a, b}, 5) == nil {
				t.Fatalf("assignment %d/%d satisfied a contradictory chain", a, b)
			}
		}
	}
}

func TestBuild_EmptyWindow(t *testing.T) {
	m := buildModel(t, eggRice(), 15)
	steam := m.Groups[3]
	if steam.Size() != 0 {
		t.Errorf("rice_steam group size = %d, want 0", steam.Size())
	}
}

func TestBuild_BigMCoversManyExclusiveTasks(t *testing.T) {
	var tasks []model.Task
	for _, dish := range []string{"a", "b", "c", "d", "e"} {
		tasks = append(tasks, model.Task{Dish: dish, Action: model.ActionChop, Duration: 1, Sequence: 1, Class: model.ResourceExclusive})
	}
	m := buildModel(t, tasks, 2)
	if m.BigM < len(m.Exclusive) {
		t.Errorf("BigM = %d, want >= %d", m.BigM, len(m.Exclusive))
	}
}

func TestWriteLP(t *testing.T) {
	m := buildModel(t, eggRice(), 0)
	var buf bytes.Buffer
	if err := m.WriteLP(&buf); err != nil {
		t.Fatalf("WriteLP: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Minimize\n obj: makespan",
		"Subject To",
		" start_once_rice_steam:",
		" exclusive_egg_chop_0:",
		"+ 32 start_egg_chop_0 <= 32",
		"- makespan <= 0",
		"Binaries",
		"start_rice_steam_12",
		"End\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("LP output missing %q", want)
		}
	}
}

func TestLPName(t *testing.T) {
	if got := lpName("fried rice_chop"); got != "fried.20.rice_chop" {
		t.Errorf("lpName = %q", got)
	}
	distinct := [][2]string{
		{"fried rice", "fried_rice"},
		{"炒饭", "汤面"},
		{"a.b", "a_b"},
	}
	for _, pair := range distinct {
		if lpName(pair[0]) == lpName(pair[1]) {
			t.Errorf("lpName(%q) and lpName(%q) collide: %q", pair[0], pair[1], lpName(pair[0]))
		}
	}
}

func TestBuild_ExclusiveRowsAreRanges(t *testing.T) {
	tasks := []model.Task{
		{Dish: "a", Action: model.ActionChop, Duration: 4000, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "b", Action: model.ActionChop, Duration: 4000, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "c", Action: model.ActionFry, Duration: 4000, Sequence: 1, Class: model.ResourceExclusive},
	}
	m := buildModel(t, tasks, 0)
	for _, r := range m.Rows {
		if r.Family != FamilyExclusive {
			continue
		}
		for _, tm := range r.Terms {
			if tm.Slope != 0 || tm.To < tm.From {
				t.Fatalf("row %s: term %+v is not a constant range", r.Name, tm)
			}
		}
	}
	var row *Row
	for i := range m.Rows {
		if m.Rows[i].Name == "exclusive_a_chop_100" {
			row = &m.Rows[i]
		}
	}
	if row == nil {
		t.Fatal("exclusive_a_chop_100 not found")
	}
	if got := row.Terms[0].To - row.Terms[0].From + 1; got != 4000 {
		t.Errorf("window of b_chop inside a_chop's row spans %d slots, want 4000", got)
	}
}

func TestBuild_StopsWhenContextDone(t *testing.T) {
	tasks := []model.Task{
		{Dish: "a", Action: model.ActionChop, Duration: 2000, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "b", Action: model.ActionChop, Duration: 2000, Sequence: 1, Class: model.ResourceExclusive},
	}
	reg := registry.Group(tasks)
	tl, err := timeline.New(reg, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, reg, tl); !errors.Is(err, context.Canceled) {
		t.Errorf("Build error = %v, want context.Canceled", err)
	}
}
