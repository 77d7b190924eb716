package timeline

import (
	"testing"

	"github.com/me/mise/internal/registry"
	"github.com/me/mise/pkg/model"
)

func eggRice() *registry.Registry {
	return registry.Group([]model.Task{
		{Dish: "egg", Action: model.ActionChop, Duration: 5, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "egg", Action: model.ActionFry, Duration: 5, Sequence: 2, Class: model.ResourceExclusive},
		{Dish: "rice", Action: model.ActionWash, Duration: 2, Sequence: 1, Class: model.ResourceExclusive},
		{Dish: "rice", Action: model.ActionSteam, Duration: 20, Sequence: 2},
	})
}

func TestNew_SumOfDurations(t *testing.T) {
	tl, err := New(eggRice(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tl.Horizon != 32 {
		t.Errorf("Horizon = %d, want 32", tl.Horizon)
	}
}

func TestNew_Windows(t *testing.T) {
	tl, err := New(eggRice(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		task int
		want Window
	}{
		{0, Window{Earliest: 0, Latest: 22}}, // egg_chop: tail 5
		{1, Window{Earliest: 5, Latest: 27}}, // egg_fry: head 5
		{2, Window{Earliest: 0, Latest: 10}}, // rice_wash: tail 20
		{3, Window{Earliest: 2, Latest: 12}}, // rice_steam: head 2
	}
	for _, tt := range tests {
		if got := tl.Window(tt.task); got != tt.want {
			t.Errorf("Window(%d) = %+v, want %+v", tt.task, got, tt.want)
		}
	}
	if tl.ChainBound() != 22 {
		t.Errorf("ChainBound = %d, want 22", tl.ChainBound())
	}
}

func TestNew_TooSmallHorizon(t *testing.T) {
	tl, err := New(eggRice(), 15)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := tl.Window(3)
	if !w.Empty() || w.Size() != 0 {
		t.Errorf("rice_steam window = %+v, want empty in a 15-slot horizon", w)
	}
	if tl.Window(0).Size() != 6 {
		t.Errorf("egg_chop window size = %d, want 6", tl.Window(0).Size())
	}
}

func TestNew_NegativeHorizon(t *testing.T) {
	if _, err := New(eggRice(), -1); err == nil {
		t.Error("expected error for negative horizon")
	}
}
