package tasksfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/mise/pkg/model"
)

func TestParse_Document(t *testing.T) {
	data := []byte(`
exclusive: [chop, fry]
time_limit: 5s
tasks:
  - name: rice
    task_type: wash
    duration: 2
    sequence: 1
  - {name: rice, task_type: steam, duration: 20, sequence: 2}
`)
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Tasks) != 2 || len(f.Exclusive) != 2 || f.TimeLimit != "5s" {
		t.Fatalf("file = %+v", f)
	}
	want := model.Task{Dish: "rice", Action: model.ActionSteam, Duration: 20, Sequence: 2}
	if f.Tasks[1].Key() != want.Key() || f.Tasks[1].Duration != 20 || f.Tasks[1].Sequence != 2 {
		t.Errorf("Tasks[1] = %+v", f.Tasks[1])
	}
}

func TestParse_BareListJSON(t *testing.T) {
	data := []byte(`[{"name":"egg","task_type":"chop","duration":5,"sequence":1}]`)
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Tasks) != 1 || f.Tasks[0].Action != model.ActionChop {
		t.Errorf("file = %+v", f)
	}
	if f.Exclusive != nil {
		t.Errorf("Exclusive = %v, want nil for a bare list", f.Exclusive)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"scalar", "rice"},
		{"unknown key", "tasks: []\nhorizon: 10\n"},
		{"bad duration", "- {name: rice, task_type: wash, duration: long, sequence: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	out, err := Marshal(Demo())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Tasks) != 8 {
		t.Errorf("loaded %d tasks, want 8", len(f.Tasks))
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read task file") {
		t.Errorf("err = %v, want read error", err)
	}
}

func TestRequest(t *testing.T) {
	f := Demo()
	f.Exclusive = []model.ActionType{model.ActionFry}
	req := f.Request()
	if len(req.Tasks) != 8 || len(req.Exclusive) != 1 {
		t.Errorf("request = %+v", req)
	}
}
