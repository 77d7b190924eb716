// Package tasksfile reads task lists from YAML or JSON files.
//
// A file is either a bare list of tasks or a document with a tasks key and
// optional solver overrides:
//
//	exclusive: [chop, fry, wash]
//	time_limit: 10s
//	tasks:
//	  - {name: rice, task_type: wash, duration: 2, sequence: 1}
//	  - {name: rice, task_type: steam, duration: 20, sequence: 2}
package tasksfile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/mise/pkg/model"
)

// File is a parsed task file.
type File struct {
	Exclusive []model.ActionType `yaml:"exclusive,omitempty"`
	TimeLimit string             `yaml:"time_limit,omitempty"`
	Tasks     []model.Task       `yaml:"tasks"`
}

// Request converts the file into an API schedule request.
func (f *File) Request() model.ScheduleRequest {
	return model.ScheduleRequest{
		Tasks:     f.Tasks,
		Exclusive: f.Exclusive,
		TimeLimit: f.TimeLimit,
	}
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML or JSON task data. JSON is accepted as a YAML subset.
func Parse(data []byte) (*File, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("parse tasks: empty document")
	}

	root := node.Content[0]
	f := &File{}
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&f.Tasks); err != nil {
			return nil, fmt.Errorf("parse tasks: %w", err)
		}
	case yaml.MappingNode:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("parse tasks: %w", err)
		}
	default:
		return nil, fmt.Errorf("parse tasks: expected a list of tasks or a mapping with a tasks key")
	}
	return f, nil
}

// Marshal renders f as YAML.
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

// Demo returns the four-dish menu: rice, tomato egg, tofu and chicken
// broccoli.
func Demo() *File {
	return &File{Tasks: []model.Task{
		{Dish: "rice", Action: model.ActionWash, Duration: 2, Sequence: 1},
		{Dish: "rice", Action: model.ActionSteam, Duration: 20, Sequence: 2},
		{Dish: "tomato_egg", Action: model.ActionChop, Duration: 5, Sequence: 1},
		{Dish: "tomato_egg", Action: model.ActionFry, Duration: 5, Sequence: 2},
		{Dish: "tofu", Action: model.ActionChop, Duration: 5, Sequence: 1},
		{Dish: "tofu", Action: model.ActionFry, Duration: 10, Sequence: 2},
		{Dish: "chicken_broccoli", Action: model.ActionChop, Duration: 10, Sequence: 1},
		{Dish: "chicken_broccoli", Action: model.ActionFry, Duration: 10, Sequence: 2},
	}}
}
