// Package scenario declares atoms and scripted writes in YAML and runs
// them against a registry.
//
//	name: counter
//	atoms:
//	  - name: count
//	    value: 0
//	    key: count            # included in snapshots
//	  - name: doubled
//	    expr: count * 2
//	    deps: [count]
//	  - name: profile
//	    async:
//	      expr: '"user-" + string(count)'
//	      deps: [count]
//	      delay: 50ms
//	watch: [count, doubled, profile]
//	steps:
//	  - set: {atom: count, value: 5}
//	  - update: {atom: count, expr: prev + 1}
//	  - wait: profile
//	  - refresh: doubled
//	  - sleep: 10ms
//
// Expressions use expr-lang syntax. A derived or async expression sees its
// deps by name; an update expression sees the current value as prev.
package scenario

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/atom/internal/config"
	"github.com/vango-dev/atom/internal/errors"
)

// File is a parsed scenario file.
type File struct {
	Name  string     `yaml:"name"`
	Atoms []AtomSpec `yaml:"atoms"`
	Watch []string   `yaml:"watch"`
	Steps []Step     `yaml:"steps"`

	path string
}

// Path returns the file the scenario was loaded from, if any.
func (f *File) Path() string {
	return f.path
}

// AtomSpec declares one atom. Exactly one of Value, Expr and Async is set.
type AtomSpec struct {
	Name  string     `yaml:"name"`
	Value any        `yaml:"value"`
	Expr  string     `yaml:"expr"`
	Deps  []string   `yaml:"deps"`
	Async *AsyncSpec `yaml:"async"`

	// Key includes a state atom in snapshots.
	Key       string `yaml:"key"`
	KeepAlive bool   `yaml:"keepAlive"`

	// HasValue reports whether value was present, even as null.
	HasValue bool `yaml:"-"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// UnmarshalYAML implements yaml.Unmarshaler for AtomSpec.
func (a *AtomSpec) UnmarshalYAML(node *yaml.Node) error {
	type raw AtomSpec
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*a = AtomSpec(r)
	a.Line, a.Column = node.Line, node.Column

	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "value" {
				a.HasValue = true
			}
		}
	}
	return nil
}

// AsyncSpec declares an atom evaluated off the caller's goroutine.
type AsyncSpec struct {
	Expr  string          `yaml:"expr"`
	Deps  []string        `yaml:"deps"`
	Delay config.Duration `yaml:"delay"`

	// Fail makes every evaluation fail with this message.
	Fail string `yaml:"fail"`
}

// Step is one scripted action. Exactly one field is set.
type Step struct {
	Set     *SetStep         `yaml:"set"`
	Update  *UpdateStep      `yaml:"update"`
	Refresh string           `yaml:"refresh"`
	Wait    string           `yaml:"wait"`
	Sleep   *config.Duration `yaml:"sleep"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// UnmarshalYAML implements yaml.Unmarshaler for Step.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	type raw Step
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*s = Step(r)
	s.Line, s.Column = node.Line, node.Column
	return nil
}

// SetStep writes Value to a state atom.
type SetStep struct {
	Atom  string `yaml:"atom"`
	Value any    `yaml:"value"`
}

// UpdateStep writes the result of Expr, evaluated with prev bound to the
// current value.
type UpdateStep struct {
	Atom string `yaml:"atom"`
	Expr string `yaml:"expr"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Set != nil, s.Update != nil, s.Refresh != "", s.Wait != "", s.Sleep != nil} {
		if set {
			n++
		}
	}
	return n
}

// Load reads and parses the scenario at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("A100").
			WithDetail("Could not read " + path).
			Wrap(err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	f.path = path
	return f, nil
}

// Parse parses a scenario document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.New("A101").Wrap(err)
	}
	return &f, nil
}

// locate attaches the file position to err when the file is known.
func (f *File) locate(err *errors.AtomError, line, column int) *errors.AtomError {
	if f.path == "" || line == 0 {
		if line > 0 {
			err.Location = &errors.Location{File: "<scenario>", Line: line, Column: column}
		}
		return err
	}
	return err.WithLocation(f.path, line, column)
}
