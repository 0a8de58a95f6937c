// Package project reads and writes module graph project files.
//
// A project file is TOML:
//
//	name = "spheres"
//
//	[[module]]
//	path = "::inst::view"
//	class = "View3D"
//
//	[[module]]
//	path = "::inst::renderer"
//	class = "SphereRenderer"
//	params = { radius = "1.5" }
//
//	[[call]]
//	from = "::inst::view"
//	slot = "rendering"
//	to = "::inst::renderer"
//	class = "CallRender3D"
//
// Parameters listed in a project file become the parameter defaults of the
// built graph.
package project

import (
	"bytes"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
)

// File is the decoded form of a project file.
type File struct {
	Name       string   `toml:"name"`
	Namespaces []string `toml:"namespaces,omitempty"`
	Modules    []Module `toml:"module"`
	Calls      []Call   `toml:"call,omitempty"`
}

// Module declares one module instance.
type Module struct {
	Path   string            `toml:"path"`
	Class  string            `toml:"class"`
	ID     string            `toml:"id,omitempty"`
	Params map[string]string `toml:"params,omitempty"`
}

// Call declares one call between two modules.
type Call struct {
	From  string `toml:"from"`
	Slot  string `toml:"slot"`
	To    string `toml:"to"`
	Class string `toml:"class"`
}

// Parse decodes and validates a project file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "parse project")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown keys in project: %s", strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the project file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeNotFound, err, "project %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "read project %s", path)
	}
	return Parse(data)
}

// Validate checks paths, classes and call endpoints without building a graph.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Modules))
	for i, m := range f.Modules {
		path, err := canonical(m.Path)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidFormat, err, "module #%d", i+1)
		}
		if m.Class == "" {
			return errs.New(errs.ErrCodeInvalidFormat, "module %s has no class", path)
		}
		if seen[path] {
			return errs.New(errs.ErrCodeInvalidFormat, "module %s declared twice", path)
		}
		seen[path] = true
		for name := range m.Params {
			if err := errs.ValidateSegment(name); err != nil {
				return errs.Wrap(errs.ErrCodeInvalidFormat, err, "module %s", path)
			}
		}
	}
	for i, c := range f.Calls {
		from, err := canonical(c.From)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidFormat, err, "call #%d", i+1)
		}
		to, err := canonical(c.To)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidFormat, err, "call #%d", i+1)
		}
		if !seen[from] || !seen[to] {
			return errs.New(errs.ErrCodeInvalidFormat, "call #%d connects undeclared modules %s -> %s", i+1, from, to)
		}
		if err := errs.ValidateSegment(c.Slot); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidFormat, err, "call #%d", i+1)
		}
	}
	return nil
}

func canonical(path string) (string, error) {
	parts, err := errs.SplitFullName(path)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", errs.New(errs.ErrCodeInvalidPath, "path %q names the root", path)
	}
	return errs.JoinFullName(parts...), nil
}

// Snapshot converts f into a graph snapshot.
func (f *File) Snapshot() *modgraph.Snapshot {
	s := &modgraph.Snapshot{Name: f.Name, Namespaces: slices.Clone(f.Namespaces)}
	for _, m := range f.Modules {
		ms := modgraph.ModuleSnapshot{Path: m.Path, Class: m.Class, ID: m.ID}
		names := make([]string, 0, len(m.Params))
		for name := range m.Params {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			v := m.Params[name]
			ms.Params = append(ms.Params, modgraph.ParamSnapshot{Name: name, Default: v, Value: v})
		}
		s.Modules = append(s.Modules, ms)
	}
	for _, c := range f.Calls {
		s.Calls = append(s.Calls, modgraph.CallSnapshot(c))
	}
	return s
}

// Build creates a module graph from f.
func (f *File) Build(opts modgraph.Options) (*modgraph.Graph, error) {
	return modgraph.Restore(f.Snapshot(), opts)
}

// FromSnapshot converts a graph snapshot into a project file. Current
// parameter values are written as the new defaults.
func FromSnapshot(name string, s *modgraph.Snapshot) *File {
	f := &File{Name: name}
	if f.Name == "" {
		f.Name = s.Name
	}
	// Namespaces that hold a module are recreated implicitly.
	for _, ns := range s.Namespaces {
		if !slices.ContainsFunc(s.Modules, func(m modgraph.ModuleSnapshot) bool {
			return strings.HasPrefix(m.Path, ns+errs.Separator)
		}) {
			f.Namespaces = append(f.Namespaces, ns)
		}
	}
	for _, ms := range s.Modules {
		m := Module{Path: ms.Path, Class: ms.Class, ID: ms.ID}
		if len(ms.Params) > 0 {
			m.Params = make(map[string]string, len(ms.Params))
			for _, p := range ms.Params {
				m.Params[p.Name] = p.Value
			}
		}
		f.Modules = append(f.Modules, m)
	}
	for _, c := range s.Calls {
		f.Calls = append(f.Calls, Call(c))
	}
	return f
}

// Encode writes f as TOML.
func (f *File) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidFormat, err, "encode project")
	}
	return nil
}

// Save writes f to path.
func Save(path string, f *File) error {
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeStorage, err, "write project %s", path)
	}
	return nil
}
