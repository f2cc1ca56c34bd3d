// Package libspec models the library spec tree consulted by the
// per-statement extractor to decide whether a call mutates its
// arguments and what type it returns. Specs are loaded from JSON
// bundles shipped alongside the binary under specs/*.json; this
// package only knows how to parse and resolve them, not where they
// live on disk (that is the specs package's concern, via go:embed).
package libspec

import (
	"encoding/json"
	"fmt"
)

// FunctionSpec describes one library function or method.
type FunctionSpec struct {
	Name        string   `json:"name"`
	Updates     []any    `json:"updates,omitempty"`
	Reads       []string `json:"reads,omitempty"`
	Returns     string   `json:"returns,omitempty"`
	HigherOrder bool     `json:"higherorder,omitempty"`

	// ReturnsType is resolved against the enclosing module's Types map
	// after the whole module has been decoded; nil until resolveReturns
	// runs, and nil forever if Returns names an unknown type.
	ReturnsType *TypeSpec `json:"-"`
}

// UpdatesReceiver reports whether position 0 (the receiver) is listed
// in Updates.
func (f *FunctionSpec) UpdatesReceiver() bool {
	return f.updatesPosition(0)
}

// UpdatesPosition reports whether the given 1-based positional argument
// is listed in Updates.
func (f *FunctionSpec) UpdatesPosition(pos int) bool {
	return f.updatesPosition(pos)
}

func (f *FunctionSpec) updatesPosition(pos int) bool {
	if f == nil {
		return false
	}
	for _, u := range f.Updates {
		if n, ok := asInt(u); ok && n == pos {
			return true
		}
	}
	return false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// UnmarshalJSON accepts either a full object or the bare-string
// abbreviation, which expands to {name, reads: [], updates: []}.
func (f *FunctionSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Name = name
		f.Reads = []string{}
		f.Updates = []any{}
		return nil
	}
	type alias FunctionSpec
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decoding function spec: %w", err)
	}
	*f = FunctionSpec(a)
	return nil
}

// TypeSpec describes a library type: its constructor-bearing module
// plus a flat list of method specs.
type TypeSpec struct {
	Name    string          `json:"name"`
	Methods []*FunctionSpec `json:"methods,omitempty"`
}

// Method returns the method spec named name, if any.
func (t *TypeSpec) Method(name string) *FunctionSpec {
	if t == nil {
		return nil
	}
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// ModuleSpec describes one library module: its functions, the types it
// declares, and any nested submodules.
type ModuleSpec struct {
	Name      string                   `json:"name,omitempty"`
	Functions []*FunctionSpec          `json:"functions,omitempty"`
	Types     map[string]*TypeSpec     `json:"types,omitempty"`
	Modules   map[string]*ModuleSpec   `json:"modules,omitempty"`
}

// UnmarshalJSON decodes a module spec, accepting the per-type
// "list of methods" shorthand ({"TypeName": [methods...]}) by wrapping
// it into a TypeSpec, and normalizing string-abbreviated functions and
// methods via FunctionSpec.UnmarshalJSON.
func (m *ModuleSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string                     `json:"name,omitempty"`
		Functions []*FunctionSpec            `json:"functions,omitempty"`
		Types     map[string][]*FunctionSpec `json:"types,omitempty"`
		Modules   map[string]*ModuleSpec     `json:"modules,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding module spec: %w", err)
	}
	m.Name = raw.Name
	m.Functions = raw.Functions
	m.Modules = raw.Modules
	if raw.Types != nil {
		m.Types = make(map[string]*TypeSpec, len(raw.Types))
		for typeName, methods := range raw.Types {
			m.Types[typeName] = &TypeSpec{Name: typeName, Methods: methods}
		}
	}
	resolveReturns(m)
	return nil
}

// resolveReturns walks every function and method spec declared directly
// in m and, where Returns names a type known to m, attaches ReturnsType.
func resolveReturns(m *ModuleSpec) {
	resolve := func(f *FunctionSpec) {
		if f.Returns == "" {
			return
		}
		if t, ok := m.Types[f.Returns]; ok {
			f.ReturnsType = t
		}
	}
	for _, f := range m.Functions {
		resolve(f)
	}
	for _, t := range m.Types {
		for _, meth := range t.Methods {
			resolve(meth)
		}
	}
}

// Function returns the function spec named name, if declared directly
// on m.
func (m *ModuleSpec) Function(name string) *FunctionSpec {
	if m == nil {
		return nil
	}
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// LoadModule decodes a single module spec from JSON.
func LoadModule(data []byte) (*ModuleSpec, error) {
	var m ModuleSpec
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loading module spec: %w", err)
	}
	return &m, nil
}

// resolveModulePath descends a dotted path through a module tree,
// e.g. "sklearn.cluster" through root.Modules["sklearn"].Modules["cluster"].
func resolveModulePath(root map[string]*ModuleSpec, path string) (*ModuleSpec, bool) {
	parts := splitDotted(path)
	if len(parts) == 0 {
		return nil, false
	}
	mod, ok := root[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		if mod.Modules == nil {
			return nil, false
		}
		mod, ok = mod.Modules[part]
		if !ok {
			return nil, false
		}
	}
	return mod, true
}

func splitDotted(path string) []string {
	if path == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
