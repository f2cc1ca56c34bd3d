package libspec

import (
	"pyslice/internal/log"
	"pyslice/pkg/pyast"
)

// BuiltinsModuleName is the module the symbol table preloads into its
// globals at construction.
const BuiltinsModuleName = "__builtins__"

// ImportItem is one entry of a from-import statement: Name is the
// symbol being bound; Path carries the "*" sentinel when the whole
// module's definitions should be imported instead of a single name.
type ImportItem struct {
	Path string
	Name string
}

// SymbolTable is the mutable per-analysis collection of imported
// modules, globally-visible types, and globally-visible functions. It
// is owned exclusively by one analyzer instance; concurrent analyses
// must each use their own table, matching the engine's single-threaded
// resource model.
type SymbolTable struct {
	library   map[string]*ModuleSpec // full default spec bundle, keyed by top-level module name
	Modules   map[string]*ModuleSpec // currently-imported modules, keyed by path or alias
	Types     map[string]*TypeSpec   // globally-visible types
	Functions map[string]*FunctionSpec
	logger    log.Logger
}

// NewSymbolTable constructs a table over the given default spec bundle
// (keyed by top-level module name, e.g. "random", "pandas", "numpy")
// and preloads __builtins__'s functions and types into the globals.
func NewSymbolTable(library map[string]*ModuleSpec, logger log.Logger) *SymbolTable {
	if logger == nil {
		logger = log.Default()
	}
	st := &SymbolTable{
		library:   library,
		Modules:   make(map[string]*ModuleSpec),
		Types:     make(map[string]*TypeSpec),
		Functions: make(map[string]*FunctionSpec),
		logger:    logger,
	}
	if builtins, ok := library[BuiltinsModuleName]; ok {
		st.Modules[BuiltinsModuleName] = builtins
		st.importModuleDefinitions(BuiltinsModuleName, []ImportItem{{Path: "*"}})
	}
	return st
}

// ImportModule resolves a dotted path down the nested module map; on
// success it registers the module under both the full path and alias
// (if given). On failure it logs a warning and no-ops.
func (st *SymbolTable) ImportModule(path, alias string) {
	mod, ok := resolveModulePath(st.library, path)
	if !ok {
		st.logger.Warn("unknown module in spec import", "path", path)
		st.Modules[path] = nil
		if alias != "" {
			st.Modules[alias] = nil
		}
		return
	}
	st.Modules[path] = mod
	if alias != "" {
		st.Modules[alias] = mod
	}
}

// ImportModuleDefinitions resolves path as ImportModule does, then adds
// either every function and type in the resolved module to the global
// functions/types maps (when an item's Path is "*"), or the single
// function/type named by the item, into the global maps.
func (st *SymbolTable) ImportModuleDefinitions(path string, imports []ImportItem) {
	st.importModuleDefinitions(path, imports)
}

func (st *SymbolTable) importModuleDefinitions(path string, imports []ImportItem) {
	mod, ok := resolveModulePath(st.library, path)
	if !ok {
		st.logger.Warn("unknown module in spec import", "path", path)
		return
	}
	for _, item := range imports {
		if item.Path == "*" {
			for _, f := range mod.Functions {
				st.Functions[f.Name] = f
			}
			for name, t := range mod.Types {
				st.Types[name] = t
			}
			continue
		}
		if f := mod.Function(item.Name); f != nil {
			st.Functions[item.Name] = f
			continue
		}
		if t, ok := mod.Types[item.Name]; ok {
			st.Types[item.Name] = t
			continue
		}
		st.logger.Warn("unknown name in spec import", "module", path, "name", item.Name)
	}
}

// LookupFunction returns the function spec named name if known globally,
// else a synthetic constructor spec if name instead names a known type,
// else nil.
func (st *SymbolTable) LookupFunction(name string) *FunctionSpec {
	if f, ok := st.Functions[name]; ok {
		return f
	}
	if t, ok := st.Types[name]; ok {
		return &FunctionSpec{
			Name:        "__init__",
			Updates:     []any{0},
			ReturnsType: t,
		}
	}
	return nil
}

// LookupModuleFunction returns the function spec named fn declared on
// the module registered under mod (a path or alias).
func (st *SymbolTable) LookupModuleFunction(mod, fn string) *FunctionSpec {
	m, ok := st.Modules[mod]
	if !ok || m == nil {
		return nil
	}
	return m.Function(fn)
}

// LookupNode resolves a call's callee expression node to a function
// spec, dispatching on whether it is a bare name or a dotted name. A
// dotted callee is resolved only when the receiver is itself a bare
// name registered as a module; receiver-is-variable resolution needs
// the extractor's incoming-defs inferred-type tracking and is handled
// there, not here.
func (st *SymbolTable) LookupNode(callee *pyast.Node) *FunctionSpec {
	if callee == nil {
		return nil
	}
	switch callee.Type() {
	case "name":
		return st.LookupFunction(callee.Text())
	case "dot":
		receiver := callee.ChildByFieldName("object")
		attr := callee.ChildByFieldName("attribute")
		if receiver == nil || attr == nil || receiver.Type() != "name" {
			return nil
		}
		return st.LookupModuleFunction(receiver.Text(), attr.Text())
	default:
		return nil
	}
}

// SetFunctionSpec records or replaces the spec for a user-defined
// function discovered by the extractor (e.g. the parameter
// side-effect analysis's output), making it visible to later calls.
func (st *SymbolTable) SetFunctionSpec(spec *FunctionSpec) {
	st.Functions[spec.Name] = spec
}
