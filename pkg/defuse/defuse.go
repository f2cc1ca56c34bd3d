// Package defuse walks a single statement's parse subtree and emits the
// set of references it defines, updates, and uses, consulting a symbol
// table to interpret calls and assignment targets. It is the most
// detailed of the core analyses; the dataflow analyzer calls it once
// per statement per fixed-point iteration and caches the result.
package defuse

import (
	"encoding/json"
	"strings"

	"pyslice/internal/log"
	"pyslice/pkg/libspec"
	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
	"pyslice/pkg/walker"
)

// FreeVariableAnalyzer computes the free (undefined-use) references of
// a function body, given the def statement node. The dataflow package
// injects its own fixed-point analysis here at construction time, so
// this package never imports dataflow — keeping the A-through-H
// dependency order one-directional.
type FreeVariableAnalyzer func(defNode *pyast.Node) *refs.RefSet

// Extractor computes DefUse triples for individual statements.
type Extractor struct {
	Symbols  *libspec.SymbolTable
	Cache    Cache
	FreeVars FreeVariableAnalyzer
	logger   log.Logger
}

// New creates an Extractor over the given symbol table and cache. If
// cache is nil, an in-memory cache is used.
func New(symbols *libspec.SymbolTable, cache Cache, logger log.Logger) *Extractor {
	if cache == nil {
		cache = NewMemCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{Symbols: symbols, Cache: cache, logger: logger}
}

// GetDefUseForStatement returns stmt's DefUse triple, deriving it from
// getDefs/getUses on first request and serving the cached value on
// every later request for the same location.
func (e *Extractor) GetDefUseForStatement(stmt *pyast.Node, incomingDefs *refs.RefSet) refs.DefUse {
	if stmt == nil {
		return refs.NewDefUse()
	}
	key := stmt.Location().String()
	if du, ok := e.Cache.Get(key); ok {
		return du
	}

	defs := e.getDefs(stmt, incomingDefs)
	uses := e.getUses(stmt)

	du := refs.NewDefUse()
	for _, r := range defs.Items() {
		du.Of(r.Level).Add(r)
	}
	for _, r := range uses.Items() {
		du.Use.Add(r)
	}

	e.Cache.Set(key, du)
	return du
}

func (e *Extractor) getDefs(stmt *pyast.Node, incomingDefs *refs.RefSet) *refs.RefSet {
	out := refs.NewRefSet()

	walker.Walk(stmt, func(n *pyast.Node, ancestors []*pyast.Node) bool {
		if n == nil {
			return true
		}
		if n.Type() == "call" {
			out = out.Union(e.analyzeCall(n, stmt, incomingDefs))
		}
		if n.RawType() == "string" {
			out = out.Union(e.analyzeDefAnnotation(n, stmt))
		}
		return true
	}, nil)

	switch stmt.RawType() {
	case "import_statement":
		out = out.Union(e.defsForImport(stmt))
	case "import_from_statement":
		out = out.Union(e.defsForFromImport(stmt))
	case "function_definition":
		out = out.Union(e.defsForDef(stmt))
	case "class_definition":
		out = out.Union(e.defsForClass(stmt))
	case "assignment", "augmented_assignment":
		out = out.Union(e.defsForAssign(stmt, incomingDefs))
	}
	return out
}

func (e *Extractor) getUses(stmt *pyast.Node) *refs.RefSet {
	switch stmt.RawType() {
	case "assignment", "augmented_assignment":
		out := refs.NewRefSet()
		if right := stmt.ChildByFieldName("right"); right != nil {
			out = out.Union(collectBareNames(right, stmt))
		}
		if stmt.RawType() == "augmented_assignment" {
			if left := stmt.ChildByFieldName("left"); left != nil {
				out = out.Union(collectBareNames(left, stmt))
			}
		}
		return out
	case "function_definition":
		return e.usesForDef(stmt)
	case "class_definition":
		out := refs.NewRefSet()
		if body := stmt.ChildByFieldName("body"); body != nil {
			for _, s := range body.Children() {
				out = out.Union(e.getUses(s.Statement()))
			}
		}
		return out
	default:
		return collectBareNames(stmt, stmt)
	}
}

// -- call analysis --------------------------------------------------

func (e *Extractor) analyzeCall(call, stmt *pyast.Node, incomingDefs *refs.RefSet) *refs.RefSet {
	out := refs.NewRefSet()

	callee := call.ChildByFieldName("function")
	if callee == nil {
		return out
	}
	args := callArguments(call)

	receiverName := ""
	if callee.RawType() == "attribute" {
		if obj := callee.ChildByFieldName("object"); obj != nil && obj.RawType() == "identifier" {
			receiverName = obj.Text()
		}
	}

	spec := e.resolveCallee(callee, incomingDefs)

	if spec != nil {
		for _, u := range spec.Updates {
			pos, numeric := asInt(u)
			if !numeric {
				continue // global-variable string entries: acknowledged, not modelled further
			}
			if pos >= 1 {
				idx := pos - 1
				if idx < len(args) && args[idx].RawType() == "identifier" {
					out.Add(mutationRef(args[idx].Text(), args[idx].Location(), stmt))
				}
			} else if pos == 0 && receiverName != "" {
				if obj := callee.ChildByFieldName("object"); obj != nil {
					out.Add(mutationRef(receiverName, obj.Location(), stmt))
				}
			}
		}
		return out
	}

	// Unresolved callee: conservatively record every bare-name argument
	// and the bare-name receiver as mutated.
	for _, a := range args {
		if a.RawType() == "identifier" {
			out.Add(mutationRef(a.Text(), a.Location(), stmt))
		}
	}
	if receiverName != "" {
		if obj := callee.ChildByFieldName("object"); obj != nil {
			out.Add(mutationRef(receiverName, obj.Location(), stmt))
		}
	}
	return out
}

func mutationRef(name string, loc pyast.Location, stmt *pyast.Node) refs.Ref {
	return refs.Ref{Name: name, Kind: refs.KindMutation, Level: refs.LevelUpdate, Location: loc, Node: stmt}
}

func callArguments(call *pyast.Node) []*pyast.Node {
	argList := call.ChildByFieldName("arguments")
	if argList == nil {
		return nil
	}
	return argList.Children()
}

// resolveCallee resolves a call's callee expression to a function spec:
// bare name -> symbol-table function; module-qualified dotted name ->
// that module's function; variable-qualified dotted name with a known
// inferred type -> that type's method; otherwise nil (unresolved).
func (e *Extractor) resolveCallee(callee *pyast.Node, incomingDefs *refs.RefSet) *libspec.FunctionSpec {
	switch callee.RawType() {
	case "identifier":
		return e.Symbols.LookupFunction(callee.Text())
	case "attribute":
		obj := callee.ChildByFieldName("object")
		attr := callee.ChildByFieldName("attribute")
		if obj == nil || attr == nil || obj.RawType() != "identifier" {
			return nil
		}
		if mod, ok := e.Symbols.Modules[obj.Text()]; ok && mod != nil {
			if f := mod.Function(attr.Text()); f != nil {
				return f
			}
		}
		if t := lookupInferredType(incomingDefs, obj.Text()); t != nil {
			if ts, ok := t.(*libspec.TypeSpec); ok {
				return ts.Method(attr.Text())
			}
		}
		return nil
	default:
		return nil
	}
}

func lookupInferredType(incomingDefs *refs.RefSet, name string) refs.TypeHandle {
	if incomingDefs == nil {
		return nil
	}
	for _, r := range incomingDefs.Items() {
		if r.Name != name {
			continue
		}
		if r.Level != refs.LevelDefinition && r.Level != refs.LevelUpdate {
			continue
		}
		if r.InferredType != nil {
			return r.InferredType
		}
	}
	return nil
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

// -- def-annotation analysis -----------------------------------------

type defAnnotationEntry struct {
	Name string  `json:"name"`
	Pos  [2][2]int `json:"pos"`
}

func (e *Extractor) analyzeDefAnnotation(lit, stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	text := stripQuotes(lit.Text())
	const prefix = "defs: "
	if !strings.HasPrefix(text, prefix) {
		return out
	}
	var entries []defAnnotationEntry
	if err := json.Unmarshal([]byte(text[len(prefix):]), &entries); err != nil {
		return out // malformed def-annotation JSON is silently ignored
	}
	base := lit.Location()
	for _, entry := range entries {
		loc := pyast.Location{
			FirstLine:   base.FirstLine + entry.Pos[0][0],
			FirstColumn: entry.Pos[0][1],
			LastLine:    base.FirstLine + entry.Pos[1][0],
			LastColumn:  entry.Pos[1][1],
			Path:        base.Path,
		}
		out.Add(refs.Ref{Name: entry.Name, Kind: refs.KindMagic, Level: refs.LevelDefinition, Location: loc, Node: stmt})
	}
	return out
}

func stripQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// -- per-statement shape rules ----------------------------------------

func (e *Extractor) defsForImport(stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	for _, child := range stmt.Children() {
		switch child.RawType() {
		case "aliased_import":
			dotted := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if dotted == nil || alias == nil {
				continue
			}
			e.Symbols.ImportModule(dotted.Text(), alias.Text())
			out.Add(refs.Ref{Name: alias.Text(), Kind: refs.KindImport, Level: refs.LevelDefinition, Location: child.Location(), Node: stmt})
		case "dotted_name":
			path := child.Text()
			bind := firstSegment(path)
			e.Symbols.ImportModule(path, "")
			out.Add(refs.Ref{Name: bind, Kind: refs.KindImport, Level: refs.LevelDefinition, Location: child.Location(), Node: stmt})
		}
	}
	return out
}

func (e *Extractor) defsForFromImport(stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	modNode := stmt.ChildByFieldName("module_name")
	if modNode == nil {
		return out
	}
	modPath := modNode.Text()
	var items []libspec.ImportItem
	for _, child := range stmt.Children() {
		if child.Location() == modNode.Location() {
			continue
		}
		switch child.RawType() {
		case "wildcard_import":
			items = append(items, libspec.ImportItem{Path: "*"})
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			items = append(items, libspec.ImportItem{Name: name.Text()})
			out.Add(refs.Ref{Name: alias.Text(), Kind: refs.KindImport, Level: refs.LevelDefinition, Location: child.Location(), Node: stmt})
		case "dotted_name":
			name := child.Text()
			items = append(items, libspec.ImportItem{Name: name})
			out.Add(refs.Ref{Name: name, Kind: refs.KindImport, Level: refs.LevelDefinition, Location: child.Location(), Node: stmt})
		}
	}
	e.Symbols.ImportModuleDefinitions(modPath, items)
	return out
}

func firstSegment(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

func (e *Extractor) defsForDef(stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	name := stmt.ChildByFieldName("name")
	if name == nil {
		return out
	}
	out.Add(refs.Ref{Name: name.Text(), Kind: refs.KindFunction, Level: refs.LevelDefinition, Location: name.Location(), Node: stmt})
	return out
}

func (e *Extractor) defsForClass(stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	name := stmt.ChildByFieldName("name")
	if name == nil {
		return out
	}
	out.Add(refs.Ref{Name: name.Text(), Kind: refs.KindClass, Level: refs.LevelDefinition, Location: name.Location(), Node: stmt})
	return out
}

func (e *Extractor) usesForDef(stmt *pyast.Node) *refs.RefSet {
	if e.FreeVars != nil {
		return e.FreeVars(stmt)
	}
	// Degraded fallback when no analyzer is wired: approximate free
	// variables as every bare name in the body minus its parameters.
	params := paramNames(stmt)
	body := stmt.ChildByFieldName("body")
	if body == nil {
		return refs.NewRefSet()
	}
	all := refs.NewRefSet()
	for _, s := range body.Children() {
		all = all.Union(collectBareNames(s, stmt))
	}
	return all.Filter(func(r refs.Ref) bool { _, bound := params[r.Name]; return !bound })
}

func paramNames(defStmt *pyast.Node) map[string]bool {
	out := map[string]bool{}
	params := defStmt.ChildByFieldName("parameters")
	if params == nil {
		return out
	}
	for _, p := range params.Children() {
		switch p.RawType() {
		case "identifier":
			out[p.Text()] = true
		case "default_parameter", "typed_parameter", "typed_default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				out[n.Text()] = true
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			for _, c := range p.Children() {
				if c.RawType() == "identifier" {
					out[c.Text()] = true
				}
			}
		}
	}
	return out
}

// -- assignment target analysis ---------------------------------------

func (e *Extractor) defsForAssign(stmt *pyast.Node, incomingDefs *refs.RefSet) *refs.RefSet {
	out := refs.NewRefSet()
	left := stmt.ChildByFieldName("left")
	right := stmt.ChildByFieldName("right")
	if left == nil {
		return out
	}

	targetRefs := targetRefsFor(left, stmt)
	augmented := stmt.RawType() == "augmented_assignment"
	if augmented {
		for i, r := range targetRefs {
			if r.Level == refs.LevelDefinition {
				targetRefs[i].Level = refs.LevelUpdate
			}
		}
	}

	if right != nil {
		for _, pair := range pairTargetsAndSources(left, right) {
			if pair.target.RawType() != "identifier" || pair.source.Type() != "call" {
				continue
			}
			spec := e.resolveCallee(pair.source.ChildByFieldName("function"), incomingDefs)
			if spec == nil || spec.ReturnsType == nil {
				continue
			}
			for i, r := range targetRefs {
				if r.Name == pair.target.Text() && r.Location == pair.target.Location() {
					targetRefs[i].InferredType = spec.ReturnsType
				}
			}
		}
	}

	for _, r := range targetRefs {
		out.Add(r)
	}
	return out
}

type targetSourcePair struct {
	target *pyast.Node
	source *pyast.Node
}

var tupleLikeTypes = map[string]bool{
	"pattern_list":      true,
	"tuple_pattern":     true,
	"expression_list":   true,
	"tuple":             true,
}

func pairTargetsAndSources(left, right *pyast.Node) []targetSourcePair {
	if tupleLikeTypes[left.RawType()] && tupleLikeTypes[right.RawType()] {
		lc, rc := left.Children(), right.Children()
		if len(lc) == len(rc) {
			pairs := make([]targetSourcePair, len(lc))
			for i := range lc {
				pairs[i] = targetSourcePair{target: lc[i], source: rc[i]}
			}
			return pairs
		}
	}
	return []targetSourcePair{{target: left, source: right}}
}

func targetRefsFor(root, stmt *pyast.Node) []refs.Ref {
	var out []refs.Ref
	var walk func(n *pyast.Node, ancestors []*pyast.Node)
	walk = func(n *pyast.Node, ancestors []*pyast.Node) {
		if n == nil {
			return
		}
		if n.RawType() == "identifier" {
			if len(ancestors) > 0 {
				parent := ancestors[len(ancestors)-1]
				if parent.RawType() == "attribute" {
					if attr := parent.ChildByFieldName("attribute"); attr != nil && attr.Location() == n.Location() {
						return
					}
				}
			}
			excluded, isUpdate := false, false
			for _, a := range ancestors {
				switch a.RawType() {
				case "subscript":
					obj := a.ChildByFieldName("value")
					if obj != nil && nodeContains(obj, n) {
						isUpdate = true
					} else {
						excluded = true
					}
				case "attribute":
					isUpdate = true
				}
			}
			if excluded {
				return
			}
			level := refs.LevelDefinition
			if isUpdate {
				level = refs.LevelUpdate
			}
			out = append(out, refs.Ref{Name: n.Text(), Kind: refs.KindVariable, Level: level, Location: n.Location(), Node: stmt})
			return
		}
		next := append(append([]*pyast.Node{}, ancestors...), n)
		for _, c := range n.Children() {
			walk(c, next)
		}
	}
	walk(root, nil)
	return out
}

func nodeContains(root, target *pyast.Node) bool {
	if root == nil {
		return false
	}
	if root.Location() == target.Location() {
		return true
	}
	for _, c := range root.Children() {
		if nodeContains(c, target) {
			return true
		}
	}
	return false
}

// -- generic bare-name collection --------------------------------------

func collectBareNames(root, stmt *pyast.Node) *refs.RefSet {
	out := refs.NewRefSet()
	walker.Walk(root, func(n *pyast.Node, ancestors []*pyast.Node) bool {
		if n.RawType() != "identifier" {
			return true
		}
		if len(ancestors) > 0 {
			parent := ancestors[len(ancestors)-1]
			if parent.RawType() == "attribute" {
				if attr := parent.ChildByFieldName("attribute"); attr != nil && attr.Location() == n.Location() {
					return true
				}
			}
			if parent.RawType() == "keyword_argument" {
				if key := parent.ChildByFieldName("name"); key != nil && key.Location() == n.Location() {
					return true
				}
			}
		}
		out.Add(refs.Ref{Name: n.Text(), Kind: refs.KindVariable, Level: refs.LevelUse, Location: n.Location(), Node: stmt})
		return true
	}, nil)
	return out
}
