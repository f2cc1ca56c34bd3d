// Package pyast wraps github.com/smacker/go-tree-sitter's Python grammar
// behind the closed node-tag surface the rest of the engine depends on:
// every node exposes a Type() drawn from a fixed vocabulary (module,
// import, from, def, class, assign, if, while, for, try, with, call,
// index, slice, dot, name, literal, expr_stmt, other) plus a
// four-integer Location.
// It owns nothing about dataflow; it is a syntax-only adapter, the same
// separation the control-flow and dataflow packages keep from their
// tree-sitter plumbing.
package pyast

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Location is a four-integer source range, plus an optional Path tag
// identifying the fragment it was parsed from. Two locations with equal
// coordinates but different Path values are distinct.
type Location struct {
	FirstLine   int
	FirstColumn int
	LastLine    int
	LastColumn  int
	Path        string
}

// Contains reports whether l fully encloses other (textual nesting).
func (l Location) Contains(other Location) bool {
	if l.Path != other.Path {
		return false
	}
	if other.FirstLine < l.FirstLine || (other.FirstLine == l.FirstLine && other.FirstColumn < l.FirstColumn) {
		return false
	}
	if other.LastLine > l.LastLine || (other.LastLine == l.LastLine && other.LastColumn > l.LastColumn) {
		return false
	}
	return true
}

// Intersects reports whether l and other overlap or nest, textually.
func (l Location) Intersects(other Location) bool {
	if l.Path != other.Path {
		return false
	}
	if l.LastLine < other.FirstLine || (l.LastLine == other.FirstLine && l.LastColumn < other.FirstColumn) {
		return false
	}
	if other.LastLine < l.FirstLine || (other.LastLine == l.FirstLine && other.LastColumn < l.FirstColumn) {
		return false
	}
	return true
}

// String renders a canonical form suitable for cache keys.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.Path, l.FirstLine, l.FirstColumn, l.LastLine, l.LastColumn)
}

// Node is a handle onto a single tree-sitter node, tagged with a
// normalized Type() from the closed vocabulary the rest of the engine
// understands.
type Node struct {
	raw        *sitter.Node
	content    []byte
	path       string
	lineOffset int
}

// Shift returns a view of n whose Location() (and every descendant's)
// reports FirstLine/LastLine advanced by lines. Used by the program
// builder to make a cell's statements addressable at their position in
// the assembled whole-program line numbering, without mutating the
// parsed tree itself.
func Shift(n *Node, lines int) *Node {
	if n == nil {
		return nil
	}
	shifted := *n
	shifted.lineOffset += lines
	return &shifted
}

// Module is the root of a parsed fragment.
type Module struct {
	Root    *Node
	content []byte
	path    string
}

// typeTags maps tree-sitter-python node type strings onto the engine's
// closed tag vocabulary. Anything absent from this map reports "other".
var typeTags = map[string]string{
	"module":                 "module",
	"import_statement":       "import",
	"import_from_statement":  "from",
	"function_definition":    "def",
	"class_definition":       "class",
	"assignment":              "assign",
	"augmented_assignment":    "assign",
	"if_statement":           "if",
	"elif_clause":            "if",
	"while_statement":        "while",
	"for_statement":          "for",
	"try_statement":          "try",
	"with_statement":         "with",
	"call":                   "call",
	"subscript":              "index",
	"slice":                  "slice",
	"attribute":               "dot",
	"identifier":             "name",
	"string":                 "literal",
	"integer":                "literal",
	"float":                  "literal",
	"true":                   "literal",
	"false":                  "literal",
	"none":                   "literal",
	"list":                   "literal",
	"dictionary":             "literal",
	"tuple":                  "literal",
	"set":                    "literal",
	"expression_statement":   "expr_stmt",
}

// Parse parses text as a Python module, tolerating a missing trailing
// newline by appending one before handing the source to tree-sitter.
// path tags every Location produced from this module (normally a cell's
// executionEventId).
func Parse(text string, path string) (*Module, error) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	content := []byte(text)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing python source: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parsing python source: empty tree")
	}

	return &Module{
		Root:    &Node{raw: root, content: content, path: path},
		content: content,
		path:    path,
	}, nil
}

// Path returns the fragment identity this module's locations are tagged
// with.
func (m *Module) Path() string { return m.path }

// Raw exposes the underlying tree-sitter node, for collaborators (the
// program builder's syntax-error check) that need grammar-specific
// detail this package does not normalize.
func (n *Node) Raw() *sitter.Node { return n.raw }

// Type returns the node's normalized tag.
func (n *Node) Type() string {
	if n == nil || n.raw == nil {
		return "other"
	}
	if tag, ok := typeTags[n.raw.Type()]; ok {
		return tag
	}
	return "other"
}

// RawType returns the untranslated tree-sitter grammar type, for callers
// that need grammar-specific dispatch the closed tag set doesn't carry
// (e.g. distinguishing "if" from "elif", or "true"/"false"/"none").
func (n *Node) RawType() string {
	if n == nil || n.raw == nil {
		return ""
	}
	return n.raw.Type()
}

// IsAugmented reports whether an "assign"-tagged node is an augmented
// assignment (+=, -=, ...).
func (n *Node) IsAugmented() bool {
	return n != nil && n.raw != nil && n.raw.Type() == "augmented_assignment"
}

// Location returns the node's source range, tagged with the owning
// module's path.
func (n *Node) Location() Location {
	if n == nil || n.raw == nil {
		return Location{}
	}
	start, end := n.raw.StartPoint(), n.raw.EndPoint()
	return Location{
		FirstLine:   int(start.Row) + 1 + n.lineOffset,
		FirstColumn: int(start.Column) + 1,
		LastLine:    int(end.Row) + 1 + n.lineOffset,
		LastColumn:  int(end.Column) + 1,
		Path:        n.path,
	}
}

// Text returns the node's verbatim source text.
func (n *Node) Text() string {
	if n == nil || n.raw == nil {
		return ""
	}
	return n.raw.Content(n.content)
}

// ChildCount returns the number of named and unnamed children.
func (n *Node) ChildCount() int {
	if n == nil || n.raw == nil {
		return 0
	}
	return int(n.raw.ChildCount())
}

// Child returns the i-th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || n.raw == nil {
		return nil
	}
	c := n.raw.Child(i)
	if c == nil {
		return nil
	}
	return &Node{raw: c, content: n.content, path: n.path, lineOffset: n.lineOffset}
}

// Children returns every named child (skipping punctuation/keyword leaves).
func (n *Node) Children() []*Node {
	if n == nil || n.raw == nil {
		return nil
	}
	out := make([]*Node, 0, n.raw.NamedChildCount())
	for i := 0; i < int(n.raw.NamedChildCount()); i++ {
		c := n.raw.NamedChild(i)
		if c == nil {
			continue
		}
		out = append(out, &Node{raw: c, content: n.content, path: n.path, lineOffset: n.lineOffset})
	}
	return out
}

// ChildByFieldName returns the child stored under the given grammar
// field (e.g. "left", "right", "function", "arguments", "body"), or nil.
func (n *Node) ChildByFieldName(name string) *Node {
	if n == nil || n.raw == nil {
		return nil
	}
	c := n.raw.ChildByFieldName(name)
	if c == nil {
		return nil
	}
	return &Node{raw: c, content: n.content, path: n.path, lineOffset: n.lineOffset}
}

// Statements returns the top-level statement nodes of a module or block
// body, unwrapping "expr_stmt" wrappers is NOT done here; callers that
// want the inner expression use Child(0) on an "expr_stmt" node.
func (n *Node) Statements() []*Node {
	return n.Children()
}

// Statement unwraps an "expr_stmt" wrapper (tree-sitter's
// expression_statement) to expose the node dataflow actually dispatches
// on — an "assign", "call", "name", or literal — leaving every other
// node (the compound statements, which tree-sitter does not wrap)
// unchanged.
func (n *Node) Statement() *Node {
	if n == nil {
		return n
	}
	if n.Type() == "expr_stmt" && n.ChildCount() >= 1 {
		return n.Child(0)
	}
	return n
}

// Walk visits n and every descendant in preorder, calling visit with
// each node and its slice of ancestors (outermost first). Walk stops
// early if visit returns false.
func (n *Node) Walk(visit func(node *Node, ancestors []*Node) bool) {
	n.walk(nil, visit)
}

func (n *Node) walk(ancestors []*Node, visit func(node *Node, ancestors []*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n, ancestors) {
		return
	}
	next := append(ancestors, n)
	for _, c := range n.Children() {
		c.walk(next, visit)
	}
}
