// Package printer renders a pyast node back to source text. The
// rendering is the node's verbatim source span, byte-identical to the
// original — grounded on the teacher's nodeText helpers in
// pkg/cfg/python.go and pkg/dfg/python.go, which likewise re-derive
// text from a node's span rather than tracking formatting separately.
package printer

import "pyslice/pkg/pyast"

// PrintNode renders node's verbatim source span. Because pyast.Node
// already carries the original content bytes, the structurally
// equivalent rendering and the verbatim one coincide; this entry point
// exists so callers depend on a printer collaborator rather than on
// pyast internals, matching the engine's external-interfaces contract.
func PrintNode(node *pyast.Node) string {
	if node == nil {
		return ""
	}
	return node.Text()
}
