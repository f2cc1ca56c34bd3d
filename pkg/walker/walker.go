// Package walker provides a reusable preorder/postorder traversal over
// pyast nodes, generalizing the teacher's hand-rolled recursive
// dispatch in pkg/dfg/python.go (walkChildren/processNode) into a
// single traversal utility every analysis-level package can share
// instead of re-implementing its own recursion.
package walker

import "pyslice/pkg/pyast"

// OnEnter is called before a node's children are visited. Returning
// false skips the node's subtree (onExit is still not called for a
// skipped subtree).
type OnEnter func(node *pyast.Node, ancestors []*pyast.Node) bool

// OnExit is called after a node's children have been visited.
type OnExit func(node *pyast.Node, ancestors []*pyast.Node)

// Walk traverses root and every descendant, calling onEnter before
// descending and onExit after. Either callback may be nil.
func Walk(root *pyast.Node, onEnter OnEnter, onExit OnExit) {
	walk(root, nil, onEnter, onExit)
}

func walk(n *pyast.Node, ancestors []*pyast.Node, onEnter OnEnter, onExit OnExit) {
	if n == nil {
		return
	}
	descend := true
	if onEnter != nil {
		descend = onEnter(n, ancestors)
	}
	if descend {
		next := append(append([]*pyast.Node{}, ancestors...), n)
		for _, c := range n.Children() {
			walk(c, next, onEnter, onExit)
		}
	}
	if onExit != nil {
		onExit(n, ancestors)
	}
}
