// Package graph provides a small directed graph keyed by a caller-supplied
// identity function, with Kahn's-algorithm topological sort. It underlies
// the dataflow analyzer's control-dependency bookkeeping and the notebook
// builder's cell-ordering needs.
package graph

// Graph is a directed graph over values of type V, identified by a key of
// type K produced by keyFn. Nodes are added implicitly by AddEdge or
// explicitly by AddNode.
type Graph[K comparable, V any] struct {
	keyFn func(V) K
	nodes map[K]V
	out   map[K]map[K]struct{}
	in    map[K]map[K]struct{}
}

// New creates an empty Graph keyed by keyFn.
func New[K comparable, V any](keyFn func(V) K) *Graph[K, V] {
	return &Graph[K, V]{
		keyFn: keyFn,
		nodes: make(map[K]V),
		out:   make(map[K]map[K]struct{}),
		in:    make(map[K]map[K]struct{}),
	}
}

// AddNode inserts v if not already present.
func (g *Graph[K, V]) AddNode(v V) {
	k := g.keyFn(v)
	if _, ok := g.nodes[k]; ok {
		return
	}
	g.nodes[k] = v
	g.out[k] = make(map[K]struct{})
	g.in[k] = make(map[K]struct{})
}

// AddEdge records a directed edge from -> to, adding both endpoints as
// nodes if they are not already present.
func (g *Graph[K, V]) AddEdge(from, to V) {
	g.AddNode(from)
	g.AddNode(to)
	fk, tk := g.keyFn(from), g.keyFn(to)
	g.out[fk][tk] = struct{}{}
	g.in[tk][fk] = struct{}{}
}

// Nodes returns every known node.
func (g *Graph[K, V]) Nodes() []V {
	out := make([]V, 0, len(g.nodes))
	for _, v := range g.nodes {
		out = append(out, v)
	}
	return out
}

// Successors returns the nodes with an edge from v.
func (g *Graph[K, V]) Successors(v V) []V {
	k := g.keyFn(v)
	out := make([]V, 0, len(g.out[k]))
	for sk := range g.out[k] {
		out = append(out, g.nodes[sk])
	}
	return out
}

// Predecessors returns the nodes with an edge into v.
func (g *Graph[K, V]) Predecessors(v V) []V {
	k := g.keyFn(v)
	out := make([]V, 0, len(g.in[k]))
	for pk := range g.in[k] {
		out = append(out, g.nodes[pk])
	}
	return out
}

// TopoSort returns a linear order consistent with edges when the graph is
// a DAG. When a cycle is present, the cyclic remainder is appended in an
// unspecified but total order so every known node is still returned.
func (g *Graph[K, V]) TopoSort() []V {
	inDegree := make(map[K]int, len(g.nodes))
	adj := make(map[K]map[K]struct{}, len(g.nodes))
	for k := range g.nodes {
		inDegree[k] = len(g.in[k])
		adj[k] = make(map[K]struct{}, len(g.out[k]))
		for sk := range g.out[k] {
			adj[k][sk] = struct{}{}
		}
	}

	var queue []K
	for k, d := range inDegree {
		if d == 0 {
			queue = append(queue, k)
		}
	}

	var order []V
	visited := make(map[K]struct{}, len(g.nodes))
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if _, ok := visited[k]; ok {
			continue
		}
		visited[k] = struct{}{}
		order = append(order, g.nodes[k])
		for sk := range adj[k] {
			inDegree[sk]--
			if inDegree[sk] == 0 {
				queue = append(queue, sk)
			}
		}
	}

	if len(order) < len(g.nodes) {
		for k, v := range g.nodes {
			if _, ok := visited[k]; !ok {
				order = append(order, v)
			}
		}
	}

	return order
}
