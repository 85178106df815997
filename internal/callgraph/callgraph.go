// Package callgraph builds the routine call graph of a reconstructed listing.
package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"

	"lstconv/internal/entity"
)

// Build constructs a lattice.Graph from reconstructed routines. Each named
// routine becomes a node. Call and jump targets naming another routine become
// edges; targets that are labels or external symbols are skipped.
func Build(routines []*entity.Routine) *lattice.Graph {
	known := make(map[string]bool)
	for _, r := range routines {
		if !r.IsBoundary() {
			known[r.Name] = true
		}
	}

	g := &lattice.Graph{}
	for _, r := range routines {
		if r.IsBoundary() {
			continue
		}
		g.Nodes = append(g.Nodes, r.Name)
		for _, callee := range r.Calls {
			if !known[callee] || callee == r.Name {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: r.Name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// EntryPoints returns the nodes with no incoming edge, sorted.
func EntryPoints(g *lattice.Graph) []string {
	called := make(map[string]bool)
	for _, e := range g.Edges {
		called[e.Callee] = true
	}
	var entries []string
	for _, n := range g.Nodes {
		if !called[n] {
			entries = append(entries, n)
		}
	}
	sort.Strings(entries)
	return entries
}

// Unreachable returns the nodes that cannot be reached from root, sorted.
// When root is not a node every node is reported.
func Unreachable(g *lattice.Graph, root string) []string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.Caller] = append(adj[e.Caller], e.Callee)
	}

	reachable := make(map[string]bool)
	var queue []string
	for _, n := range g.Nodes {
		if n == root {
			reachable[root] = true
			queue = append(queue, root)
			break
		}
	}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, target := range adj[fn] {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	var out []string
	for _, n := range g.Nodes {
		if !reachable[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
