package resolver

import (
	"sort"

	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// Graph is the dependency graph of a resolved load set. Edges run from a
// dependency to its dependents, through both the base and the required
// relation. It is built once per resolution and never mutated.
type Graph struct {
	order      []string
	units      map[string]*manifest.UnitDescriptor
	deps       map[string][]string
	dependents map[string][]string
}

// NewGraph builds the graph of ds, which must be listed in load order.
// Relations pointing outside ds are ignored.
func NewGraph(ds []*manifest.UnitDescriptor) *Graph {
	g := &Graph{
		units:      make(map[string]*manifest.UnitDescriptor, len(ds)),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
	for _, d := range ds {
		g.units[d.Key] = d
		g.order = append(g.order, d.Key)
	}
	has := func(k string) bool { _, ok := g.units[k]; return ok }
	for _, d := range ds {
		deps := dependencies(d, has)
		g.deps[d.Key] = deps
		for _, dep := range deps {
			g.dependents[dep] = append(g.dependents[dep], d.Key)
		}
	}
	for k := range g.dependents {
		sort.Strings(g.dependents[k])
	}
	return g
}

// Unit returns the descriptor of key.
func (g *Graph) Unit(key string) (*manifest.UnitDescriptor, bool) {
	d, ok := g.units[key]
	return d, ok
}

// DependsOn returns the direct dependencies of key.
func (g *Graph) DependsOn(key string) []string {
	return append([]string(nil), g.deps[key]...)
}

// Dependents returns every unit whose base or required relation reaches key,
// directly or transitively, sorted by key. key itself is not included.
func (g *Graph) Dependents(key string) []string {
	seen := map[string]bool{key: true}
	queue := []string{key}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.dependents[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	return out
}

// Levels groups the keys so that each unit only depends on units of earlier
// levels. Keys within a level keep load order.
func (g *Graph) Levels() [][]string {
	depth := make(map[string]int, len(g.order))
	var levels [][]string
	for _, key := range g.order {
		lvl := 0
		for _, dep := range g.deps[key] {
			if d := depth[dep] + 1; d > lvl {
				lvl = d
			}
		}
		depth[key] = lvl
		for len(levels) <= lvl {
			levels = append(levels, nil)
		}
		levels[lvl] = append(levels[lvl], key)
	}
	return levels
}

// Roots returns the units without dependencies, in load order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, key := range g.order {
		if len(g.deps[key]) == 0 {
			roots = append(roots, key)
		}
	}
	return roots
}
