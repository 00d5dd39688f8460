package resolver

import (
	"fmt"
	"io"
)

// PrintTree prints the graph as a tree with box-drawing characters. Each
// root unit is followed by the units built on it; a unit reached a second
// time is marked "(shown above)" and not expanded again.
func PrintTree(w io.Writer, g *Graph) {
	if len(g.order) == 0 {
		fmt.Fprintln(w, "  (no plugins loaded)")
		return
	}
	seen := make(map[string]bool)
	for _, root := range g.Roots() {
		printNode(w, g, root, "", true, true, seen)
	}
}

func printNode(w io.Writer, g *Graph, key, prefix string, isLast, isRoot bool, seen map[string]bool) {
	label := key
	if d, ok := g.units[key]; ok {
		label = d.String()
		if d.BasePlugin != "" {
			label += " (extends " + d.BasePlugin + ")"
		}
	}

	if isRoot {
		fmt.Fprintf(w, "  %s\n", label)
	} else {
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		if seen[key] {
			label += " (shown above)"
		}
		fmt.Fprintf(w, "  %s%s%s\n", prefix, connector, label)
	}

	if seen[key] {
		return
	}
	seen[key] = true

	childPrefix := prefix
	if !isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	children := g.dependents[key]
	for i, child := range children {
		printNode(w, g, child, childPrefix, i == len(children)-1, false, seen)
	}
}
