package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// Skip is a candidate removed during resolution.
type Skip struct {
	Candidate artifact.Candidate
	Err       error // always an UnresolvedDependency failure
}

// Result is the outcome of Resolve.
type Result struct {
	// Ordered lists the surviving candidates so that every unit follows its
	// base and its required units.
	Ordered []artifact.Candidate
	Skipped []Skip
	Graph   *Graph
}

// Levels groups Ordered into batches. Units of one batch depend only on
// units of earlier batches, so a batch may be processed concurrently.
func (r Result) Levels() [][]artifact.Candidate {
	byKey := make(map[string]artifact.Candidate, len(r.Ordered))
	for _, c := range r.Ordered {
		byKey[c.Key()] = c
	}
	var out [][]artifact.Candidate
	for _, level := range r.Graph.Levels() {
		batch := make([]artifact.Candidate, len(level))
		for i, key := range level {
			batch[i] = byKey[key]
		}
		out = append(out, batch)
	}
	return out
}

// Resolve computes the load set of cs. Keys are expected to be unique; a
// repeated key keeps the candidate with the lowest path.
func Resolve(cs []artifact.Candidate) Result {
	ordered := append([]artifact.Candidate(nil), cs...)
	artifact.SortByKey(ordered)

	live := make(map[string]artifact.Candidate, len(ordered))
	var keys []string
	for _, c := range ordered {
		if _, dup := live[c.Key()]; dup {
			continue
		}
		live[c.Key()] = c
		keys = append(keys, c.Key())
	}

	var skipped []Skip
	for changed := true; changed; {
		changed = false
		for _, key := range keys {
			c, ok := live[key]
			if !ok {
				continue
			}
			if err := check(c.Descriptor, live); err != nil {
				delete(live, key)
				skipped = append(skipped, Skip{Candidate: c, Err: err})
				changed = true
			}
		}
	}

	order, cyclic := topoSort(keys, live)
	for _, key := range cyclic {
		c := live[key]
		delete(live, key)
		skipped = append(skipped, Skip{Candidate: c, Err: failure.New(failure.UnresolvedDependency,
			"Plugin %s [%s] is ignored because it is part of, or depends on, a dependency cycle", c.Descriptor.Name, key)})
	}

	result := Result{Skipped: skipped}
	descriptors := make([]*manifest.UnitDescriptor, 0, len(order))
	for _, key := range order {
		result.Ordered = append(result.Ordered, live[key])
		descriptors = append(descriptors, live[key].Descriptor)
	}
	result.Graph = NewGraph(descriptors)
	return result
}

// check validates one unit against the currently live set.
func check(d *manifest.UnitDescriptor, live map[string]artifact.Candidate) error {
	if d.EntryPoint == "" && d.BasePlugin == "" {
		return failure.New(failure.UnresolvedDependency,
			"Plugin %s [%s] is ignored because it has no entry point class", d.Name, d.Key)
	}
	if d.BasePlugin != "" {
		if _, ok := live[d.BasePlugin]; !ok {
			return failure.New(failure.UnresolvedDependency,
				"Plugin %s [%s] is ignored because its base plugin [%s] is not installed", d.Name, d.Key, d.BasePlugin)
		}
	}
	for _, req := range d.Requires {
		dep, ok := live[req.Key]
		if !ok {
			return failure.New(failure.UnresolvedDependency,
				"Plugin %s [%s] is ignored because the required plugin [%s] is not installed", d.Name, d.Key, req.Key)
		}
		if installed := dep.Descriptor.Version; !installed.AtLeast(req.MinVersion) {
			return failure.New(failure.UnresolvedDependency,
				"Plugin %s [%s] is ignored because it requires version %s of plugin [%s] but version %s is installed",
				d.Name, d.Key, req.MinVersion, req.Key, versionLabel(installed))
		}
	}
	return nil
}

// dependencies returns the keys d depends on within live, without repeats.
func dependencies(d *manifest.UnitDescriptor, live func(string) bool) []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(key string) {
		if key == "" || key == d.Key || seen[key] || !live(key) {
			return
		}
		seen[key] = true
		deps = append(deps, key)
	}
	add(d.BasePlugin)
	for _, r := range d.Requires {
		add(r.Key)
	}
	return deps
}

// topoSort runs Kahn's algorithm over keys, always taking the smallest ready
// key next. Keys left over sit on or behind a cycle.
func topoSort(keys []string, live map[string]artifact.Candidate) (order, cyclic []string) {
	isLive := func(k string) bool { _, ok := live[k]; return ok }

	indegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, key := range keys {
		c, ok := live[key]
		if !ok {
			continue
		}
		deps := dependencies(c.Descriptor, isLive)
		indegree[key] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []string
	for key, n := range indegree {
		if n == 0 {
			ready = append(ready, key)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		order = append(order, key)
		for _, next := range dependents[key] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	if len(order) < len(indegree) {
		done := make(map[string]bool, len(order))
		for _, k := range order {
			done[k] = true
		}
		for key := range indegree {
			if !done[key] {
				cyclic = append(cyclic, key)
			}
		}
		sort.Strings(cyclic)
	}
	return order, cyclic
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func versionLabel(v manifest.Version) string {
	if v.IsZero() {
		return "(unversioned)"
	}
	return v.String()
}

// Warnings renders the skip messages, one per skipped unit.
func (r Result) Warnings() []string {
	out := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = failure.UserMessage(s.Err)
	}
	return out
}

// String summarises the result for debug logs.
func (r Result) String() string {
	keys := make([]string, len(r.Ordered))
	for i, c := range r.Ordered {
		keys[i] = c.Key()
	}
	return fmt.Sprintf("load order [%s], %d skipped", strings.Join(keys, ", "), len(r.Skipped))
}
