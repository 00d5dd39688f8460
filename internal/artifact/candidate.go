package artifact

import (
	"path/filepath"
	"sort"

	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// Candidate is a parsed archive waiting for compatibility checks and
// resolution.
type Candidate struct {
	Descriptor *manifest.UnitDescriptor
	Location   Location
}

// Key returns the unit key of the candidate.
func (c Candidate) Key() string {
	return c.Descriptor.Key
}

// FileName returns the archive file name.
func (c Candidate) FileName() string {
	return filepath.Base(c.Location.Path)
}

// SortByPath orders candidates by archive path in place.
func SortByPath(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].Location.Path < cs[j].Location.Path
	})
}

// SortByKey orders candidates by key, then path, in place.
func SortByKey(cs []Candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Key() != cs[j].Key() {
			return cs[i].Key() < cs[j].Key()
		}
		return cs[i].Location.Path < cs[j].Location.Path
	})
}
