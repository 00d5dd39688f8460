// Package compat decides whether a set of candidate archives may be loaded
// at all. Every violation is an IncompatibleUnit failure that aborts the
// whole load; the operator has to move or delete files to recover.
package compat

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// Policy holds the static inputs of the compatibility rules.
type Policy struct {
	Blacklist      map[string]struct{}
	HostAPIVersion manifest.Version
}

// NewPolicy builds a Policy from a list of blacklisted keys and the host API
// version string.
func NewPolicy(blacklist []string, hostAPIVersion string) *Policy {
	set := make(map[string]struct{}, len(blacklist))
	for _, k := range blacklist {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return &Policy{Blacklist: set, HostAPIVersion: manifest.ParseVersion(hostAPIVersion)}
}

// Check applies every rule to the merged candidate set: blacklisted keys,
// collisions with bundled units, duplicate keys within a root, and a
// minimum host API version above the running host. Violations of all rules
// are joined into one error.
func (p *Policy) Check(cs []artifact.Candidate) error {
	return errors.Join(
		p.CheckBlacklist(cs),
		CheckBuiltIn(cs),
		CheckDuplicates(cs),
		p.CheckHostAPI(cs),
	)
}

// CheckBlacklist fails when any candidate key is blacklisted, naming every
// blacklisted key found.
func (p *Policy) CheckBlacklist(cs []artifact.Candidate) error {
	found := make(map[string]bool)
	for _, c := range cs {
		if _, ok := p.Blacklist[c.Key()]; ok {
			found[c.Key()] = true
		}
	}
	if len(found) == 0 {
		return nil
	}
	return failure.New(failure.IncompatibleUnit,
		"The following plugins are no longer compatible with this version: %s", joinSorted(found))
}

// CheckBuiltIn fails for every external or staged archive whose key is also
// provided by a bundled archive.
func CheckBuiltIn(cs []artifact.Candidate) error {
	bundled := make(map[string]bool)
	for _, c := range cs {
		if c.Location.Root == artifact.InstalledBundled {
			bundled[c.Key()] = true
		}
	}
	if len(bundled) == 0 {
		return nil
	}

	ordered := append([]artifact.Candidate(nil), cs...)
	artifact.SortByPath(ordered)

	var errs []error
	for _, c := range ordered {
		if c.Location.Root == artifact.InstalledBundled || !bundled[c.Key()] {
			continue
		}
		errs = append(errs, failure.New(failure.IncompatibleUnit,
			"Fail to update plugin: %s. Built-in feature with same key already exists: %s. Move or delete plugin from %s directory",
			c.Descriptor.Name, c.Key(), filepath.Dir(c.Location.Path)))
	}
	return errors.Join(errs...)
}

// CheckDuplicates fails when two or more archives for one key live in the
// same root, naming every file.
func CheckDuplicates(cs []artifact.Candidate) error {
	type group struct {
		root artifact.RootTag
		key  string
	}
	groups := make(map[group][]artifact.Candidate)
	for _, c := range cs {
		g := group{root: c.Location.Root, key: c.Key()}
		groups[g] = append(groups[g], c)
	}

	var dupes [][]artifact.Candidate
	for _, members := range groups {
		if len(members) > 1 {
			artifact.SortByPath(members)
			dupes = append(dupes, members)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	sort.Slice(dupes, func(i, j int) bool {
		return dupes[i][0].Location.Path < dupes[j][0].Location.Path
	})

	var errs []error
	for _, members := range dupes {
		first := members[0]
		files := make([]string, len(members))
		for i, m := range members {
			files[i] = m.FileName()
		}
		errs = append(errs, failure.New(failure.IncompatibleUnit,
			"Found two versions of the plugin %s [%s] in the directory %s. Please remove one of %s.",
			first.Descriptor.Name, first.Key(), filepath.Dir(first.Location.Path), strings.Join(files, ", ")))
	}
	return errors.Join(errs...)
}

// CheckHostAPI fails for every candidate that requires a newer host API
// than the running one.
func (p *Policy) CheckHostAPI(cs []artifact.Candidate) error {
	ordered := append([]artifact.Candidate(nil), cs...)
	artifact.SortByKey(ordered)

	var errs []error
	for _, c := range ordered {
		min := c.Descriptor.MinHostAPIVersion
		if min.IsZero() || p.HostAPIVersion.AtLeast(min) {
			continue
		}
		errs = append(errs, failure.New(failure.IncompatibleUnit,
			"Plugin %s [%s] version %s requires at least host API version %s (current: %s)",
			c.Descriptor.Name, c.Key(), versionLabel(c.Descriptor.Version), min, p.HostAPIVersion))
	}
	return errors.Join(errs...)
}

func versionLabel(v manifest.Version) string {
	if v.IsZero() {
		return "(unversioned)"
	}
	return v.String()
}

func joinSorted(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

