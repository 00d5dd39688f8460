package registry

import (
	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// Type tells where a loaded unit came from.
type Type string

const (
	Bundled  Type = "bundled"
	External Type = "external"
)

// TypeOf maps a lifecycle root to a unit type.
func TypeOf(root artifact.RootTag) Type {
	if root == artifact.InstalledBundled {
		return Bundled
	}
	return External
}

// LoadedUnit is a unit that survived resolution and was instantiated.
type LoadedUnit struct {
	Descriptor *manifest.UnitDescriptor
	Type       Type
	Instance   isolation.Plugin
	Context    *isolation.Context
	Artifacts  artifact.HashPair
	Location   artifact.Location
}

// Key returns the unit key.
func (u *LoadedUnit) Key() string {
	return u.Descriptor.Key
}
