package manifest

// EntryName is the archive entry holding a unit's metadata.
const EntryName = "plugin.yaml"

// rawManifest mirrors plugin.yaml. Scalars are decoded as strings so that
// "version: 1.0" keeps its textual form.
type rawManifest struct {
	Key               string   `yaml:"key"`
	Name              string   `yaml:"name"`
	Version           string   `yaml:"version,omitempty"`
	EntryPoint        string   `yaml:"entryPoint,omitempty"`
	BasePlugin        string   `yaml:"basePlugin,omitempty"`
	Requires          []string `yaml:"requires,omitempty"`
	MinHostAPIVersion string   `yaml:"minHostApiVersion,omitempty"`
	Description       string   `yaml:"description,omitempty"`
	Organization      string   `yaml:"organization,omitempty"`
	Homepage          string   `yaml:"homepage,omitempty"`
	License           string   `yaml:"license,omitempty"`
}

// UnitDescriptor is the parsed metadata of one extension unit.
type UnitDescriptor struct {
	Key     string
	Name    string
	Version Version

	// EntryPoint names the factory that instantiates the unit. It may only be
	// empty when BasePlugin is set.
	EntryPoint string

	// BasePlugin marks the unit as an extension sharing its base's context.
	BasePlugin string

	// Requires lists required units in declaration order, unique by key.
	Requires []Requirement

	MinHostAPIVersion Version

	Description  string
	Organization string
	Homepage     string
	License      string
}

// IsExtension reports whether the unit attaches to a base unit.
func (d *UnitDescriptor) IsExtension() bool {
	return d.BasePlugin != ""
}

// Requirement is a required unit declared as "key:minVersion".
type Requirement struct {
	Key        string
	MinVersion Version // zero means any version
}

// String renders the requirement in manifest form.
func (r Requirement) String() string {
	if r.MinVersion.IsZero() {
		return r.Key
	}
	return r.Key + ":" + r.MinVersion.String()
}
