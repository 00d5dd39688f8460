package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.yaml.in/yaml/v3"

	"github.com/agentx-labs/pluginhost/internal/failure"
)

// maxManifestSize bounds how much of plugin.yaml is read.
const maxManifestSize = 1 << 20

// ReadArchive opens the unit archive at path and returns its descriptor.
// Any missing or invalid metadata is reported as a MalformedManifest failure.
func ReadArchive(path string) (*UnitDescriptor, error) {
	data, err := readEntry(path, EntryName)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse validates a plugin.yaml document and builds the descriptor. source
// names the document in error messages.
func Parse(data []byte, source string) (*UnitDescriptor, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedManifest, err, "cannot read metadata of %s", source)
	}
	if !result.Valid {
		return nil, failure.New(failure.MalformedManifest, "invalid metadata in %s: %s", source, result.Summary())
	}

	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, failure.Wrap(failure.MalformedManifest, err, "cannot read metadata of %s", source)
	}
	return build(&raw, source)
}

// build turns the raw document into a descriptor with typed fields.
func build(raw *rawManifest, source string) (*UnitDescriptor, error) {
	key := strings.TrimSpace(raw.Key)
	name := strings.TrimSpace(raw.Name)
	if key == "" {
		return nil, failure.New(failure.MalformedManifest, "plugin key is missing in %s", source)
	}
	if name == "" {
		return nil, failure.New(failure.MalformedManifest, "plugin name is missing in %s", source)
	}

	requires, err := parseRequirements(raw.Requires)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedManifest, err, "invalid required units in %s", source)
	}

	return &UnitDescriptor{
		Key:               key,
		Name:              name,
		Version:           ParseVersion(raw.Version),
		EntryPoint:        strings.TrimSpace(raw.EntryPoint),
		BasePlugin:        strings.TrimSpace(raw.BasePlugin),
		Requires:          requires,
		MinHostAPIVersion: ParseVersion(raw.MinHostAPIVersion),
		Description:       raw.Description,
		Organization:      raw.Organization,
		Homepage:          raw.Homepage,
		License:           raw.License,
	}, nil
}

// readEntry returns the content of a single archive entry.
func readEntry(path, entry string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, failure.Wrap(failure.MalformedManifest, err, "cannot open plugin archive %s", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, failure.Wrap(failure.MalformedManifest, err, "cannot read %s in %s", entry, path)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxManifestSize))
		if err != nil {
			return nil, failure.Wrap(failure.MalformedManifest, err, "cannot read %s in %s", entry, path)
		}
		return data, nil
	}
	return nil, failure.New(failure.MalformedManifest, "%s not found in plugin archive %s", entry, path)
}

// String renders a one-line description for logs.
func (d *UnitDescriptor) String() string {
	if d.Version.IsZero() {
		return fmt.Sprintf("%s [%s]", d.Name, d.Key)
	}
	return fmt.Sprintf("%s [%s] %s", d.Name, d.Key, d.Version)
}
