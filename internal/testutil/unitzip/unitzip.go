// Package unitzip builds unit archives for tests.
package unitzip

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Spec describes the plugin.yaml of a test archive.
type Spec struct {
	Key               string
	Name              string // defaults to Key
	Version           string
	EntryPoint        string
	BasePlugin        string
	Requires          []string
	MinHostAPIVersion string
}

// YAML renders s as a plugin.yaml document.
func (s Spec) YAML() string {
	var b strings.Builder
	name := s.Name
	if name == "" {
		name = s.Key
	}
	fmt.Fprintf(&b, "key: %s\nname: %s\n", s.Key, name)
	if s.Version != "" {
		fmt.Fprintf(&b, "version: %q\n", s.Version)
	}
	if s.EntryPoint != "" {
		fmt.Fprintf(&b, "entryPoint: %s\n", s.EntryPoint)
	}
	if s.BasePlugin != "" {
		fmt.Fprintf(&b, "basePlugin: %s\n", s.BasePlugin)
	}
	if s.MinHostAPIVersion != "" {
		fmt.Fprintf(&b, "minHostApiVersion: %q\n", s.MinHostAPIVersion)
	}
	if len(s.Requires) > 0 {
		b.WriteString("requires:\n")
		for _, r := range s.Requires {
			fmt.Fprintf(&b, "  - %q\n", r)
		}
	}
	return b.String()
}

// Write creates dir/file as a zip archive holding the spec's plugin.yaml and
// the extra entries (name -> content). It returns the archive path.
func Write(t *testing.T, dir, file string, spec Spec, extra map[string]string) string {
	t.Helper()
	entries := map[string]string{"plugin.yaml": spec.YAML()}
	for name, content := range extra {
		entries[name] = content
	}
	return WriteRaw(t, dir, file, entries)
}

// WriteRaw creates dir/file as a zip archive with exactly the given entries.
func WriteRaw(t *testing.T, dir, file string, entries map[string]string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, file)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
