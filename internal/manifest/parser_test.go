package manifest

import (
	"testing"

	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/testutil/unitzip"
)

func TestReadArchive_AllFields(t *testing.T) {
	dir := t.TempDir()
	path := unitzip.WriteRaw(t, dir, "java-1.2.zip", map[string]string{
		"plugin.yaml": `key: java
name: Java Analyzer
version: 1.2
entryPoint: java.Plugin
requires:
  - "core:2.0"
  - "xml"
  - "core:3.0"
minHostApiVersion: "7.1"
description: Analyzes Java
organization: Acme
license: LGPL
`,
	})

	d, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if d.Key != "java" || d.Name != "Java Analyzer" {
		t.Errorf("Key/Name = %q/%q", d.Key, d.Name)
	}
	if d.Version.String() != "1.2" {
		t.Errorf("Version = %q, want %q", d.Version, "1.2")
	}
	if d.EntryPoint != "java.Plugin" {
		t.Errorf("EntryPoint = %q", d.EntryPoint)
	}
	if d.IsExtension() {
		t.Error("IsExtension() = true, want false")
	}
	if len(d.Requires) != 2 {
		t.Fatalf("Requires len = %d, want 2 (duplicates collapsed)", len(d.Requires))
	}
	if d.Requires[0].String() != "core:2.0" || d.Requires[1].String() != "xml" {
		t.Errorf("Requires = %v", d.Requires)
	}
	if d.MinHostAPIVersion.String() != "7.1" {
		t.Errorf("MinHostAPIVersion = %q", d.MinHostAPIVersion)
	}
	if d.Organization != "Acme" || d.License != "LGPL" {
		t.Errorf("Organization/License = %q/%q", d.Organization, d.License)
	}
}

func TestReadArchive_Extension(t *testing.T) {
	path := unitzip.Write(t, t.TempDir(), "ext.zip", unitzip.Spec{Key: "ext", BasePlugin: "base"}, nil)
	d, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if !d.IsExtension() || d.BasePlugin != "base" {
		t.Errorf("BasePlugin = %q", d.BasePlugin)
	}
	if d.EntryPoint != "" {
		t.Errorf("EntryPoint = %q, want empty", d.EntryPoint)
	}
}

func TestReadArchive_Malformed(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		entries map[string]string
	}{
		{"missing manifest", map[string]string{"README": "hi"}},
		{"missing key", map[string]string{"plugin.yaml": "name: Foo\n"}},
		{"missing name", map[string]string{"plugin.yaml": "key: foo\n"}},
		{"blank name", map[string]string{"plugin.yaml": "key: foo\nname: \"  \"\n"}},
		{"bad key", map[string]string{"plugin.yaml": "key: \"foo bar\"\nname: Foo\n"}},
		{"not yaml", map[string]string{"plugin.yaml": "key: [unclosed\n"}},
		{"empty", map[string]string{"plugin.yaml": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := unitzip.WriteRaw(t, dir, tt.name+".zip", tt.entries)
			_, err := ReadArchive(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !failure.Is(err, failure.MalformedManifest) {
				t.Errorf("kind = %q, want %q", failure.KindOf(err), failure.MalformedManifest)
			}
		})
	}
}

func TestReadArchive_NotAZip(t *testing.T) {
	_, err := ReadArchive("does-not-exist.zip")
	if !failure.Is(err, failure.MalformedManifest) {
		t.Fatalf("err = %v, want MalformedManifest", err)
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		in      string
		key     string
		version string
		wantErr bool
	}{
		{"bar:2.0", "bar", "2.0", false},
		{" bar : 1.0 ", "bar", "1.0", false},
		{"bar", "bar", "", false},
		{"bar:=2.0", "bar", "2.0", false},
		{"bar: = 2.0", "bar", "2.0", false},
		{":1.0", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req, err := ParseRequirement(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if req.Key != tt.key || req.MinVersion.String() != tt.version {
				t.Errorf("got %q:%q, want %q:%q", req.Key, req.MinVersion, tt.key, tt.version)
			}
		})
	}
}

func TestParseRequirementExactFormIsMinimum(t *testing.T) {
	req, err := ParseRequirement("bar:=2.0")
	if err != nil {
		t.Fatal(err)
	}
	if !ParseVersion("3.0").AtLeast(req.MinVersion) {
		t.Error("3.0 should satisfy bar:=2.0")
	}
	if ParseVersion("1.9").AtLeast(req.MinVersion) {
		t.Error("1.9 should not satisfy bar:=2.0")
	}
}
