package scaffold

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/agentx-labs/pluginhost/internal/config"
	"github.com/agentx-labs/pluginhost/internal/manifest"
)

// ScaffoldData holds all template variables available to scaffold templates.
type ScaffoldData struct {
	Key            string // e.g., "scm-git"
	Name           string // Display name, e.g., "Scm Git"
	Version        string // e.g., "0.1.0"
	EntryPoint     string // Base plugins only
	BasePlugin     string // Extensions only
	HostAPIVersion string
	Description    string
	Organization   string
	Year           int
}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Warnings  []string
}

// NewScaffoldData creates a ScaffoldData with derived fields populated.
// A non-empty base makes the plugin an extension of base.
func NewScaffoldData(key, base string) *ScaffoldData {
	d := &ScaffoldData{
		Key:            key,
		Name:           displayName(key),
		Version:        "0.1.0",
		BasePlugin:     base,
		HostAPIVersion: config.DefaultHostAPIVersion,
		Year:           time.Now().Year(),
	}
	if base == "" {
		d.EntryPoint = "plugins." + strings.ReplaceAll(key, "-", "_") + ".Plugin"
		d.Description = fmt.Sprintf("%s plugin", d.Name)
	} else {
		d.Description = fmt.Sprintf("%s extension of %s", d.Name, base)
	}
	return d
}

// Kind returns the template set used for d.
func (d *ScaffoldData) Kind() string {
	if d.BasePlugin != "" {
		return "extension"
	}
	return "base"
}

// displayName turns "scm-git" into "Scm Git".
func displayName(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Generate creates a new plugin directory from scaffolding templates.
func Generate(data *ScaffoldData, outputDir string) (*Result, error) {
	templatesDir := path.Join("scaffolds", data.Kind())

	entries, err := fs.ReadDir(scaffoldFS, templatesDir)
	if err != nil {
		return nil, fmt.Errorf("template set %q not found: %w", data.Kind(), err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Check for existing files to prevent accidental overwrites.
	existingEntries, err := os.ReadDir(outputDir)
	if err == nil && len(existingEntries) > 0 {
		return nil, fmt.Errorf("output directory %s is not empty; remove existing files first", outputDir)
	}

	result := &Result{OutputDir: outputDir}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		tmplPath := path.Join(templatesDir, entry.Name())
		tmplBytes, err := fs.ReadFile(scaffoldFS, tmplPath)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", tmplPath, err)
		}

		// Strip .tmpl extension for the output filename.
		outName := strings.TrimSuffix(entry.Name(), ".tmpl")
		outPath := filepath.Join(outputDir, outName)

		tmpl, err := template.New(entry.Name()).Parse(string(tmplBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("executing template %s: %w", entry.Name(), err)
		}

		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", outPath, err)
		}

		result.Files = append(result.Files, outName)
	}

	// Validate the generated manifest against JSON Schema.
	raw, err := os.ReadFile(filepath.Join(outputDir, manifest.EntryName))
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not read manifest: %v", err))
		return result, nil
	}
	valResult, valErr := manifest.Validate(raw)
	if valErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not validate manifest: %v", valErr))
	} else if !valResult.Valid {
		for _, issue := range valResult.Issues {
			msg := issue.Message
			if issue.Path != "" {
				msg = issue.Path + ": " + msg
			}
			result.Warnings = append(result.Warnings, msg)
		}
	}

	return result, nil
}
