package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/branding"
)

// Directory names under the host home.
const (
	ExtensionsDir  = "extensions"
	StagedDir      = "downloads"
	ExternalDir    = "plugins"
	UninstalledDir = "uninstalled"
	BundledDir     = "lib/bundled"
	TempDir        = "temp"

	deployDir  = "deploy"
	explodeDir = "exploded"
)

// DirPermNormal is used for every lifecycle directory.
const DirPermNormal os.FileMode = 0755

// Dirs holds the absolute lifecycle directories.
type Dirs struct {
	Staged      string
	External    string
	Bundled     string
	Uninstalled string
	Temp        string
}

// GetHomeRoot returns the host home directory. It checks the PLUGINHOST_HOME
// environment variable first, then falls back to ~/.pluginhost.
func GetHomeRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// Default returns the conventional layout under home.
func Default(home string) Dirs {
	return Dirs{
		Staged:      filepath.Join(home, ExtensionsDir, StagedDir),
		External:    filepath.Join(home, ExtensionsDir, ExternalDir),
		Bundled:     filepath.Join(home, filepath.FromSlash(BundledDir)),
		Uninstalled: filepath.Join(home, ExtensionsDir, UninstalledDir),
		Temp:        filepath.Join(home, TempDir),
	}
}

// Root returns the directory for a lifecycle root tag.
func (d Dirs) Root(tag artifact.RootTag) string {
	switch tag {
	case artifact.Staged:
		return d.Staged
	case artifact.InstalledExternal:
		return d.External
	case artifact.InstalledBundled:
		return d.Bundled
	case artifact.Uninstalled:
		return d.Uninstalled
	default:
		return ""
	}
}

// DeployDir is where loaded archives and their compressed siblings are deployed.
func (d Dirs) DeployDir() string {
	return filepath.Join(d.Temp, deployDir)
}

// ExplodeRoot holds one extracted archive per loaded unit.
func (d Dirs) ExplodeRoot() string {
	return filepath.Join(d.Temp, explodeDir)
}

// ExplodeDir is where the archive of unit key is extracted.
func (d Dirs) ExplodeDir(key string) string {
	return filepath.Join(d.ExplodeRoot(), key)
}

// Validate checks that every directory is set and absolute.
func (d Dirs) Validate() error {
	for name, dir := range map[string]string{
		"staged":      d.Staged,
		"external":    d.External,
		"bundled":     d.Bundled,
		"uninstalled": d.Uninstalled,
		"temp":        d.Temp,
	} {
		if dir == "" {
			return fmt.Errorf("%s directory is not configured", name)
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s directory %q is not absolute", name, dir)
		}
	}
	return nil
}

// EnsureMutable creates the directories the stager writes to. The bundled
// root is shipped with the host and never created here.
func (d Dirs) EnsureMutable() error {
	for _, dir := range []string{d.Staged, d.External, d.Uninstalled, d.Temp} {
		if err := os.MkdirAll(dir, DirPermNormal); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
