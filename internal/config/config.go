package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentx-labs/pluginhost/internal/branding"
	"github.com/agentx-labs/pluginhost/internal/layout"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Keys understood by the host.
const (
	KeyHome            = "dirs.home"
	KeyStagedDir       = "dirs.staged"
	KeyExternalDir     = "dirs.external"
	KeyBundledDir      = "dirs.bundled"
	KeyUninstalledDir  = "dirs.uninstalled"
	KeyTempDir         = "dirs.temp"
	KeyHostAPIVersion  = "host.api_version"
	KeyBlacklist       = "plugins.blacklist"
	KeyCompression     = "plugins.compression"
	KeyParallelism     = "plugins.parallelism"
	KeyArchiveExts     = "plugins.archive_extensions"
	DefaultParallelism = 4
)

// DefaultHostAPIVersion is the plugin API version implemented by this host.
const DefaultHostAPIVersion = "10.0"

// DefaultBlacklist lists legacy units whose features moved into the host.
var DefaultBlacklist = []string{"sqale", "report", "buildbreaker", "issuesreport", "scmactivity"}

// DefaultArchiveExtensions are the file extensions recognised as unit archives.
var DefaultArchiveExtensions = []string{".zip", ".jar"}

// Settings is the typed view of the configuration.
type Settings struct {
	Dirs              layout.Dirs
	HostAPIVersion    string
	Blacklist         []string
	Compression       bool
	Parallelism       int
	ArchiveExtensions []string
}

// Config wraps a viper instance bound to one config file.
type Config struct {
	v    *viper.Viper
	path string
}

// Dir returns the path to the host config directory (~/.pluginhost/).
func Dir() string {
	home, err := layout.GetHomeRoot()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return home
}

// FilePath returns the full path to the config file (~/.pluginhost/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// Load reads the default config file and the environment.
func Load() *Config {
	return New(FilePath())
}

// New initializes a Config reading from path and the environment. A missing
// file is not an error; it is created on the first Set.
func New(path string) *Config {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyHostAPIVersion, DefaultHostAPIVersion)
	v.SetDefault(KeyBlacklist, DefaultBlacklist)
	v.SetDefault(KeyCompression, false)
	v.SetDefault(KeyParallelism, DefaultParallelism)
	v.SetDefault(KeyArchiveExts, DefaultArchiveExtensions)

	// Ignore error if config file doesn't exist yet.
	_ = v.ReadInConfig()

	return &Config{v: v, path: path}
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// Get returns a config value by key. Returns empty string if not set.
func (c *Config) Get(key string) string {
	return c.v.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func (c *Config) Set(key, value string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", filepath.Dir(c.path), err)
	}

	c.v.Set(key, value)

	// Create the file if it doesn't exist.
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		f, err := os.Create(c.path)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", c.path, err)
		}
		f.Close()
	}

	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Property returns a named global property and whether it was ever set.
func (c *Config) Property(key string) (string, bool, error) {
	if !c.v.IsSet(key) {
		return "", false, nil
	}
	return c.v.GetString(key), true, nil
}

// SetProperty persists a named global property.
func (c *Config) SetProperty(key, value string) error {
	return c.Set(key, value)
}

// Settings resolves the typed settings. Directories not configured
// explicitly default to the conventional layout under the host home.
func (c *Config) Settings() (Settings, error) {
	home := c.v.GetString(KeyHome)
	if home == "" {
		h, err := layout.GetHomeRoot()
		if err != nil {
			return Settings{}, err
		}
		home = h
	}

	dirs := layout.Default(home)
	override(&dirs.Staged, c.v.GetString(KeyStagedDir))
	override(&dirs.External, c.v.GetString(KeyExternalDir))
	override(&dirs.Bundled, c.v.GetString(KeyBundledDir))
	override(&dirs.Uninstalled, c.v.GetString(KeyUninstalledDir))
	override(&dirs.Temp, c.v.GetString(KeyTempDir))
	if err := dirs.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid directory layout: %w", err)
	}

	parallelism := c.v.GetInt(KeyParallelism)
	if parallelism < 1 {
		parallelism = 1
	}

	return Settings{
		Dirs:              dirs,
		HostAPIVersion:    c.v.GetString(KeyHostAPIVersion),
		Blacklist:         c.v.GetStringSlice(KeyBlacklist),
		Compression:       c.v.GetBool(KeyCompression),
		Parallelism:       parallelism,
		ArchiveExtensions: c.v.GetStringSlice(KeyArchiveExts),
	}, nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
