package loader

import (
	"github.com/charmbracelet/log"

	"github.com/agentx-labs/pluginhost/internal/config"
	"github.com/agentx-labs/pluginhost/internal/consent"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/layout"
)

// Options configures a Loader.
type Options struct {
	Dirs              layout.Dirs
	HostAPIVersion    string
	Blacklist         []string
	Compression       bool
	Parallelism       int
	ArchiveExtensions []string

	// Factories resolves entry points. Defaults to isolation.Default.
	Factories *isolation.Table

	// Fallback instantiates units whose entry point has no factory. When nil
	// such units fail the load with InstantiationFailure.
	Fallback isolation.Factory

	// Consent persists the risk consent. When nil the check is skipped.
	Consent consent.PropertyStore

	// Logger defaults to the logger carried by the Load context.
	Logger *log.Logger
}

// FromSettings fills the directory and policy options from settings.
func FromSettings(s config.Settings) Options {
	return Options{
		Dirs:              s.Dirs,
		HostAPIVersion:    s.HostAPIVersion,
		Blacklist:         s.Blacklist,
		Compression:       s.Compression,
		Parallelism:       s.Parallelism,
		ArchiveExtensions: s.ArchiveExtensions,
	}
}
