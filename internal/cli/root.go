package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/branding"
	"github.com/agentx-labs/pluginhost/internal/config"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/loader"
	"github.com/agentx-labs/pluginhost/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagVerbose bool
	flagConfig  string
	flagStrict  bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` discovers, resolves and loads plugin archives from the staged,
installed and bundled plugin directories, and manages their installation lifecycle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if flagVerbose {
			level = log.DebugLevel
		}
		logger := logging.New(os.Stderr, level)
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/"+branding.HomeDir()+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "Fail on plugins whose entry point has no registered factory")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", failure.UserMessage(err))
	}
	return err
}

// loadConfig opens the config file selected by --config.
func loadConfig() *config.Config {
	if flagConfig != "" {
		return config.New(flagConfig)
	}
	return config.Load()
}

// newLoader builds a loader from the configuration.
func newLoader(cmd *cobra.Command) (*loader.Loader, *config.Config, error) {
	cfg := loadConfig()
	settings, err := cfg.Settings()
	if err != nil {
		return nil, nil, err
	}

	opts := loader.FromSettings(settings)
	opts.Consent = cfg
	opts.Logger = logging.FromContext(cmd.Context())
	if !flagStrict {
		opts.Fallback = isolation.Passive
	}
	return loader.New(opts), cfg, nil
}

// loadPlugins builds a loader and runs the startup pipeline.
func loadPlugins(cmd *cobra.Command) (*loader.Loader, error) {
	l, _, err := newLoader(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := l.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return l, nil
}
