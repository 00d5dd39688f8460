package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/branding"
	"github.com/agentx-labs/pluginhost/internal/consent"
	"github.com/agentx-labs/pluginhost/internal/registry"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run the plugin startup sequence and report the result",
	Long: `Commit pending uninstalls, promote staged archives, check compatibility,
resolve dependencies and instantiate every loadable plugin, then stop them again.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	l, err := loadPlugins(cmd)
	if err != nil {
		return err
	}
	defer l.Shutdown(cmd.Context())

	reg := l.Registry()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d plugins (%d bundled, %d external)\n",
		reg.Len(), len(reg.AllOfType(registry.Bundled)), len(reg.AllOfType(registry.External)))

	if warnings := l.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(out, "\nSkipped %d plugins:\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	if l.Consent() == consent.Required {
		fmt.Fprintf(out, "\nExternal plugins are installed. Run '%s consent accept' to accept the risk.\n", branding.CLIName())
	}
	return nil
}
