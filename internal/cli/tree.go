package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/resolver"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the dependency tree of the loaded plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := loadPlugins(cmd)
		if err != nil {
			return err
		}
		defer l.Shutdown(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Loaded plugins:")
		fmt.Fprintln(out)
		resolver.PrintTree(out, l.Graph())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
