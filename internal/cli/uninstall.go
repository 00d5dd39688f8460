package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/branding"
)

var uninstallPending bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [plugin-key]",
	Short: "Uninstall a plugin and every plugin depending on it",
	Long: `Move the archive of an external plugin, and of every plugin depending on it,
to the uninstalled directory. The removal is committed at the next load and can
be reverted until then with cancel-uninstall. Use --pending to list waiting removals.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if uninstallPending {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runUninstall,
}

var cancelUninstallCmd = &cobra.Command{
	Use:   "cancel-uninstall",
	Short: "Restore every plugin uninstalled since the last load",
	Args:  cobra.NoArgs,
	RunE:  runCancelUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallPending, "pending", false, "List uninstalls waiting for the next load")
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(cancelUninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if uninstallPending {
		l, _, err := newLoader(cmd)
		if err != nil {
			return err
		}
		files, err := l.PendingFiles()
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(out, "No pending uninstalls.")
			return nil
		}
		for _, f := range files {
			fmt.Fprintln(out, filepath.Base(f))
		}
		return nil
	}

	l, err := loadPlugins(cmd)
	if err != nil {
		return err
	}
	defer l.Shutdown(cmd.Context())

	keys, err := l.Uninstall(args[0])
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintf(out, "%s is already uninstalled\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "Uninstalled %s\n", strings.Join(keys, ", "))
	fmt.Fprintf(out, "The removal completes at the next load. Run '%s cancel-uninstall' to revert it.\n", branding.CLIName())
	return nil
}

func runCancelUninstall(cmd *cobra.Command, args []string) error {
	l, _, err := newLoader(cmd)
	if err != nil {
		return err
	}
	files, err := l.PendingFiles()
	if err != nil {
		return err
	}
	if _, err := l.CancelUninstall(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No pending uninstalls.")
		return nil
	}
	for _, f := range files {
		fmt.Fprintf(out, "Restored %s\n", filepath.Base(f))
	}
	return nil
}
