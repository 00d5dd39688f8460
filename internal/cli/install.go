package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/branding"
	"github.com/agentx-labs/pluginhost/internal/manifest"
	"github.com/agentx-labs/pluginhost/internal/platform"
)

var installYes bool

var installCmd = &cobra.Command{
	Use:   "install <archive>",
	Short: "Stage a plugin archive for installation",
	Long: `Copy a plugin archive into the staged directory. It is installed, replacing any
older version of the same plugin, at the next load.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	src, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	d, err := manifest.ReadArchive(src)
	if err != nil {
		return err
	}

	settings, err := loadConfig().Settings()
	if err != nil {
		return err
	}
	staged := settings.Dirs.Staged
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "  Plugin:   %s\n", d)
	if len(d.Requires) > 0 {
		reqs := make([]string, len(d.Requires))
		for i, r := range d.Requires {
			reqs[i] = r.String()
		}
		fmt.Fprintf(out, "  Requires: %s\n", strings.Join(reqs, ", "))
	}
	if d.BasePlugin != "" {
		fmt.Fprintf(out, "  Extends:  %s\n", d.BasePlugin)
	}
	fmt.Fprintln(out)

	// Prompt for confirmation unless -y is set.
	if !installYes {
		fmt.Fprint(out, "? Stage this plugin for installation? (Y/n) ")
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if scanner.Scan() {
			answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if answer != "" && answer != "y" && answer != "yes" {
				fmt.Fprintln(out, "Installation cancelled.")
				return nil
			}
		}
	}

	if err := os.MkdirAll(staged, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", staged, err)
	}
	dest := filepath.Join(staged, filepath.Base(src))
	if err := platform.CopyFile(src, dest); err != nil {
		return fmt.Errorf("staging %s: %w", src, err)
	}

	fmt.Fprintf(out, "✓ Staged %s. Run '%s load' to install it.\n", filepath.Base(src), branding.CLIName())
	return nil
}
