package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/branding"
	"github.com/agentx-labs/pluginhost/internal/scaffold"
)

var (
	createExtends string
	createOutput  string
	createOrg     string
	packOutput    string
)

var createCmd = &cobra.Command{
	Use:   "create <key>",
	Short: "Generate a new plugin directory",
	Long: `Generate a plugin.yaml and README for a new plugin. Use --extends to create
an extension of an existing base plugin.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var packCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "Pack a plugin directory into an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runPack,
}

func init() {
	createCmd.Flags().StringVar(&createExtends, "extends", "", "Base plugin key (creates an extension)")
	createCmd.Flags().StringVarP(&createOutput, "output", "o", "", "Output directory (default: ./<key>)")
	createCmd.Flags().StringVar(&createOrg, "org", "", "Organization name")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "Archive path (default: ./<dir>.zip)")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(packCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	key := args[0]
	outDir := createOutput
	if outDir == "" {
		outDir = key
	}

	data := scaffold.NewScaffoldData(key, createExtends)
	data.Organization = createOrg

	result, err := scaffold.Generate(data, outDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created %s plugin %s in %s\n", data.Kind(), key, result.OutputDir)
	for _, f := range result.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  ⚠ %s\n", w)
	}
	fmt.Fprintf(out, "\nNext: %s pack %s\n", branding.CLIName(), outDir)
	return nil
}

func runPack(cmd *cobra.Command, args []string) error {
	dir := args[0]
	dest := packOutput
	if dest == "" {
		dest = filepath.Join(".", filepath.Base(filepath.Clean(dir))+".zip")
	}

	d, err := scaffold.Pack(dir, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Packed %s into %s\n", d, dest)
	return nil
}
