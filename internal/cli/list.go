package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/pluginhost/internal/registry"
)

var (
	listTypeFilter string
	listJSON       bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded plugins",
	Long:  `Load the plugins and list every plugin that survived resolution.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listTypeFilter, "type", "", "Filter by type (bundled, external)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents a loaded plugin for display.
type listEntry struct {
	Key        string        `json:"key"`
	Name       string        `json:"name"`
	Version    string        `json:"version"`
	Type       registry.Type `json:"type"`
	BasePlugin string        `json:"basePlugin,omitempty"`
	DependsOn  []string      `json:"dependsOn,omitempty"`
	File       string        `json:"file"`
}

func runList(cmd *cobra.Command, args []string) error {
	if listTypeFilter != "" && listTypeFilter != string(registry.Bundled) && listTypeFilter != string(registry.External) {
		return fmt.Errorf("unknown plugin type %q (want bundled or external)", listTypeFilter)
	}

	l, err := loadPlugins(cmd)
	if err != nil {
		return err
	}
	defer l.Shutdown(cmd.Context())

	units := l.Registry().All()
	if listTypeFilter != "" {
		units = l.Registry().AllOfType(registry.Type(listTypeFilter))
	}

	graph := l.Graph()
	var entries []listEntry
	for _, u := range units {
		entries = append(entries, listEntry{
			Key:        u.Key(),
			Name:       u.Descriptor.Name,
			Version:    u.Descriptor.Version.String(),
			Type:       u.Type,
			BasePlugin: u.Descriptor.BasePlugin,
			DependsOn:  graph.DependsOn(u.Key()),
			File:       u.Location.Path,
		})
	}

	if listJSON {
		return printListJSON(cmd, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No plugins loaded.")
		return nil
	}
	return printListTable(cmd, entries)
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tVERSION\tTYPE")
	for _, e := range entries {
		version := e.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, e.Name, version, e.Type)
	}
	return w.Flush()
}

func printListJSON(cmd *cobra.Command, entries []listEntry) error {
	if entries == nil {
		entries = []listEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
