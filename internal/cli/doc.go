// Package cli defines the Cobra command tree for the pluginhost CLI. Each
// file in this package registers its top-level commands (load, list,
// uninstall, etc.) with the root command. Command implementations delegate
// to internal packages for business logic and only handle flag parsing,
// output formatting, and user interaction.
package cli
