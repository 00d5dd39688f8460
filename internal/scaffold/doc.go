// Package scaffold generates new plugin source directories from embedded
// templates and packs a plugin directory into an installable archive. It
// powers the "pluginhost create" and "pluginhost pack" commands.
package scaffold
