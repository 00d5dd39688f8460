// Package layout resolves the lifecycle directories of the host: staged
// (downloaded, waiting for the next start), installed-external, installed-
// bundled, uninstalled (pending removal) and temp (exploded and deployed
// units). The directories belong to the host; the plugin subsystem only
// receives them.
package layout
