// Package config manages host settings stored at ~/.pluginhost/config.yaml
// and overridable through PLUGINHOST_* environment variables. Besides the
// typed Settings used to build the loader, it persists named global
// properties such as the external plugin consent state.
package config
