// Package registry is the in-memory store of loaded units. The loader fills
// it during startup and then publishes it; afterwards only uninstall and
// cancel-uninstall mutate it, serialised with readers by a lock.
package registry
