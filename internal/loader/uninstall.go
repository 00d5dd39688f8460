package loader

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/registry"
)

// Uninstall moves the archive of key, and of every unit depending on it
// through a base or required relation, into the uninstalled root and takes
// those units out of the registry. The removal is committed by the next
// Load; until then CancelUninstall restores it. Instances keep running
// until Shutdown. It returns the uninstalled keys, sorted.
func (l *Loader) Uninstall(key string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.pending[key]; ok {
		l.log.Warn("already uninstalled", "key", key)
		return nil, nil
	}
	u, err := l.registry.Get(key)
	if err != nil {
		return nil, err
	}
	if u.Type == registry.Bundled {
		return nil, fmt.Errorf("plugin %s is bundled with the host and cannot be uninstalled", key)
	}

	keys := []string{key}
	var paths []string
	paths = append(paths, u.Location.Path)
	for _, dep := range l.result.Graph.Dependents(key) {
		du, ok := l.registry.Find(dep)
		if !ok {
			continue
		}
		if du.Type == registry.Bundled {
			return nil, fmt.Errorf("plugin %s cannot be uninstalled: bundled plugin %s depends on it", key, dep)
		}
		keys = append(keys, dep)
		paths = append(paths, du.Location.Path)
	}

	moved, err := l.stager.Uninstall(paths)
	movedSet := make(map[string]bool, len(moved))
	for _, p := range moved {
		movedSet[filepath.Base(p)] = true
	}

	var done []string
	for _, k := range keys {
		lu, _ := l.registry.Find(k)
		name := filepath.Base(lu.Location.Path)
		if !movedSet[name] && err != nil {
			// Still installed; keep it loaded.
			continue
		}
		l.registry.Remove(k)
		lu.Location = artifact.Location{
			Path: filepath.Join(l.opts.Dirs.Uninstalled, name),
			Root: artifact.Uninstalled,
		}
		l.pending[k] = lu
		done = append(done, k)
	}
	if len(done) > 0 {
		l.log.Info("uninstalled plugins; restart to complete", "plugins", done)
	}
	sort.Strings(done)
	return done, err
}

// CancelUninstall moves every archive of the uninstalled root back into the
// external root and puts the corresponding units back into the registry.
// Running it twice has the same effect as running it once.
func (l *Loader) CancelUninstall() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored, err := l.stager.CancelUninstalls()
	back := make(map[string]string, len(restored))
	for _, p := range restored {
		back[filepath.Base(p)] = p
	}

	var keys []string
	for _, k := range sortedKeys(l.pending) {
		u := l.pending[k]
		path, ok := back[filepath.Base(u.Location.Path)]
		if !ok {
			continue
		}
		u.Location = artifact.Location{Path: path, Root: artifact.InstalledExternal}
		l.registry.Reinstate(u)
		delete(l.pending, k)
		keys = append(keys, k)
	}
	return keys, err
}

// Pending returns the keys uninstalled since Load, sorted.
func (l *Loader) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedKeys(l.pending)
}

// PendingFiles lists the archives waiting in the uninstalled root, including
// those left by an earlier process.
func (l *Loader) PendingFiles() ([]string, error) {
	return l.stager.Pending()
}
