//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/agentx-labs/pluginhost/internal/config"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/layout"
	"github.com/agentx-labs/pluginhost/internal/loader"
	"github.com/agentx-labs/pluginhost/internal/logging"
	"github.com/agentx-labs/pluginhost/internal/registry"
	"github.com/agentx-labs/pluginhost/internal/testutil/unitzip"
)

// testEnv holds an isolated host home shared by every simulated restart.
type testEnv struct {
	HomeDir string
	Dirs    layout.Dirs
	Config  *config.Config
	Events  *events
}

// setupTestEnv creates a temp host home and points PLUGINHOST_HOME at it so
// every operation is sandboxed. The env var is restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("PLUGINHOST_HOME", home)

	env := &testEnv{
		HomeDir: home,
		Dirs:    layout.Default(home),
		Config:  config.New(filepath.Join(home, "config.yaml")),
		Events:  &events{},
	}
	for _, dir := range []string{env.Dirs.Staged, env.Dirs.External, env.Dirs.Bundled} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}
	return env
}

// events records plugin lifecycle calls across restarts.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.log = append(e.log, s)
	e.mu.Unlock()
}

func (e *events) take() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.log
	e.log = nil
	return out
}

type recordingPlugin struct {
	key string
	ev  *events
}

func (p *recordingPlugin) Start(context.Context) error { p.ev.add("start " + p.key); return nil }
func (p *recordingPlugin) Stop(context.Context) error  { p.ev.add("stop " + p.key); return nil }

// boot simulates one host process start: a fresh loader over the same home.
func (env *testEnv) boot(t *testing.T) *loader.Loader {
	t.Helper()

	settings, err := env.Config.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	opts := loader.FromSettings(settings)
	opts.Factories = isolation.NewTable()
	opts.Fallback = func(c *isolation.Context) (isolation.Plugin, error) {
		return &recordingPlugin{key: c.Owner, ev: env.Events}, nil
	}
	opts.Consent = env.Config
	opts.Logger = logging.Discard()
	return loader.New(opts)
}

// bootAndLoad boots and loads, failing the test on error.
func (env *testEnv) bootAndLoad(t *testing.T) (*loader.Loader, *registry.Registry) {
	t.Helper()
	l := env.boot(t)
	reg, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return l, reg
}

// shutdown stops a booted loader, failing the test on error.
func shutdown(t *testing.T, l *loader.Loader) {
	t.Helper()
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

// writeUnit creates a plugin archive at dir/file.
func writeUnit(t *testing.T, dir, file string, spec unitzip.Spec) string {
	t.Helper()
	return unitzip.Write(t, dir, file, spec, map[string]string{"classes/" + spec.Key + ".txt": spec.Key})
}

// keysOf lists the registry keys in load order.
func keysOf(reg *registry.Registry) string {
	var keys []string
	for _, u := range reg.All() {
		keys = append(keys, u.Key()+"@"+u.Descriptor.Version.String())
	}
	return strings.Join(keys, " ")
}

// listDir returns the sorted names in dir; a missing dir is empty.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// assertEvents compares the recorded lifecycle calls since the last check.
func assertEvents(t *testing.T, env *testEnv, want ...string) {
	t.Helper()
	got := env.Events.take()
	if strings.Join(got, ", ") != strings.Join(want, ", ") {
		t.Errorf("events = %v, want %v", got, want)
	}
}
