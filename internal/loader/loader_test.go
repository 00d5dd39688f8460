package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/agentx-labs/pluginhost/internal/config"
	"github.com/agentx-labs/pluginhost/internal/consent"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/layout"
	"github.com/agentx-labs/pluginhost/internal/logging"
	"github.com/agentx-labs/pluginhost/internal/registry"
	"github.com/agentx-labs/pluginhost/internal/testutil/unitzip"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type recPlugin struct {
	name string
	rec  *recorder
}

func (p *recPlugin) Start(context.Context) error { p.rec.add("start " + p.name); return nil }
func (p *recPlugin) Stop(context.Context) error  { p.rec.add("stop " + p.name); return nil }

func table(rec *recorder, entries ...string) *isolation.Table {
	t := isolation.NewTable()
	for _, e := range entries {
		name := e
		t.Register(name, func(*isolation.Context) (isolation.Plugin, error) {
			return &recPlugin{name: name, rec: rec}, nil
		})
	}
	return t
}

type env struct {
	dirs  layout.Dirs
	rec   *recorder
	store *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	home := t.TempDir()
	return &env{
		dirs:  layout.Default(home),
		rec:   &recorder{},
		store: config.New(filepath.Join(home, "config.yaml")),
	}
}

func (e *env) loader(mutate func(*Options), entries ...string) *Loader {
	opts := Options{
		Dirs:           e.dirs,
		HostAPIVersion: "10.0",
		Blacklist:      config.DefaultBlacklist,
		Parallelism:    2,
		Factories:      table(e.rec, entries...),
		Consent:        e.store,
		Logger:         logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func write(t *testing.T, dir, file string, spec unitzip.Spec) string {
	t.Helper()
	return unitzip.Write(t, dir, file, spec, nil)
}

func files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func loadedKeys(r *registry.Registry) string {
	var keys []string
	for _, u := range r.All() {
		keys = append(keys, u.Key())
	}
	return strings.Join(keys, ",")
}

func TestLoadPipeline(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.Bundled, "core-1.0.zip", unitzip.Spec{Key: "core", Version: "1.0", EntryPoint: "Core"})
	write(t, e.dirs.External, "ext-1.0.zip", unitzip.Spec{Key: "ext", Version: "1.0", BasePlugin: "core"})
	write(t, e.dirs.External, "web-1.0.zip", unitzip.Spec{Key: "web", Version: "1.0", EntryPoint: "Web", Requires: []string{"core:1.0"}})
	write(t, e.dirs.External, "foo-1.0.zip", unitzip.Spec{Key: "foo", Version: "1.0", EntryPoint: "Foo"})
	write(t, e.dirs.Staged, "foo-2.0.zip", unitzip.Spec{Key: "foo", Version: "2.0", EntryPoint: "Foo"})

	l := e.loader(nil, "Core", "Web", "Foo")
	reg, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %s", failure.UserMessage(err))
	}

	if got := loadedKeys(reg); got != "core,ext,foo,web" {
		t.Errorf("loaded = %s", got)
	}
	if !reg.Published() {
		t.Error("registry not published")
	}
	foo, _ := reg.Get("foo")
	if foo.Descriptor.Version.String() != "2.0" {
		t.Errorf("foo version = %s, want 2.0", foo.Descriptor.Version)
	}
	if got := files(t, e.dirs.External); strings.Join(got, ",") != "ext-1.0.zip,foo-2.0.zip,web-1.0.zip" {
		t.Errorf("external root = %v", got)
	}
	if got := files(t, e.dirs.Staged); len(got) != 0 {
		t.Errorf("staged root = %v", got)
	}

	// Bases start before the units that depend on them.
	events := e.rec.list()
	if len(events) != 3 || events[0] != "start Core" {
		t.Errorf("events = %v", events)
	}

	core, _ := reg.Get("core")
	ext, _ := reg.Get("ext")
	web, _ := reg.Get("web")
	if ext.Context != core.Context {
		t.Error("extension must share its base's context")
	}
	if web.Context == core.Context {
		t.Error("independent units must not share a context")
	}
	if core.Type != registry.Bundled || ext.Type != registry.External {
		t.Errorf("types = %s, %s", core.Type, ext.Type)
	}
	if _, err := os.Stat(filepath.Join(e.dirs.ExplodeDir("web"), "plugin.yaml")); err != nil {
		t.Errorf("web not exploded: %v", err)
	}

	deployed := files(t, e.dirs.DeployDir())
	if strings.Join(deployed, ",") != "core-1.0.zip,ext-1.0.zip,foo-2.0.zip,index.json,web-1.0.zip" {
		t.Errorf("deploy dir = %v", deployed)
	}
	idx, err := registry.ReadIndex(filepath.Join(e.dirs.DeployDir(), registry.IndexFile))
	if err != nil {
		t.Fatal(err)
	}
	if entry, ok := idx.Find("foo"); !ok || len(entry.Hash) != 32 {
		t.Errorf("index entry for foo = %+v", entry)
	}

	if l.Consent() != consent.Required {
		t.Errorf("consent = %s, want REQUIRED", l.Consent())
	}
	if v, _, _ := e.store.Property(consent.PropertyKey); v != "REQUIRED" {
		t.Errorf("persisted consent = %q", v)
	}

	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	events = e.rec.list()
	if last := events[len(events)-1]; last != "stop Core" {
		t.Errorf("last event = %s, want bases stopped last", last)
	}
	if reg.Len() != 0 {
		t.Errorf("registry holds %d units after Shutdown", reg.Len())
	}
}

func TestLoadCompression(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.External, "a.zip", unitzip.Spec{Key: "a", EntryPoint: "A"})

	l := e.loader(func(o *Options) { o.Compression = true }, "A")
	reg, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, _ := reg.Get("a")
	if !a.Artifacts.HasCompressed() {
		t.Fatal("expected compressed sibling")
	}
	if _, err := a.Artifacts.Compressed.MD5(); err != nil {
		t.Errorf("compressed MD5: %v", err)
	}
}

func TestLoadScenarios(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, d layout.Dirs)
		wantLoaded string
		wantErr    []string
		wantKind   failure.Kind
	}{
		{
			name: "extension without base loads nothing",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "ext.zip", unitzip.Spec{Key: "ext", BasePlugin: "base"})
			},
		},
		{
			name: "required unit too old is skipped",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "foo.zip", unitzip.Spec{Key: "foo", EntryPoint: "Foo", Requires: []string{"bar:2.0"}})
				write(t, d.External, "bar.zip", unitzip.Spec{Key: "bar", Version: "1.0", EntryPoint: "Bar"})
			},
			wantLoaded: "bar",
		},
		{
			name: "four-part version below a two-part minimum is skipped",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "foo.zip", unitzip.Spec{Key: "foo", EntryPoint: "Foo", Requires: []string{"bar:5.0"}})
				write(t, d.External, "bar.zip", unitzip.Spec{Key: "bar", Version: "1.2.0.1234", EntryPoint: "Bar"})
			},
			wantLoaded: "bar",
		},
		{
			name: "four-part version above the minimum loads",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "foo.zip", unitzip.Spec{Key: "foo", EntryPoint: "Foo", Requires: []string{"bar:5.0"}})
				write(t, d.External, "bar.zip", unitzip.Spec{Key: "bar", Version: "5.0.0.17", EntryPoint: "Bar"})
			},
			wantLoaded: "bar,foo",
		},
		{
			name: "exact form requirement satisfied by a newer version",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "foo.zip", unitzip.Spec{Key: "foo", EntryPoint: "Foo", Requires: []string{"bar:=2.0"}})
				write(t, d.External, "bar.zip", unitzip.Spec{Key: "bar", Version: "3.0", EntryPoint: "Bar"})
			},
			wantLoaded: "bar,foo",
		},
		{
			name: "four-part host api minimum below the host",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "x.zip", unitzip.Spec{Key: "x", EntryPoint: "Foo", MinHostAPIVersion: "9.1.0.500"})
			},
			wantLoaded: "x",
		},
		{
			name: "duplicate key in external root",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "plugin1-1.0.zip", unitzip.Spec{Key: "plugin1", Version: "1.0", EntryPoint: "Foo"})
				write(t, d.External, "plugin1-1.1.zip", unitzip.Spec{Key: "plugin1", Version: "1.1", EntryPoint: "Foo"})
			},
			wantErr:  []string{"plugin1-1.0.zip, plugin1-1.1.zip", "two versions"},
			wantKind: failure.IncompatibleUnit,
		},
		{
			name: "blacklisted key",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "sqale.zip", unitzip.Spec{Key: "sqale", EntryPoint: "Foo"})
			},
			wantErr:  []string{"no longer compatible with this version: sqale"},
			wantKind: failure.IncompatibleUnit,
		},
		{
			name: "malformed installed archive is fatal",
			setup: func(t *testing.T, d layout.Dirs) {
				unitzip.WriteRaw(t, d.External, "broken.zip", map[string]string{"README": "no manifest"})
			},
			wantErr:  []string{"broken.zip"},
			wantKind: failure.MalformedManifest,
		},
		{
			name: "malformed staged archive is skipped",
			setup: func(t *testing.T, d layout.Dirs) {
				unitzip.WriteRaw(t, d.Staged, "broken.zip", map[string]string{"README": "no manifest"})
				write(t, d.External, "bar.zip", unitzip.Spec{Key: "bar", EntryPoint: "Bar"})
			},
			wantLoaded: "bar",
		},
		{
			name: "unknown entry point",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "x.zip", unitzip.Spec{Key: "x", EntryPoint: "com.example.Missing"})
			},
			wantErr:  []string{"no factory registered for entry point com.example.Missing"},
			wantKind: failure.InstantiationFailure,
		},
		{
			name: "host api too old",
			setup: func(t *testing.T, d layout.Dirs) {
				write(t, d.External, "x.zip", unitzip.Spec{Key: "x", EntryPoint: "Foo", MinHostAPIVersion: "11.0"})
			},
			wantErr:  []string{"requires at least host API version 11.0 (current: 10.0)"},
			wantKind: failure.IncompatibleUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			tt.setup(t, e.dirs)
			l := e.loader(nil, "Foo", "Bar")

			reg, err := l.Load(context.Background())
			if len(tt.wantErr) > 0 {
				if err == nil {
					t.Fatalf("Load() succeeded, want error")
				}
				if !failure.Is(err, tt.wantKind) {
					t.Errorf("error kind = %q, want %q", failure.KindOf(err), tt.wantKind)
				}
				msg := failure.UserMessage(err)
				for _, want := range tt.wantErr {
					if !strings.Contains(msg, want) {
						t.Errorf("message %q does not contain %q", msg, want)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %s", failure.UserMessage(err))
			}
			if got := loadedKeys(reg); got != tt.wantLoaded {
				t.Errorf("loaded = %q, want %q", got, tt.wantLoaded)
			}
		})
	}
}

func TestLoadMalformedStagedStaysInPlace(t *testing.T) {
	e := newEnv(t)
	unitzip.WriteRaw(t, e.dirs.Staged, "broken.zip", map[string]string{"README": "x"})
	if _, err := e.loader(nil).Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := files(t, e.dirs.Staged); strings.Join(got, ",") != "broken.zip" {
		t.Errorf("staged root = %v", got)
	}
}

func TestLoadStagedBuiltInCollisionIsNotPromoted(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.Bundled, "java.zip", unitzip.Spec{Key: "java", EntryPoint: "Foo"})
	write(t, e.dirs.Staged, "java-2.0.zip", unitzip.Spec{Key: "java", Version: "2.0", EntryPoint: "Foo"})

	_, err := e.loader(nil, "Foo").Load(context.Background())
	if err == nil || !strings.Contains(failure.UserMessage(err), "Built-in feature with same key already exists: java") {
		t.Fatalf("Load() error = %v", err)
	}
	if got := files(t, e.dirs.Staged); strings.Join(got, ",") != "java-2.0.zip" {
		t.Errorf("staged root = %v, want archive left in place", got)
	}
	if got := files(t, e.dirs.External); len(got) != 0 {
		t.Errorf("external root = %v, want empty", got)
	}
}

func TestLoadFallbackFactory(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.External, "x.zip", unitzip.Spec{Key: "x", EntryPoint: "com.example.Scanner"})

	l := e.loader(func(o *Options) { o.Fallback = isolation.Passive })
	reg, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if u, _ := reg.Get("x"); u.Instance == nil {
		t.Error("expected passive instance")
	}
}

func TestLoadInstantiationFailureStopsStarted(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.External, "a.zip", unitzip.Spec{Key: "a", EntryPoint: "A"})
	write(t, e.dirs.External, "b.zip", unitzip.Spec{Key: "b", EntryPoint: "Broken"})

	l := e.loader(func(o *Options) {
		o.Factories.Register("Broken", func(*isolation.Context) (isolation.Plugin, error) {
			return nil, errors.New("boom")
		})
	}, "A")
	_, err := l.Load(context.Background())
	if !failure.Is(err, failure.InstantiationFailure) {
		t.Fatalf("Load() error = %v, want InstantiationFailure", err)
	}
	if got := strings.Join(e.rec.list(), ","); got != "start A,stop A" {
		t.Errorf("events = %s", got)
	}
}

func TestLoadConsentUntouchedWithoutExternal(t *testing.T) {
	e := newEnv(t)
	write(t, e.dirs.Bundled, "core.zip", unitzip.Spec{Key: "core", EntryPoint: "Core"})

	if _, err := e.loader(nil, "Core").Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := e.store.Property(consent.PropertyKey); ok {
		t.Error("consent property must stay absent")
	}
}

func TestLoadTwiceFails(t *testing.T) {
	e := newEnv(t)
	l := e.loader(nil)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(context.Background()); err == nil {
		t.Error("second Load should fail")
	}
}
