package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/agentx-labs/pluginhost/internal/artifact"
	"github.com/agentx-labs/pluginhost/internal/compat"
	"github.com/agentx-labs/pluginhost/internal/consent"
	"github.com/agentx-labs/pluginhost/internal/failure"
	"github.com/agentx-labs/pluginhost/internal/isolation"
	"github.com/agentx-labs/pluginhost/internal/logging"
	"github.com/agentx-labs/pluginhost/internal/registry"
	"github.com/agentx-labs/pluginhost/internal/resolver"
	"github.com/agentx-labs/pluginhost/internal/stager"
)

// Loader owns the startup pipeline and the loaded set it produces.
type Loader struct {
	opts     Options
	log      *log.Logger
	stager   *stager.Stager
	policy   *compat.Policy
	packager artifact.Packager
	host     *isolation.Context

	mu        sync.Mutex
	registry  *registry.Registry
	result    resolver.Result
	order     []string                        // load order of instantiated units
	pending   map[string]*registry.LoadedUnit // uninstalled since Load
	consented consent.State
}

// New returns a Loader. Nothing touches the filesystem until Load.
func New(opts Options) *Loader {
	if opts.Factories == nil {
		opts.Factories = isolation.Default
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	host := isolation.NewHostContext()
	host.Export("host.api_version", opts.HostAPIVersion)

	return &Loader{
		opts:     opts,
		log:      logger,
		stager:   stager.New(opts.Dirs, logger, opts.ArchiveExtensions),
		policy:   compat.NewPolicy(opts.Blacklist, opts.HostAPIVersion),
		packager: artifact.Packager{Enabled: opts.Compression},
		host:     host,
		registry: registry.New(),
		pending:  make(map[string]*registry.LoadedUnit),
	}
}

// Host returns the host isolation context every base unit is rooted at.
func (l *Loader) Host() *isolation.Context {
	return l.host
}

// Registry returns the registry filled by Load.
func (l *Loader) Registry() *registry.Registry {
	return l.registry
}

// Graph returns the dependency graph of the loaded set.
func (l *Loader) Graph() *resolver.Graph {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.result.Graph == nil {
		return resolver.NewGraph(nil)
	}
	return l.result.Graph
}

// Skipped returns the units dropped during resolution.
func (l *Loader) Skipped() []resolver.Skip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]resolver.Skip(nil), l.result.Skipped...)
}

// Warnings returns one message per unit skipped by the last Load.
func (l *Loader) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result.Warnings()
}

// Consent returns the consent state evaluated by the last Load.
func (l *Loader) Consent() consent.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consented
}

// Load runs the startup pipeline and returns the published registry.
func (l *Loader) Load(ctx context.Context) (*registry.Registry, error) {
	if l.opts.Logger == nil {
		l.log = logging.FromContext(ctx)
		l.stager.Logger = l.log
	}
	if err := l.opts.Dirs.Validate(); err != nil {
		return nil, err
	}
	if l.registry.Published() {
		return nil, errors.New("plugins are already loaded")
	}
	progress := logging.NewProgress(l.log)

	if _, err := l.stager.CommitUninstalls(); err != nil {
		return nil, err
	}
	if err := l.cleanTemp(); err != nil {
		return nil, err
	}

	candidates, err := l.discover()
	if err != nil {
		return nil, err
	}

	if err := l.policy.Check(candidates); err != nil {
		return nil, err
	}

	result := resolver.Resolve(candidates)
	for _, w := range result.Warnings() {
		l.log.Warn(w)
	}
	l.log.Debug("resolved plugins", "result", result)

	if err := l.explode(ctx, result); err != nil {
		return nil, err
	}

	units, err := l.instantiate(ctx, result.Ordered)
	if err != nil {
		return nil, err
	}

	if err := l.deploy(units); err != nil {
		l.stop(ctx, units)
		return nil, err
	}

	for _, u := range units {
		if err := l.registry.Register(u); err != nil {
			l.stop(ctx, units)
			return nil, err
		}
	}
	l.registry.Publish()

	l.mu.Lock()
	l.result = result
	l.order = make([]string, len(units))
	for i, u := range units {
		l.order[i] = u.Key()
	}
	l.mu.Unlock()

	l.writeIndex()
	l.verifyConsent()

	progress.Done(fmt.Sprintf("Loaded %d plugins", len(units)))
	return l.registry, nil
}

// discover reads every root, promotes staged archives and returns the
// merged installed set.
func (l *Loader) discover() ([]artifact.Candidate, error) {
	staged, err := l.scan(artifact.Staged, true)
	if err != nil {
		return nil, err
	}

	external, extErr := l.scan(artifact.InstalledExternal, false)
	bundled, bunErr := l.scan(artifact.InstalledBundled, false)
	if err := errors.Join(extErr, bunErr); err != nil {
		return nil, err
	}

	// A staged archive the policy rejects must not replace anything.
	preflight := append(append([]artifact.Candidate(nil), staged...), bundled...)
	err = errors.Join(
		l.policy.CheckBlacklist(staged),
		compat.CheckBuiltIn(preflight),
		compat.CheckDuplicates(staged),
		l.policy.CheckHostAPI(staged),
	)
	if err != nil {
		return nil, err
	}

	promotions, err := l.stager.Promote(staged, external)
	if err != nil {
		return nil, err
	}
	installed := stager.Apply(external, staged, promotions)

	return append(installed, bundled...), nil
}

// explode extracts the archives of each dependency level concurrently.
func (l *Loader) explode(ctx context.Context, result resolver.Result) error {
	for _, level := range result.Levels() {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(l.opts.Parallelism)
		for _, c := range level {
			g.Go(func() error {
				return stager.Explode(c.Location.Path, l.opts.Dirs.ExplodeDir(c.Key()))
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// instantiate creates and starts every unit in load order. Base units get a
// fresh context rooted at the host; extensions join their base's context.
// On failure every unit started so far is stopped again.
func (l *Loader) instantiate(ctx context.Context, ordered []artifact.Candidate) ([]*registry.LoadedUnit, error) {
	contexts := make(map[string]*isolation.Context, len(ordered))
	var units []*registry.LoadedUnit

	for _, c := range ordered {
		d := c.Descriptor
		var ic *isolation.Context
		if d.IsExtension() {
			ic = contexts[d.BasePlugin]
			ic.Attach(d.Key)
		} else {
			ic = isolation.NewContext(d.Key, l.opts.Dirs.ExplodeDir(d.Key), l.host)
		}
		contexts[d.Key] = ic

		u := &registry.LoadedUnit{
			Descriptor: d,
			Type:       registry.TypeOf(c.Location.Root),
			Context:    ic,
			Location:   c.Location,
		}
		if d.EntryPoint != "" {
			instance, err := l.newInstance(ctx, d.Key, d.EntryPoint, ic)
			if err != nil {
				l.stop(ctx, units)
				return nil, err
			}
			u.Instance = instance
		}
		units = append(units, u)
		l.log.Debug("instantiated plugin", "key", d.Key, "context", ic.ID, "type", u.Type)
	}
	return units, nil
}

func (l *Loader) newInstance(ctx context.Context, key, entryPoint string, ic *isolation.Context) (isolation.Plugin, error) {
	factory, ok := l.opts.Factories.Lookup(entryPoint)
	if !ok {
		if l.opts.Fallback == nil {
			return nil, failure.New(failure.InstantiationFailure,
				"Fail to instantiate plugin [%s]: no factory registered for entry point %s", key, entryPoint)
		}
		factory = l.opts.Fallback
	}
	instance, err := factory(ic)
	if err != nil {
		return nil, failure.Wrap(failure.InstantiationFailure, err, "Fail to instantiate plugin [%s]", key)
	}
	if err := instance.Start(ctx); err != nil {
		return nil, failure.Wrap(failure.InstantiationFailure, err, "Fail to start plugin [%s]", key)
	}
	return instance, nil
}

// deploy places each archive and its compressed sibling in the deploy dir.
func (l *Loader) deploy(units []*registry.LoadedUnit) error {
	dir := l.opts.Dirs.DeployDir()
	for _, u := range units {
		pair, err := l.packager.Package(artifact.NewFileHandle(u.Location.Path), dir)
		if err != nil {
			return err
		}
		u.Artifacts = pair
	}
	return nil
}

// cleanTemp drops what a previous run exploded or deployed.
func (l *Loader) cleanTemp() error {
	for _, dir := range []string{l.opts.Dirs.ExplodeRoot(), l.opts.Dirs.DeployDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return failure.Wrap(failure.StageFailure, err, "fail to clean directory %s", dir)
		}
	}
	return nil
}

// stop stops the given units in reverse order and returns every error.
func (l *Loader) stop(ctx context.Context, units []*registry.LoadedUnit) error {
	var errs []error
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if u.Instance == nil {
			continue
		}
		if err := u.Instance.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping plugin %s: %w", u.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// writeIndex records the deployed artifacts and their hashes. A hashing
// failure only affects the index.
func (l *Loader) writeIndex() {
	idx, err := registry.BuildIndex(l.registry)
	if err != nil {
		l.log.Warn("fail to build plugin index", "err", err)
		return
	}
	path := filepath.Join(l.opts.Dirs.DeployDir(), registry.IndexFile)
	if err := registry.WriteIndex(path, idx); err != nil {
		l.log.Warn("fail to write plugin index", "file", path, "err", err)
	}
}

func (l *Loader) verifyConsent() {
	if l.opts.Consent == nil {
		return
	}
	state, err := consent.NewVerifier(l.opts.Consent, l.log).Verify(l.registry)
	if err != nil {
		l.log.Warn("fail to verify plugin risk consent", "err", err)
		return
	}
	l.mu.Lock()
	l.consented = state
	l.mu.Unlock()
}

// Shutdown stops every instance, including pending uninstalls, in reverse
// load order and empties the registry.
func (l *Loader) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	order := append([]string(nil), l.order...)
	pending := l.pending
	l.pending = make(map[string]*registry.LoadedUnit)
	l.order = nil
	l.mu.Unlock()

	var units []*registry.LoadedUnit
	for _, key := range order {
		if u, ok := l.registry.Find(key); ok {
			units = append(units, u)
		} else if u, ok := pending[key]; ok {
			units = append(units, u)
		}
	}
	err := l.stop(ctx, units)
	l.registry.Remove(order...)
	return err
}

func sortedKeys(m map[string]*registry.LoadedUnit) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
