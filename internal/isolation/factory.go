package isolation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Plugin is a running unit instance.
type Plugin interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory instantiates the unit whose entry point it is registered under.
// The context is the unit's own for base units and the base's for
// extensions.
type Factory func(c *Context) (Plugin, error)

// Table maps entry point names to factories.
type Table struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{factories: make(map[string]Factory)}
}

// Default is the process-wide table used by Register and Lookup.
var Default = NewTable()

// Register makes a factory available by entry point name. It panics if the
// factory is nil or the name is registered twice.
func (t *Table) Register(entryPoint string, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f == nil {
		panic("isolation: Register factory is nil")
	}
	if _, dup := t.factories[entryPoint]; dup {
		panic(fmt.Sprintf("isolation: Register called twice for entry point %s", entryPoint))
	}
	t.factories[entryPoint] = f
}

// Lookup returns the factory registered for entryPoint.
func (t *Table) Lookup(entryPoint string) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[entryPoint]
	return f, ok
}

// EntryPoints returns the registered names, sorted.
func (t *Table) EntryPoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.factories))
	for n := range t.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register adds f to the Default table.
func Register(entryPoint string, f Factory) {
	Default.Register(entryPoint, f)
}

// Lookup consults the Default table.
func Lookup(entryPoint string) (Factory, bool) {
	return Default.Lookup(entryPoint)
}

// Passive is a factory for units whose code the host does not run itself.
// The instance only records that it was started.
func Passive(c *Context) (Plugin, error) {
	return &passive{ctx: c}, nil
}

type passive struct {
	ctx     *Context
	mu      sync.Mutex
	running bool
}

func (p *passive) Start(context.Context) error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	return nil
}

func (p *passive) Stop(context.Context) error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// Running reports whether Start was called without a later Stop.
func (p *passive) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
