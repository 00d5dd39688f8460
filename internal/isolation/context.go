package isolation

import (
	"sync"

	"github.com/google/uuid"
)

// HostOwner is the owner name of the host context.
const HostOwner = "host"

// Context is an isolation boundary shared by a base unit and its extensions.
type Context struct {
	ID     uuid.UUID
	Owner  string // key of the base unit, or HostOwner
	Dir    string // exploded archive directory; empty for the host context
	parent *Context

	mu      sync.RWMutex
	exports map[string]any
	members []string
}

// NewHostContext returns the root context carrying the host API surface.
func NewHostContext() *Context {
	return newContext(HostOwner, "", nil)
}

// NewContext returns the context of the base unit owner, rooted at parent.
func NewContext(owner, dir string, parent *Context) *Context {
	c := newContext(owner, dir, parent)
	c.members = []string{owner}
	return c
}

func newContext(owner, dir string, parent *Context) *Context {
	return &Context{
		ID:      uuid.New(),
		Owner:   owner,
		Dir:     dir,
		parent:  parent,
		exports: make(map[string]any),
	}
}

// Parent returns the enclosing context, or nil for the host context.
func (c *Context) Parent() *Context {
	return c.parent
}

// Export publishes value under name to this context and its descendants.
func (c *Context) Export(name string, value any) {
	c.mu.Lock()
	c.exports[name] = value
	c.mu.Unlock()
}

// Resolve looks name up in this context and then in each ancestor.
func (c *Context) Resolve(name string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.exports[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Attach records an extension unit as sharing this context.
func (c *Context) Attach(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		if m == key {
			return
		}
	}
	c.members = append(c.members, key)
}

// Members returns the unit keys running in this context, owner first.
func (c *Context) Members() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.members...)
}
