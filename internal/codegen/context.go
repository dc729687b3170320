package codegen

import (
	"sync"

	"github.com/roach88/dagbridge/internal/ir"
)

// UnitPrefix namespaces every generated unit so it cannot collide with
// session-level or hand-written units.
const UnitPrefix = "dagbridge.gen."

// Context is the capability set operator lowering needs: unit names, the
// generation cache, the session's data models, and artifact registration.
type Context struct {
	mu      sync.Mutex
	session Session
	names   *NameAuthority
	cache   *Cache[ir.Fingerprint]
}

// NewContext creates a context with a fresh name authority and cache.
// Panics if session is nil.
func NewContext(session Session) *Context {
	if session == nil {
		panic("codegen: NewContext requires a session")
	}
	return &Context{
		session: session,
		names:   NewNameAuthority(UnitPrefix),
		cache:   NewCache[ir.Fingerprint](),
	}
}

// Lock serializes a check-generate-register sequence when lowering runs on
// more than one goroutine. Single-threaded callers never need it.
func (c *Context) Lock() { c.mu.Lock() }

// Unlock releases the lock taken by Lock.
func (c *Context) Unlock() { c.mu.Unlock() }

// DataModels returns the session's data model loader.
func (c *Context) DataModels() DataModelLoader {
	return c.session.DataModels()
}

// UnitName issues a fresh unit name under UnitPrefix.
func (c *Context) UnitName(category, hint string) (UnitName, error) {
	return c.names.Issue(category, hint)
}

// FindCache returns the unit already generated for key.
func (c *Context) FindCache(key ir.Fingerprint) (UnitRef, bool) {
	return c.cache.Lookup(key)
}

// AddCache records the unit generated for key. Panics on a duplicate key.
func (c *Context) AddCache(key ir.Fingerprint, ref UnitRef) {
	c.cache.Insert(key, ref)
}

// RegisterArtifact hands a finished artifact to the session and returns the
// ref the caller should cache.
func (c *Context) RegisterArtifact(a Artifact) (UnitRef, error) {
	return c.session.AddArtifact(a)
}

// CachedUnits returns how many distinct units the cache holds.
func (c *Context) CachedUnits() int {
	return c.cache.Len()
}

// RenderFunc produces the artifact body for a freshly issued unit name.
type RenderFunc func(name UnitName) ([]byte, error)

// Generate runs the check-generate-register sequence for key. On a cache hit
// it returns the cached ref and generated=false without calling render.
// render may call back into the context for other keys.
func (c *Context) Generate(key ir.Fingerprint, category, hint string, render RenderFunc) (ref UnitRef, generated bool, err error) {
	if ref, ok := c.FindCache(key); ok {
		return ref, false, nil
	}

	name, err := c.UnitName(category, hint)
	if err != nil {
		return UnitRef{}, false, err
	}
	body, err := render(name)
	if err != nil {
		return UnitRef{}, false, err
	}
	ref, err = c.RegisterArtifact(Artifact{
		Name:        name,
		Category:    category,
		Fingerprint: key,
		Body:        body,
	})
	if err != nil {
		return UnitRef{}, false, err
	}
	c.AddCache(key, ref)
	return ref, true, nil
}
