package codegen

// UnitRef identifies a generated execution unit. It is a value type and
// never changes once returned.
type UnitRef struct {
	Name     UnitName `json:"name"`
	Category string   `json:"category"`
}

// Cache maps compilation keys to the unit already generated for them.
//
// Keys are compared with Go equality, so callers must derive them from
// operator semantics, not identity: two structurally identical operators
// have to produce equal keys to share a unit.
//
// Entries are written once and never removed or replaced. A reader that saw
// a ref keeps seeing the same ref for the rest of the session.
type Cache[K comparable] struct {
	entries map[K]UnitRef
}

// NewCache creates an empty cache.
func NewCache[K comparable]() *Cache[K] {
	return &Cache[K]{entries: make(map[K]UnitRef)}
}

// Lookup returns the ref cached for key, if any.
func (c *Cache[K]) Lookup(key K) (UnitRef, bool) {
	ref, ok := c.entries[key]
	return ref, ok
}

// Insert records ref for key.
//
// Panics with *InvariantError if key is already present: lowering generated
// the same unit twice without checking the cache first, and overwriting would
// orphan the unit earlier readers hold.
func (c *Cache[K]) Insert(key K, ref UnitRef) {
	if existing, ok := c.entries[key]; ok {
		panic(&InvariantError{Key: key, Existing: existing, Rejected: ref})
	}
	c.entries[key] = ref
}

// Len returns the number of cached units.
func (c *Cache[K]) Len() int {
	return len(c.entries)
}
