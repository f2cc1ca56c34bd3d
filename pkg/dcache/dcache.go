// Package dcache is a disk-persisted implementation of defuse.Cache,
// adapted from the teacher's pkg/cache LRU (pkg/cache/cache.go): it
// keeps that cache's msgpack Save/Load pair but stores entries in a
// plain map, with no recency list and no size bound, repurposed from
// caching embedding vectors to caching per-statement DefUse triples. A
// def/use cache is never invalidated, only replaced wholesale by Reset.
package dcache

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"pyslice/pkg/defuse"
	"pyslice/pkg/pyast"
	"pyslice/pkg/refs"
)

// wireRef is refs.Ref stripped of its unserializable fields: Node
// points into a parsed tree that does not survive a process boundary,
// and InferredType is an opaque pointer into a library spec that is
// rebuilt fresh on every run. A cache hit therefore recovers a ref's
// name/kind/level/location faithfully but not its node handle or
// inferred type; callers needing those re-derive them via a fresh
// GetDefUseForStatement, which dcache's caller never bypasses blindly
// since it is keyed by location, not content.
type wireRef struct {
	Name     string         `msgpack:"name"`
	Kind     string         `msgpack:"kind"`
	Level    string         `msgpack:"level"`
	Location pyast.Location `msgpack:"location"`
}

func toWire(r refs.Ref) wireRef {
	return wireRef{Name: r.Name, Kind: string(r.Kind), Level: string(r.Level), Location: r.Location}
}

func fromWire(w wireRef) refs.Ref {
	return refs.Ref{Name: w.Name, Kind: refs.Kind(w.Kind), Level: refs.Level(w.Level), Location: w.Location}
}

// wireDefUse is the on-disk form of a refs.DefUse triple.
type wireDefUse struct {
	Definition []wireRef `msgpack:"definition"`
	Update     []wireRef `msgpack:"update"`
	Use        []wireRef `msgpack:"use"`
}

func toWireDefUse(du refs.DefUse) wireDefUse {
	w := wireDefUse{}
	for _, r := range du.Definition.Items() {
		w.Definition = append(w.Definition, toWire(r))
	}
	for _, r := range du.Update.Items() {
		w.Update = append(w.Update, toWire(r))
	}
	for _, r := range du.Use.Items() {
		w.Use = append(w.Use, toWire(r))
	}
	return w
}

func fromWireDefUse(w wireDefUse) refs.DefUse {
	du := refs.NewDefUse()
	for _, r := range w.Definition {
		du.Definition.Add(fromWire(r))
	}
	for _, r := range w.Update {
		du.Update.Add(fromWire(r))
	}
	for _, r := range w.Use {
		du.Use.Add(fromWire(r))
	}
	return du
}

// entry is one cache record with metadata, mirroring the teacher's
// Entry but without AccessedAt bookkeeping, since this cache never
// evicts and therefore never needs recency.
type entry struct {
	Key   string     `msgpack:"key"`
	Value wireDefUse `msgpack:"value"`
}

// Cache is a disk-persisted, unbounded defuse.Cache. Zero value is not
// usable; construct with New.
type Cache struct {
	mu    sync.RWMutex
	items map[string]refs.DefUse
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{items: make(map[string]refs.DefUse)}
}

var _ defuse.Cache = (*Cache)(nil)

// Get retrieves a cached DefUse triple.
func (c *Cache) Get(key string) (refs.DefUse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	du, ok := c.items[key]
	return du, ok
}

// Set stores a DefUse triple.
func (c *Cache) Set(key string, du refs.DefUse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = du
}

// Reset clears every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]refs.DefUse)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Save persists the cache to w using msgpack.
func (c *Cache) Save(w io.Writer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]entry, 0, len(c.items))
	for k, du := range c.items {
		entries = append(entries, entry{Key: k, Value: toWireDefUse(du)})
	}

	enc := msgpack.NewEncoder(w)
	return enc.Encode(entries)
}

// Load restores the cache from r using msgpack, replacing any existing
// entries.
func (c *Cache) Load(r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []entry
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return fmt.Errorf("decoding def/use cache: %w", err)
	}

	items := make(map[string]refs.DefUse, len(entries))
	for _, e := range entries {
		items[e.Key] = fromWireDefUse(e.Value)
	}
	c.items = items
	return nil
}

// PersistToFile saves the cache to path.
func PersistToFile(c *Cache, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating def/use cache file: %w", err)
	}
	defer f.Close()
	return c.Save(f)
}

// LoadFromFile loads the cache from path. A missing file is not an
// error: it just leaves c empty, matching a first run with no prior
// cache.
func LoadFromFile(c *Cache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening def/use cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}
