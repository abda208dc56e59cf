// Package instancecache implements the config-bound instance cache: given
// a factory (cfg -> instance) and a live, reloadable list of configs, it
// keeps per-namespace instances in lock-step with the list, diffing by a
// stable identity key and a content hash.
package instancecache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// Factory builds an instance from a config entry.
type Factory[T any] func(cfg Config) (T, error)

// Reconfigure applies cfg to an existing instance in place. It returns
// true on success; on false (or if nil) the cache disposes the old
// instance and rebuilds it from scratch.
type Reconfigure[T any] func(instance T, cfg Config) bool

// Closer disposes an instance. Errors are swallowed — disposal is
// best-effort per the cache's thread-safety contract.
type Closer[T any] func(instance T) error

type entry[T any] struct {
	instance T
	cfgHash  string
	lastUsed time.Time
}

// Cache is the config-bound instance cache described in spec.md §4.C. All
// mutators serialise under a single lock.
type Cache[T any] struct {
	factory     Factory[T]
	reconfigure Reconfigure[T]
	closer      Closer[T]

	mu         sync.Mutex
	namespaces map[string]map[string]*entry[T]

	capacity int
	lru      *lru.LRU[string, struct{}]
}

// New constructs a Cache. capacity <= 0 disables global LRU eviction.
func New[T any](factory Factory[T], reconfigure Reconfigure[T], closer Closer[T], capacity int) *Cache[T] {
	c := &Cache[T]{
		factory:     factory,
		reconfigure: reconfigure,
		closer:      closer,
		namespaces:  make(map[string]map[string]*entry[T]),
		capacity:    capacity,
	}
	if capacity > 0 {
		// OnEvict disposes whatever the LRU structure deems least
		// recently touched once capacity is exceeded; it only tracks
		// eviction order — correctness of "is this entry still live" is
		// owned by c.namespaces, which OnEvict also updates.
		l, _ := lru.NewLRU[string, struct{}](capacity, func(fullKey string, _ struct{}) {
			ns, key := splitFullKey(fullKey)
			if slot, ok := c.namespaces[ns]; ok {
				if e, ok := slot[key]; ok {
					c.dispose(e)
					delete(slot, key)
				}
			}
		})
		c.lru = l
	}
	return c
}

func fullKey(namespace, key string) string { return namespace + "\x00" + key }

func splitFullKey(full string) (namespace, key string) {
	for i := 0; i < len(full); i++ {
		if full[i] == 0 {
			return full[:i], full[i+1:]
		}
	}
	return "", full
}

// SyncAndGet reconciles namespace against cfgList and returns instances in
// the same order as cfgList (property P4). Entries whose identity key is
// no longer present are disposed (property P5); entries whose content
// hash changed are reconfigured in place when possible, else rebuilt.
func (c *Cache[T]) SyncAndGet(cfgList []Config, namespace string) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.namespaces[namespace]
	if slot == nil {
		slot = make(map[string]*entry[T])
		c.namespaces[namespace] = slot
	}

	type desired struct {
		key  string
		hash string
		cfg  Config
	}
	wanted := make([]desired, 0, len(cfgList))
	wantedKeys := make(map[string]bool, len(cfgList))
	for _, cfg := range cfgList {
		key := StableKey(cfg)
		wanted = append(wanted, desired{key: key, hash: ConfigHash(cfg), cfg: cfg})
		wantedKeys[key] = true
	}

	for key, e := range slot {
		if !wantedKeys[key] {
			c.dispose(e)
			delete(slot, key)
			if c.lru != nil {
				c.lru.Remove(fullKey(namespace, key))
			}
		}
	}

	now := time.Now()
	out := make([]T, 0, len(wanted))
	var firstErr error
	for _, d := range wanted {
		e, ok := slot[d.key]
		switch {
		case !ok:
			inst, err := c.factory(d.cfg)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			e = &entry[T]{instance: inst, cfgHash: d.hash, lastUsed: now}
			slot[d.key] = e
		case e.cfgHash != d.hash:
			ok := false
			if c.reconfigure != nil {
				ok = c.reconfigure(e.instance, d.cfg)
			}
			if ok {
				e.cfgHash = d.hash
			} else {
				c.dispose(e)
				inst, err := c.factory(d.cfg)
				if err != nil {
					delete(slot, d.key)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				e = &entry[T]{instance: inst, cfgHash: d.hash, lastUsed: now}
				slot[d.key] = e
			}
		}
		e.lastUsed = now
		if c.lru != nil {
			c.lru.Add(fullKey(namespace, d.key), struct{}{})
		}
		out = append(out, e.instance)
	}
	return out, firstErr
}

// GetExisting returns an existing instance by stable key within namespace
// without syncing against a config list.
func (c *Cache[T]) GetExisting(key, namespace string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	slot, ok := c.namespaces[namespace]
	if !ok {
		return zero, false
	}
	e, ok := slot[key]
	if !ok {
		return zero, false
	}
	e.lastUsed = time.Now()
	if c.lru != nil {
		c.lru.Get(fullKey(namespace, key))
	}
	return e.instance, true
}

// Remove disposes and drops the instance identified by key within
// namespace, if present.
func (c *Cache[T]) Remove(key, namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.namespaces[namespace]
	if !ok {
		return
	}
	if e, ok := slot[key]; ok {
		c.dispose(e)
		delete(slot, key)
		if c.lru != nil {
			c.lru.Remove(fullKey(namespace, key))
		}
	}
}

// Clear disposes every instance in namespace.
func (c *Cache[T]) Clear(namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.namespaces[namespace]
	for key, e := range slot {
		c.dispose(e)
		if c.lru != nil {
			c.lru.Remove(fullKey(namespace, key))
		}
	}
	delete(c.namespaces, namespace)
}

// ClearAll disposes every instance across every namespace.
func (c *Cache[T]) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ns, slot := range c.namespaces {
		for _, e := range slot {
			c.dispose(e)
		}
		delete(c.namespaces, ns)
	}
	if c.lru != nil {
		c.lru.Purge()
	}
}

// PruneIdle disposes instances unused for at least idle, returning the
// number removed.
func (c *Cache[T]) PruneIdle(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	removed := 0
	for ns, slot := range c.namespaces {
		for key, e := range slot {
			if e.lastUsed.Before(cutoff) {
				c.dispose(e)
				delete(slot, key)
				if c.lru != nil {
					c.lru.Remove(fullKey(ns, key))
				}
				removed++
			}
		}
		if len(slot) == 0 {
			delete(c.namespaces, ns)
		}
	}
	return removed
}

func (c *Cache[T]) dispose(e *entry[T]) {
	if c.closer == nil {
		return
	}
	defer func() { _ = recover() }() // dispose errors (and panics) are swallowed
	_ = c.closer(e.instance)
}
