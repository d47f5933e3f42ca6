package config

import "sync"

// FamilyCache memoizes the OS family of each host. The first classification
// stored for a host wins; later ones are discarded.
type FamilyCache struct {
	families sync.Map
}

// NewFamilyCache creates a cache pre-populated with seed.
func NewFamilyCache(seed map[string]OSFamily) *FamilyCache {
	c := &FamilyCache{}
	for host, family := range seed {
		c.families.Store(host, family)
	}
	return c
}

// Get returns the cached family for host.
func (c *FamilyCache) Get(host string) (OSFamily, bool) {
	v, ok := c.families.Load(host)
	if !ok {
		return "", false
	}
	return v.(OSFamily), true
}

// Remember stores family for host unless one is already cached, and returns
// the family that ended up in the cache.
func (c *FamilyCache) Remember(host string, family OSFamily) OSFamily {
	actual, _ := c.families.LoadOrStore(host, family)
	return actual.(OSFamily)
}

// Snapshot copies the cache into a plain map.
func (c *FamilyCache) Snapshot() map[string]OSFamily {
	out := make(map[string]OSFamily)
	c.families.Range(func(k, v any) bool {
		out[k.(string)] = v.(OSFamily)
		return true
	})
	return out
}
