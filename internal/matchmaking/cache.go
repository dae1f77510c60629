package matchmaking

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a small TTL key-value store used for the advisory
// rate-limit/decline bookkeeping. Entries expire on their own, which keeps
// the throttle matrices from growing with every player pair ever seen.
type Cache struct {
	cacheInstance *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{cacheInstance: gocache.New(-1, 10*time.Second)}
}

// Put sets a key/value pair in the cache with an optional duration. Passing 0 for
// ttl will cause the default expiration to be used and -1 will not set a ttl.
func (c *Cache) Put(key string, value interface{}, ttl time.Duration) {
	c.cacheInstance.Set(key, value, ttl)
}

// Get fetches a value from the cache, returning the value as well as whether
// or not the value was found (semantics similar to map).
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.cacheInstance.Get(key)
}

// Delete removes a key from the cache if present.
func (c *Cache) Delete(key string) {
	c.cacheInstance.Delete(key)
}
