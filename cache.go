package nanohubmcp

import (
	"sync"
	"time"
)

type cachedDoc struct {
	body    []byte
	expires time.Time
}

// docCache holds rendered discovery documents for a short interval so the
// status, openapi, and well-known endpoints do not rebuild them on every
// request. Safe for concurrent use.
type docCache struct {
	mu   sync.RWMutex
	docs map[string]cachedDoc
}

func newDocCache() *docCache {
	return &docCache{docs: make(map[string]cachedDoc)}
}

// get returns the cached body for name when present and fresh.
func (c *docCache) get(name string) ([]byte, bool) {
	c.mu.RLock()
	d, ok := c.docs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(d.expires) {
		c.mu.Lock()
		delete(c.docs, name)
		c.mu.Unlock()
		return nil, false
	}
	return d.body, true
}

// set stores body under name for ttl.
func (c *docCache) set(name string, body []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[name] = cachedDoc{body: body, expires: time.Now().Add(ttl)}
}

// invalidate drops every cached document.
func (c *docCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]cachedDoc)
}
