package pathexpr

import (
	"container/list"
	"sync"

	"github.com/theory/jsonpath"
)

// DefaultCacheSize is the number of compiled expressions kept by New when no
// size is given.
const DefaultCacheSize = 512

type compiled struct {
	path *jsonpath.Path
	expr Expr
}

type entry struct {
	key   string
	value compiled
}

// cache is a thread-safe LRU of compiled expressions keyed by source text.
type cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *cache) get(key string) (compiled, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return compiled{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *cache) set(key string, value compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		if oldest := c.ll.Back(); oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}

	c.items[key] = c.ll.PushFront(&entry{key: key, value: value})
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
