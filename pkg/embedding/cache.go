package embedding

import (
	"container/list"
	"sync"
	"time"

	"paper-search-go/internal/model"
)

// LRUCache 是进程内按文本精确匹配的向量缓存，容量有上限，可选过期时间。并发安全。
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

type lruEntry struct {
	key      string
	vector   model.Vector
	storedAt time.Time
}

// NewLRUCache 创建缓存。capacity <= 0 时按 1 处理；ttl 为 0 表示不过期。
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get 返回缓存的向量，命中时将其移到最近使用的位置。
func (c *LRUCache) Get(key string) (model.Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return model.Vector{}, false
	}
	entry := el.Value.(*lruEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.removeElement(el)
		return model.Vector{}, false
	}
	c.ll.MoveToFront(el)
	return entry.vector, true
}

// Add 写入或覆盖一条缓存，超出容量时淘汰最久未使用的条目。
func (c *LRUCache) Add(key string, v model.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.vector = v
		entry.storedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&lruEntry{key: key, vector: v, storedAt: c.now()})
	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
	}
}

// Remove 删除一条缓存。
func (c *LRUCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Purge 清空缓存。
func (c *LRUCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len 返回当前缓存条目数（可能包含尚未被访问清理的过期条目）。
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRUCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*lruEntry).key)
}
