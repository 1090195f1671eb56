package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paper-search-go/internal/model"
)

func vec(b byte) model.Vector { return model.Vector{Binary: []byte{b}} }

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, 0)
	c.Add("a", vec(1))
	c.Add("b", vec(2))

	// 访问 a 后，b 成为最久未使用
	_, ok := c.Get("a")
	assert.True(t, ok)
	c.Add("c", vec(3))

	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, vec(1), v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Add("a", vec(1))
	now = now.Add(30 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_OverwriteRemovePurge(t *testing.T) {
	c := NewLRUCache(0, 0)
	c.Add("a", vec(1))
	c.Add("a", vec(9))
	v, _ := c.Get("a")
	assert.Equal(t, vec(9), v)

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Add("b", vec(2))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
