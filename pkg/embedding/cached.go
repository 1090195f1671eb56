package embedding

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"paper-search-go/internal/model"
	"paper-search-go/pkg/log"
)

// SharedCache 是跨进程共享的二级缓存，例如 Redis。
type SharedCache interface {
	Get(ctx context.Context, text string) (model.Vector, bool, error)
	Set(ctx context.Context, text string, v model.Vector) error
}

// CachedClient 为任意 Client 加上按文本精确匹配的缓存：
// 同一文本在缓存有效期内只调用一次上游，并发的相同请求合并为一次调用。
type CachedClient struct {
	inner       Client
	local       *LRUCache
	shared      SharedCache
	group       singleflight.Group
	callTimeout time.Duration
}

// sharedCallTimeout 限制合并后的一次上游调用，它不随任何单个调用方取消。
const sharedCallTimeout = 30 * time.Second

// NewCachedClient 创建带缓存的 Client。shared 可以为 nil。
func NewCachedClient(inner Client, local *LRUCache, shared SharedCache) *CachedClient {
	return &CachedClient{inner: inner, local: local, shared: shared, callTimeout: sharedCallTimeout}
}

// Embed 先查本地缓存，再查共享缓存，最后调用上游并回填两级缓存。
// 相同文本的并发请求合并为一次调用；某个调用方取消只会让它自己提前返回。
// 返回的向量与缓存共享底层数组，调用方不得修改。
func (c *CachedClient) Embed(ctx context.Context, text string) (model.Vector, error) {
	if v, ok := c.local.Get(text); ok {
		return v, nil
	}

	ch := c.group.DoChan(text, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		if v, ok := c.local.Get(text); ok {
			return v, nil
		}
		if c.shared != nil {
			v, ok, err := c.shared.Get(ctx, text)
			if err != nil {
				log.Warnf("[EmbeddingCache] 读取共享缓存失败, 继续调用上游: %v", err)
			} else if ok {
				c.local.Add(text, v)
				return v, nil
			}
		}

		v, err := c.inner.Embed(ctx, text)
		if err != nil {
			return model.Vector{}, err
		}
		c.local.Add(text, v)
		if c.shared != nil {
			if err := c.shared.Set(ctx, text, v); err != nil {
				log.Warnf("[EmbeddingCache] 写入共享缓存失败: %v", err)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return model.Vector{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Vector{}, res.Err
		}
		return res.Val.(model.Vector), nil
	}
}

// Invalidate 从本地缓存中删除一条文本的向量。
func (c *CachedClient) Invalidate(text string) {
	c.local.Remove(text)
}

// Purge 清空本地缓存。
func (c *CachedClient) Purge() {
	c.local.Purge()
}
