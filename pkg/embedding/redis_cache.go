package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"paper-search-go/internal/model"
)

// RedisCache 将向量以 JSON 形式存入 Redis，键由模型、编码和文本的摘要组成。
type RedisCache struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisCache 创建 Redis 共享缓存。model 与 encoding 参与键的计算，切换模型后旧缓存自然失效。
func NewRedisCache(rdb *redis.Client, ttl time.Duration, modelName, encoding string) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, namespace: modelName + "|" + encoding + "|"}
}

// Key 返回文本对应的 Redis 键。
func (c *RedisCache) Key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// Get 读取缓存；键不存在时返回 ok=false。
func (c *RedisCache) Get(ctx context.Context, text string) (model.Vector, bool, error) {
	data, err := c.rdb.Get(ctx, c.Key(text)).Bytes()
	if err == redis.Nil {
		return model.Vector{}, false, nil
	}
	if err != nil {
		return model.Vector{}, false, fmt.Errorf("failed to get cached embedding: %w", err)
	}
	var v model.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return model.Vector{}, false, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}
	return v, true, nil
}

// Set 写入缓存并设置过期时间。
func (c *RedisCache) Set(ctx context.Context, text string, v model.Vector) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if err := c.rdb.Set(ctx, c.Key(text), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}
