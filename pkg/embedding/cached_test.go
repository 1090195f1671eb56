package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-search-go/internal/model"
)

type countingClient struct {
	calls int32
	delay time.Duration
	err   error
}

func (c *countingClient) Embed(_ context.Context, text string) (model.Vector, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return model.Vector{}, c.err
	}
	return model.Vector{Binary: PackBits([]float32{float32(len(text)), -1, 1})}, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]model.Vector
	sets int
}

func (m *mapCache) Get(_ context.Context, text string) (model.Vector, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[text]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, text string, v model.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]model.Vector{}
	}
	m.data[text] = v
	m.sets++
	return nil
}

func TestCachedClient_SameTextCallsUpstreamOnce(t *testing.T) {
	inner := &countingClient{}
	c := NewCachedClient(inner, NewLRUCache(16, 0), nil)

	first, err := c.Embed(context.Background(), "Game theory applications in marine biology")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "Game theory applications in marine biology")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	_, err = c.Embed(context.Background(), "game theory applications in marine biology")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCachedClient_ConcurrentMissesCollapse(t *testing.T) {
	inner := &countingClient{delay: 20 * time.Millisecond}
	c := NewCachedClient(inner, NewLRUCache(16, 0), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Embed(context.Background(), "same text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	inner := &countingClient{err: errors.New("boom")}
	c := NewCachedClient(inner, NewLRUCache(16, 0), nil)

	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCachedClient_SharedCache(t *testing.T) {
	shared := &mapCache{}
	inner := &countingClient{}

	// 第一个进程写入共享缓存
	_, err := NewCachedClient(inner, NewLRUCache(16, 0), shared).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, shared.sets)

	// 第二个进程本地缓存为空，命中共享缓存
	second := NewCachedClient(inner, NewLRUCache(16, 0), shared)
	_, err = second.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestCachedClient_Invalidate(t *testing.T) {
	inner := &countingClient{}
	c := NewCachedClient(inner, NewLRUCache(16, 0), nil)

	_, _ = c.Embed(context.Background(), "x")
	c.Invalidate("x")
	_, _ = c.Embed(context.Background(), "x")
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))

	c.Purge()
	_, _ = c.Embed(context.Background(), "x")
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestRedisCache_KeyDependsOnModelAndEncoding(t *testing.T) {
	a := NewRedisCache(nil, time.Hour, "mxbai-embed-large-v1", "ubinary")
	b := NewRedisCache(nil, time.Hour, "mxbai-embed-large-v1", "float")

	assert.Equal(t, a.Key("text"), a.Key("text"))
	assert.NotEqual(t, a.Key("text"), a.Key("other"))
	assert.NotEqual(t, a.Key("text"), b.Key("text"))
	assert.Regexp(t, `^embedding:[0-9a-f]{64}$`, a.Key("text"))
}

// blockingClient 在 release 关闭前阻塞，并记录上游调用看到的 ctx 状态。
type blockingClient struct {
	calls   int32
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingClient) Embed(ctx context.Context, text string) (model.Vector, error) {
	atomic.AddInt32(&b.calls, 1)
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()
	return model.Vector{Dense: []float32{float32(len(text))}}, nil
}

func TestCachedClient_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &blockingClient{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCachedClient(inner, NewLRUCache(16, 0), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Embed(firstCtx, "attention is all you need")
		firstErr <- err
	}()
	<-inner.started

	type result struct {
		v   model.Vector
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := c.Embed(context.Background(), "attention is all you need")
		second <- result{v, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(inner.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, []float32{25}, got.v.Dense)
	assert.NoError(t, inner.ctxErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}
