// Package xcache 基于 ristretto 的进程内缓存，用于缓存确定性 stage 的推理结果
package xcache

import (
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/dgraph-io/ristretto"
)

// Cache ristretto 封装
type Cache struct {
	raw        *ristretto.Cache
	defaultTTL time.Duration
}

func New(c *Config) (*Cache, error) {
	c = configMergeDefault(c)
	raw, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: c.NumCounters,
		MaxCost:     c.MaxCost,
		BufferItems: c.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{raw: raw, defaultTTL: xutil.ToDuration(c.DefaultTTL)}, nil
}

func (c *Cache) Get(key string) (any, bool) {
	return c.raw.Get(key)
}

// Set cost 为 1，使用默认 TTL
func (c *Cache) Set(key string, value any) bool {
	return c.raw.SetWithTTL(key, value, 1, c.defaultTTL)
}

// SetWithCost ttl<=0 时使用默认 TTL
func (c *Cache) SetWithCost(key string, value any, cost int64, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.raw.SetWithTTL(key, value, cost, ttl)
}

func (c *Cache) Del(key string) {
	c.raw.Del(key)
}

// Wait 等待缓冲中的写入生效，Set 之后立即 Get 前需要调用
func (c *Cache) Wait() {
	c.raw.Wait()
}

func (c *Cache) Close() {
	c.raw.Close()
}

// Get 带类型断言的读取
func Get[V any](c *Cache, key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(V)
	return typed, ok
}

var (
	mu           sync.RWMutex
	defaultCache *Cache
)

func init() {
	xhook.BeforeStart(initXCache, xhook.Order(5))
	xhook.BeforeStop(closeXCache)
}

// C 获取全局缓存，未配置 XCache 时为 nil
func C() *Cache {
	mu.RLock()
	defer mu.RUnlock()
	return defaultCache
}

func initXCache() error {
	if !xconfig.ContainKey(XCacheConfigKey) {
		xutil.InfoIfEnableDebug("XInfer xcache not configured, skip")
		return nil
	}
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XCacheConfigKey, c); err != nil {
		return xerror.Newf("xcache", "init", "getConfig failed, err=[%v]", err)
	}
	xutil.InfoIfEnableDebug("XInfer xcache got config: %s", xutil.ToJsonString(configMergeDefault(c)))

	cache, err := New(c)
	if err != nil {
		return xerror.New("xcache", "ristretto.NewCache", err)
	}
	mu.Lock()
	defaultCache = cache
	mu.Unlock()
	return nil
}

func closeXCache() error {
	mu.Lock()
	defer mu.Unlock()
	if defaultCache != nil {
		defaultCache.Close()
		defaultCache = nil
	}
	return nil
}
