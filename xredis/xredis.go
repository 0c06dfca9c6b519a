// Package xredis 全局 redis 客户端，作为推理结果的二级缓存
package xredis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xtrace"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var (
	mu     sync.RWMutex
	client *redis.Client
	prefix = "xinfer:"
)

func init() {
	xhook.BeforeStart(initXRedis, xhook.Order(5), xhook.Timeout(10*time.Second))
	xhook.BeforeStop(closeXRedis)
}

// C 获取 redis client，未配置 XRedis 时为 nil
func C() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// Key 拼接配置的 key 前缀
func Key(parts ...string) string {
	mu.RLock()
	p := prefix
	mu.RUnlock()
	for i, s := range parts {
		if i > 0 {
			p += ":"
		}
		p += s
	}
	return p
}

// GetBytes key 不存在时返回 nil, false, nil
func GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	c := C()
	if c == nil {
		return nil, false, nil
	}
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c := C()
	if c == nil {
		return nil
	}
	return c.Set(ctx, key, value, ttl).Err()
}

func initXRedis() error {
	if !xconfig.ContainKey(XRedisConfigKey) {
		xutil.InfoIfEnableDebug("XInfer xredis not configured, skip")
		return nil
	}
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XRedisConfigKey, c); err != nil {
		return xerror.Newf("xredis", "init", "getConfig failed, err=[%v]", err)
	}
	c = configMergeDefault(c)
	xutil.InfoIfEnableDebug("XInfer xredis got config: %s", xutil.ToJsonString(sanitize(c)))

	rc, err := newClient(c)
	if err != nil {
		return err
	}
	mu.Lock()
	client, prefix = rc, c.KeyPrefix
	mu.Unlock()
	return nil
}

func newClient(c *Config) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  xutil.ToDuration(c.DialTimeout),
		ReadTimeout:  xutil.ToDuration(c.ReadTimeout),
		WriteTimeout: xutil.ToDuration(c.WriteTimeout),
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
	})

	timeout := xutil.ToDuration(c.DialTimeout)
	err := xutil.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return rc.Ping(ctx).Err()
	}, 3, time.Second)
	if err != nil {
		_ = rc.Close()
		return nil, xerror.Newf("xredis", "newClient", "ping failed, addr=[%s], err=[%v]", c.Addr, err)
	}

	if xtrace.EnableTrace() {
		if err := redisotel.InstrumentTracing(rc); err != nil {
			_ = rc.Close()
			return nil, xerror.New("xredis", "InstrumentTracing", err)
		}
	}
	return rc, nil
}

func closeXRedis() error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	if err != nil {
		return xerror.New("xredis", "close", err)
	}
	return nil
}
