package xstage

import (
	"context"
	"time"

	"github.com/xiaoshicae/xinfer/xcache"
	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xredis"
)

// Cached 按输入内容缓存确定性 stage 的输出
//
// 一级缓存为进程内 ristretto(xcache)，二级为 redis(xredis)，两者未配置时退化为直接调用
// 非确定性的 stage(如 temperature>0 的生成)不应使用
type Cached struct {
	Stage
	namespace string
	local     *xcache.Cache
	ttl       time.Duration
	l2        bool
}

// Keyer 由 stage 实现，返回影响输出的模型与参数标识，参与缓存 key 计算
type Keyer interface {
	CacheKey() string
}

type CachedOption func(c *Cached)

// WithLocalCache 默认使用 xcache.C()
func WithLocalCache(c *xcache.Cache) CachedOption {
	return func(cs *Cached) {
		cs.local = c
	}
}

// WithNamespace 缓存 key 前缀，一般为 流水线名/步骤序号，默认为 stage 名
func WithNamespace(ns string) CachedOption {
	return func(cs *Cached) {
		cs.namespace = ns
	}
}

// WithTTL 默认使用缓存配置的 TTL
func WithTTL(ttl time.Duration) CachedOption {
	return func(cs *Cached) {
		cs.ttl = ttl
	}
}

// WithoutRedis 只使用进程内缓存
func WithoutRedis() CachedOption {
	return func(cs *Cached) {
		cs.l2 = false
	}
}

func NewCached(s Stage, opts ...CachedOption) *Cached {
	c := &Cached{Stage: s, namespace: s.Name(), local: xcache.C(), l2: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) Load(ctx context.Context) error {
	return Load(ctx, c.Stage)
}

func (c *Cached) Close() error {
	return Close(c.Stage)
}

func (c *Cached) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	if err := c.Contract().Check(in); err != nil {
		return nil, err
	}
	key, err := digest(c.scope(), in)
	if err != nil {
		return c.Stage.Run(ctx, in)
	}
	if v, ok := xcache.Get[xmedia.Value](c.local, key); ok {
		return v, nil
	}
	if v, ok := c.getL2(ctx, key); ok {
		c.setLocal(key, v)
		return v, nil
	}

	out, err := c.Stage.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	c.setLocal(key, out)
	c.setL2(ctx, key, out)
	return out, nil
}

// scope 命名空间加上 stage 的模型与参数标识
func (c *Cached) scope() string {
	if k, ok := c.Stage.(Keyer); ok {
		return c.namespace + "|" + k.CacheKey()
	}
	return c.namespace
}

func (c *Cached) setLocal(key string, v xmedia.Value) {
	if c.local == nil {
		return
	}
	c.local.SetWithCost(key, v, costOf(v), c.ttl)
}

func (c *Cached) getL2(ctx context.Context, key string) (xmedia.Value, bool) {
	if !c.l2 {
		return nil, false
	}
	b, ok, err := xredis.GetBytes(ctx, xredis.Key("stage", key))
	if err != nil {
		xlog.Warn(ctx, "stage cache get failed", xlog.KV(xlog.FieldStage, c.Name()), xlog.KV("err", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	v, err := decodeValue(b)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (c *Cached) setL2(ctx context.Context, key string, v xmedia.Value) {
	if !c.l2 {
		return
	}
	b, ok := encodeValue(v)
	if !ok {
		return
	}
	if err := xredis.SetBytes(ctx, xredis.Key("stage", key), b, c.ttl); err != nil {
		xlog.Warn(ctx, "stage cache set failed", xlog.KV(xlog.FieldStage, c.Name()), xlog.KV("err", err.Error()))
	}
}
