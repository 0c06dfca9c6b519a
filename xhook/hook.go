// Package xhook 管理进程级生命周期钩子
//
// 各基础模块(xconfig、xlog、xtrace、xmodel 等)在 init() 中注册 BeforeStart/BeforeStop，
// 由 xserver.Run 或 xinfer.R 统一按 Order 触发
package xhook

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xutil"

	"golang.org/x/exp/slices"
)

const maxHookNum = 1000

// HookFunc Hook 函数类型定义
type HookFunc func() error

type hook struct {
	fn   HookFunc
	opts *options
}

// registry 一组同类 hook，注册后按 Order 稳定排序
type registry struct {
	kind   string
	mu     sync.Mutex
	hooks  []hook
	seen   map[uintptr]struct{}
	sorted bool
}

func newRegistry(kind string) *registry {
	return &registry{kind: kind, seen: make(map[uintptr]struct{}), sorted: true}
}

var (
	startHooks = newRegistry("BeforeStart")
	stopHooks  = newRegistry("BeforeStop")

	stopTimeoutMu      sync.RWMutex
	defaultStopTimeout = 60 * time.Second
)

// BeforeStart 注册启动前执行的 Hook
func BeforeStart(f HookFunc, opts ...Option) {
	startHooks.register(f, opts)
}

// BeforeStop 注册停止前执行的 Hook
func BeforeStop(f HookFunc, opts ...Option) {
	stopHooks.register(f, opts)
}

// SetStopTimeout 设置 BeforeStop hooks 的整体超时
func SetStopTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	stopTimeoutMu.Lock()
	defaultStopTimeout = timeout
	stopTimeoutMu.Unlock()
}

func (r *registry) register(f HookFunc, opts []Option) {
	if f == nil {
		panic(fmt.Sprintf("XInfer %s hook can not be nil", r.kind))
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.hooks) >= maxHookNum {
		panic(fmt.Sprintf("XInfer %s hook can not be more than %d", r.kind, maxHookNum))
	}
	// 同一个函数只注册一次
	fp := reflect.ValueOf(f).Pointer()
	if _, ok := r.seen[fp]; ok {
		xutil.WarnIfEnableDebug("XInfer %s hook duplicate registration, func=[%s]", r.kind, funcFullName(f))
		return
	}
	r.seen[fp] = struct{}{}
	r.hooks = append(r.hooks, hook{fn: f, opts: o})
	r.sorted = false
}

func (r *registry) snapshot() []hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sorted {
		slices.SortStableFunc(r.hooks, func(a, b hook) int { return a.opts.Order - b.opts.Order })
		r.sorted = true
	}
	return slices.Clone(r.hooks)
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = nil
	r.seen = make(map[uintptr]struct{})
	r.sorted = true
}

// InvokeBeforeStartHook 按顺序执行 BeforeStart Hook，MustInvokeSuccess 的 hook 失败即返回
func InvokeBeforeStartHook() error {
	for _, h := range startHooks.snapshot() {
		name := funcFullName(h.fn)
		err := invokeWithTimeout(h.fn, h.opts.Timeout)
		if err == nil {
			xutil.InfoIfEnableDebug("XInfer before start hook success, func=[%s]", name)
			continue
		}
		if h.opts.MustInvokeSuccess {
			xutil.ErrorIfEnableDebug("XInfer before start hook failed, func=[%s], err=[%v]", name, err)
			return xerror.Newf("xhook", "BeforeStart", "func=[%s], err=[%v]", name, err)
		}
		xutil.WarnIfEnableDebug("XInfer before start hook failed but ignored, func=[%s], err=[%v]", name, err)
	}
	return nil
}

// InvokeBeforeStopHook 执行全部 BeforeStop Hook，单个失败不影响后续，错误合并返回
func InvokeBeforeStopHook() error {
	hooks := stopHooks.snapshot()
	if len(hooks) == 0 {
		return nil
	}

	stopTimeoutMu.RLock()
	total := defaultStopTimeout
	stopTimeoutMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), total)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- invokeStopHooks(ctx, hooks) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return xerror.Newf("xhook", "BeforeStop", "timeout after %v", total)
	}
}

func invokeStopHooks(ctx context.Context, hooks []hook) error {
	var failed []string
	for i, h := range hooks {
		if ctx.Err() != nil {
			return xerror.Newf("xhook", "BeforeStop", "interrupted, completed %d/%d hooks", i, len(hooks))
		}
		timeout := h.opts.Timeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
				timeout = remaining
			}
		}
		name := funcFullName(h.fn)
		if err := invokeWithTimeout(h.fn, timeout); err != nil {
			xutil.ErrorIfEnableDebug("XInfer before stop hook failed, func=[%s], err=[%v]", name, err)
			failed = append(failed, fmt.Sprintf("func=[%s], err=[%v]", name, err))
			continue
		}
		xutil.InfoIfEnableDebug("XInfer before stop hook success, func=[%s]", name)
	}
	if len(failed) > 0 {
		return xerror.Newf("xhook", "BeforeStop", "%s", strings.Join(failed, "; "))
	}
	return nil
}

// invokeWithTimeout 超时只是放弃等待，hook 本身仍会在后台运行到结束
func invokeWithTimeout(f HookFunc, timeout time.Duration) error {
	if timeout <= 0 {
		return safeInvoke(f)
	}
	ch := make(chan error, 1)
	go func() { ch <- safeInvoke(f) }()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("hook timeout after %v", timeout)
	}
}

func safeInvoke(f HookFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred, %v", r)
		}
	}()
	return f()
}

func funcFullName(f HookFunc) string {
	file, line, name := xutil.GetFuncInfo(f)
	return fmt.Sprintf("%s:%d %s()", file, line, name)
}
