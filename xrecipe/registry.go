// Package xrecipe 由配置 XInfer.Pipelines 声明式构建流水线
//
// 未配置时注册内置预设 narrator / caption / summarize。模型在首次运行时加载，
// 服务停止时统一关闭
package xrecipe

import (
	"sort"
	"sync"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"
)

var (
	mu      sync.RWMutex
	entries = map[string]*Entry{}
)

func init() {
	xhook.BeforeStart(initXRecipe, xhook.Order(8))
	xhook.BeforeStop(closeXRecipe)
}

// Get 按名称获取流水线
func Get(name string) (*Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := entries[name]
	return e, ok
}

// Names 已注册的流水线名，按字典序
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Register 同名时替换，被替换的流水线会被关闭
func Register(e *Entry) {
	mu.Lock()
	old := entries[e.Pipeline.Name]
	entries[e.Pipeline.Name] = e
	mu.Unlock()
	if old != nil && old != e {
		_ = old.Close()
	}
}

func initXRecipe() error {
	recipes, err := loadRecipes()
	if err != nil {
		return xerror.Newf("xrecipe", "init", "getConfig failed, err=[%v]", err)
	}
	for _, name := range sortedKeys(recipes) {
		r := recipes[name]
		if r.Name == "" {
			r.Name = name
		}
		e, err := Build(r)
		if err != nil {
			return err
		}
		Register(e)
		xutil.InfoIfEnableDebug("XInfer xrecipe registered pipeline: %s", e.Pipeline)
	}
	return nil
}

func loadRecipes() (map[string]Recipe, error) {
	if !xconfig.ContainKey(XInferPipelinesConfigKey) {
		return Presets(), nil
	}
	recipes := map[string]Recipe{}
	if err := xconfig.UnmarshalConfig(XInferPipelinesConfigKey, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func closeXRecipe() error {
	mu.Lock()
	all := entries
	entries = map[string]*Entry{}
	mu.Unlock()

	var first error
	for _, e := range all {
		if err := e.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func sortedKeys(m map[string]Recipe) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
