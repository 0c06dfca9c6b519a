// Package xmodel 按模型标识加载模型句柄
//
// 模型标识为 URI 形式:
//
//	onnx:///abs/path/model.onnx        本地 onnx 模型，同目录需有 model.json 元数据
//	onnx+https://host/path/model.onnx  远程 onnx 模型，首次使用时下载到 CacheDir
//	openai:gpt-4o-mini                 openai 兼容的 chat 模型
//	openai-whisper:whisper-1           openai 兼容的语音识别模型
//	hf:https://host/models/flan-t5     Hugging Face inference 协议的远程模型
//
// 任何加载失败都以 ModelUnavailable 返回，不做重试
package xmodel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
)

// Handle 已加载的模型句柄，由持有它的 stage 负责 Close
type Handle interface {
	ID() string
	Close() error
}

// Provider 模型提供方
type Provider interface {
	Load(ctx context.Context, id string) (Handle, error)
}

// Ref 解析后的模型标识
type Ref struct {
	ID       string
	Scheme   string
	Location string
}

// ParseID 解析模型标识
func ParseID(id string) (Ref, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(id), ":")
	if !ok || scheme == "" || rest == "" {
		return Ref{}, xerror.ModelUnavailable("invalid model id %q, want scheme:location", id)
	}
	ref := Ref{ID: id, Scheme: strings.ToLower(scheme)}
	switch {
	case ref.Scheme == "onnx":
		ref.Location = strings.TrimPrefix(rest, "//")
	case strings.HasPrefix(ref.Scheme, "onnx+"):
		ref.Location = strings.TrimPrefix(ref.Scheme, "onnx+") + ":" + rest
	default:
		ref.Location = rest
	}
	if ref.Location == "" {
		return Ref{}, xerror.ModelUnavailable("invalid model id %q, location is empty", id)
	}
	return ref, nil
}

// Loader 加载某种 scheme 的模型
type Loader func(ctx context.Context, ref Ref) (Handle, error)

// Registry 按 scheme 分发的 Provider
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register 重复注册时后者覆盖前者
func (r *Registry) Register(scheme string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(scheme)] = l
}

func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaders))
	for s := range r.loaders {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Load(ctx context.Context, id string) (Handle, error) {
	ref, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	l, ok := r.loaders[ref.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, xerror.ModelUnavailable("model %q: unsupported scheme %q", id, ref.Scheme)
	}
	h, err := l(ctx, ref)
	if err != nil {
		return nil, xerror.KindOr(err, xerror.KindModelUnavailable)
	}
	return h, nil
}

var (
	defaultRegistry     = NewRegistry()
	defaultRegistryOnce sync.Once
)

// DefaultProvider 注册了全部内置 scheme 的 Provider
func DefaultProvider() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry.Register("onnx", loadLocalOnnx)
		defaultRegistry.Register("onnx+https", loadRemoteOnnx)
		defaultRegistry.Register("onnx+http", loadRemoteOnnx)
		defaultRegistry.Register("openai", loadOpenAI)
		defaultRegistry.Register("openai-whisper", loadOpenAI)
		defaultRegistry.Register("hf", loadHF)
	})
	return defaultRegistry
}

// Load 使用 DefaultProvider 加载
func Load(ctx context.Context, id string) (Handle, error) {
	return DefaultProvider().Load(ctx, id)
}
