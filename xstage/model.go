package xstage

import (
	"context"
	"io"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmodel"
)

// ScoreModel 输出 logits 的 onnx 分类模型
type ScoreModel interface {
	xmodel.Handle
	Infer(ctx context.Context, in []float32) ([]float32, error)
	Metadata() *xmodel.Metadata
}

type ChatModel interface {
	xmodel.Handle
	Chat(ctx context.Context, req xmodel.ChatRequest) (xmodel.ChatResponse, error)
}

type SpeechModel interface {
	xmodel.Handle
	Transcribe(ctx context.Context, audio io.Reader, filename, language string) (xmodel.Transcription, error)
}

type TextModel interface {
	xmodel.Handle
	Generate(ctx context.Context, prompt string, params xmodel.GenerateParams) (string, error)
}

type options struct {
	provider xmodel.Provider
	handle   xmodel.Handle
}

type Option func(o *options)

// WithProvider 默认使用 xmodel.DefaultProvider
func WithProvider(p xmodel.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithHandle 使用已加载的句柄，Load 不再调用 provider
func WithHandle(h xmodel.Handle) Option {
	return func(o *options) {
		o.handle = h
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		o.provider = xmodel.DefaultProvider()
	}
	return o
}

// modelSlot stage 持有的模型句柄
type modelSlot struct {
	stage   string
	modelID string
	opts    *options

	mu     sync.RWMutex
	handle xmodel.Handle
}

func newModelSlot(stage, modelID string, opts []Option) *modelSlot {
	o := newOptions(opts)
	return &modelSlot{stage: stage, modelID: modelID, opts: o, handle: o.handle}
}

// load 已加载时直接返回，onLoad 用于校验句柄类型和元数据
func (s *modelSlot) load(ctx context.Context, onLoad func(h xmodel.Handle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return s.check(s.handle, onLoad)
	}
	if s.modelID == "" {
		return xerror.ModelUnavailable("stage %s: model id is empty", s.stage)
	}
	h, err := s.opts.provider.Load(ctx, s.modelID)
	if err != nil {
		return stageErr(s.stage, err, xerror.KindModelUnavailable)
	}
	if err := s.check(h, onLoad); err != nil {
		_ = h.Close()
		return err
	}
	s.handle = h
	return nil
}

func (s *modelSlot) check(h xmodel.Handle, onLoad func(h xmodel.Handle) error) error {
	if onLoad == nil {
		return nil
	}
	if err := onLoad(h); err != nil {
		return stageErr(s.stage, err, xerror.KindModelUnavailable)
	}
	return nil
}

func (s *modelSlot) get() (xmodel.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == nil {
		return nil, xerror.ModelUnavailable("stage %s: model %s not loaded", s.stage, s.modelID)
	}
	return s.handle, nil
}

func (s *modelSlot) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}

// handleAs 句柄不具备 stage 需要的能力时视为模型不可用
func handleAs[T any](stage string, h xmodel.Handle) (T, error) {
	v, ok := h.(T)
	if !ok {
		var zero T
		return zero, xerror.ModelUnavailable("stage %s: model %s does not support this stage", stage, h.ID())
	}
	return v, nil
}
