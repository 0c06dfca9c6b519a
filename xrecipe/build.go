package xrecipe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xstage"
)

// adapter 名
const (
	AdapterIdentity           = "identity"
	AdapterLabelsToPrompt     = "labels_to_prompt"
	AdapterTranscriptToPrompt = "transcript_to_prompt"
	AdapterAudioConform       = "audio_conform"
	AdapterUpmix              = "upmix"
	AdapterImageConform       = "image_conform"
)

// stage 类型
const (
	StageAudioTagger     = "audio_tagger"
	StageImageClassifier = "image_classifier"
	StageTextGenerator   = "text_generator"
	StageRemoteGenerator = "remote_generator"
	StageTranscriber     = "transcriber"
)

// Entry 已构建的流水线，持有其 stage 的生命周期
type Entry struct {
	Recipe   Recipe
	Pipeline *xpipeline.Pipeline

	mu     sync.Mutex
	loaded bool
}

// Load 首次成功后不再加载，失败时下次调用重试
func (e *Entry) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	if err := e.Pipeline.Load(ctx); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

// Run 按需加载模型后执行，加载失败以 ModelUnavailable 结果返回
func (e *Entry) Run(ctx context.Context, input xmedia.Value) *xpipeline.RunResult {
	if err := e.Load(ctx); err != nil {
		return e.Pipeline.Abort(ctx, err)
	}
	return e.Pipeline.Run(ctx, input)
}

// RunBatch 加载一次后并发执行，结果与输入一一对应
func (e *Entry) RunBatch(ctx context.Context, inputs []xmedia.Value, workers int) []*xpipeline.RunResult {
	if err := e.Load(ctx); err != nil {
		results := make([]*xpipeline.RunResult, len(inputs))
		for i := range results {
			results[i] = e.Pipeline.Abort(ctx, err)
		}
		return results
	}
	return e.Pipeline.RunBatch(ctx, inputs, workers)
}


func (e *Entry) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for _, s := range e.Pipeline.Steps {
		if err := xstage.Close(s.Stage); err != nil && first == nil {
			first = err
		}
	}
	e.loaded = false
	return first
}

// Build 由声明构建流水线，不加载模型
func Build(r Recipe, opts ...xstage.Option) (*Entry, error) {
	r, err := expandPreset(r)
	if err != nil {
		return nil, err
	}
	if len(r.Steps) == 0 {
		return nil, xerror.Newf("xrecipe", "Build", "recipe %s has no steps", r.Name)
	}
	switch r.Input {
	case InputAudio, InputImage, InputText:
	default:
		return nil, xerror.Newf("xrecipe", "Build", "recipe %s: unknown input %q", r.Name, r.Input)
	}

	p := xpipeline.New(r.Name)
	for i, spec := range r.Steps {
		a, err := buildAdapter(spec)
		if err != nil {
			return nil, xerror.Newf("xrecipe", "Build", "recipe %s step %d: %v", r.Name, i+1, err)
		}
		s, err := buildStage(spec, fmt.Sprintf("%s/%d", r.Name, i+1), opts)
		if err != nil {
			return nil, xerror.Newf("xrecipe", "Build", "recipe %s step %d: %v", r.Name, i+1, err)
		}
		p.AddStep(xpipeline.Step{Adapter: a, Stage: s})
	}
	return &Entry{Recipe: r, Pipeline: p}, nil
}

func buildAdapter(spec StepSpec) (xadapter.Adapter, error) {
	switch strings.ToLower(spec.Adapter) {
	case "", AdapterIdentity:
		return xadapter.Identity(), nil
	case AdapterLabelsToPrompt:
		return xadapter.LabelsToPrompt(spec.Template)
	case AdapterTranscriptToPrompt:
		return xadapter.TranscriptToPrompt(spec.Template)
	case AdapterAudioConform:
		return xadapter.AudioConform{TargetRate: spec.SampleRate, Window: spec.Window, Channels: spec.Channels}, nil
	case AdapterUpmix:
		return xadapter.Upmix(max(spec.Channels, 2)), nil
	case AdapterImageConform:
		size := max(spec.Size, 224)
		return xadapter.ImageConform{Width: size, Height: size}, nil
	default:
		return nil, xerror.Newf("xrecipe", "buildAdapter", "unknown adapter %q", spec.Adapter)
	}
}

// buildStage scope 为缓存命名空间，同名 stage 在不同流水线中互不命中
func buildStage(spec StepSpec, scope string, opts []xstage.Option) (xstage.Stage, error) {
	name := spec.Name
	if name == "" {
		name = spec.Stage
	}
	var s xstage.Stage
	switch strings.ToLower(spec.Stage) {
	case StageAudioTagger:
		s = xstage.NewAudioTagger(name, xstage.AudioTaggerConfig{
			Model: spec.Model, SampleRate: spec.SampleRate, Window: spec.Window, TopK: spec.TopK,
		}, opts...)
	case StageImageClassifier:
		s = xstage.NewImageClassifier(name, xstage.ImageClassifierConfig{Model: spec.Model, Size: spec.Size, TopK: spec.TopK}, opts...)
	case StageTextGenerator:
		s = xstage.NewTextGenerator(name, spec.Model, spec.Generation, opts...)
	case StageRemoteGenerator:
		s = xstage.NewRemoteGenerator(name, spec.Model, spec.Generation, opts...)
	case StageTranscriber:
		s = xstage.NewTranscriber(name, spec.Model, spec.Language, opts...)
	default:
		return nil, xerror.Newf("xrecipe", "buildStage", "unknown stage %q", spec.Stage)
	}
	if spec.Cache {
		s = xstage.NewCached(s, xstage.WithNamespace(scope))
	}
	if spec.Serialize {
		s = xstage.NewSerialized(s)
	}
	return s, nil
}
