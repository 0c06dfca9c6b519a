package xstage

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xmodel"
)

type AudioTaggerConfig struct {
	// Model 模型标识，如 onnx:///models/panns.onnx
	Model string `mapstructure:"Model"`

	// SampleRate 模型输入采样率，模型元数据中有 sample_rate 时以元数据为准
	// optional default 32000
	SampleRate int `mapstructure:"SampleRate"`

	// Window 输入样本数，模型加载后以 input_shape 为准
	// optional default 32000
	Window int `mapstructure:"Window"`

	// TopK
	// optional default 5
	TopK int `mapstructure:"TopK"`

	// Activation sigmoid | softmax | none，为空时取模型元数据，再缺省为 sigmoid
	// optional default ""
	Activation string `mapstructure:"Activation"`
}

func audioTaggerConfigMergeDefault(c AudioTaggerConfig) AudioTaggerConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 32000
	}
	if c.Window <= 0 {
		c.Window = 32000
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// AudioTagger 音频事件分类
//
// 输入任意采样率、任意声道的音频，按声道均值混为单声道，线性插值重采样到模型采样率，
// 从头截取或补零到 Window 个样本后推理，输出按置信度降序的前 TopK 个标签
type AudioTagger struct {
	name  string
	model *modelSlot

	mu   sync.RWMutex
	conf AudioTaggerConfig
}

func NewAudioTagger(name string, c AudioTaggerConfig, opts ...Option) *AudioTagger {
	return &AudioTagger{
		name:  name,
		conf:  audioTaggerConfigMergeDefault(c),
		model: newModelSlot(name, c.Model, opts),
	}
}

func (s *AudioTagger) Name() string { return s.name }

func (s *AudioTagger) Contract() Contract {
	return Contract{
		Accepts:  []xmedia.Kind{xmedia.KindTensor},
		Modality: xmedia.ModalityAudio,
		Produces: xmedia.KindLabels,
	}
}

// Config 加载后的实际配置
func (s *AudioTagger) Config() AudioTaggerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conf
}

func (s *AudioTagger) Load(ctx context.Context) error {
	return s.model.load(ctx, func(h xmodel.Handle) error {
		m, err := handleAs[ScoreModel](s.name, h)
		if err != nil {
			return err
		}
		meta := m.Metadata()
		if len(meta.Classes) == 0 {
			return xerror.ModelUnavailable("model %s has no classes", h.ID())
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if meta.SampleRate > 0 {
			s.conf.SampleRate = meta.SampleRate
		}
		s.conf.Window = meta.InputSize()
		s.conf.Activation = resolveActivation(s.conf.Activation, meta.Activation, ActivationSigmoid)
		return nil
	})
}

func (s *AudioTagger) Close() error {
	return s.model.close()
}

func (s *AudioTagger) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	if err := s.Contract().Check(in); err != nil {
		return nil, err
	}
	h, err := s.model.get()
	if err != nil {
		return nil, err
	}
	m, err := handleAs[ScoreModel](s.name, h)
	if err != nil {
		return nil, err
	}
	c := s.Config()

	conformed, err := xadapter.AudioConform{TargetRate: c.SampleRate, Window: c.Window, Channels: 1}.Adapt(in)
	if err != nil {
		return nil, conformErr(s.name, err)
	}
	logits, err := m.Infer(ctx, conformed.(*xmedia.Tensor).Data())
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	labels, err := xmedia.TopK(activate(c.Activation, logits), m.Metadata().Classes, c.TopK)
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	return labels, nil
}

// CacheKey 模型与影响输出的参数
func (s *AudioTagger) CacheKey() string {
	c := s.Config()
	return fmt.Sprintf("%s|rate=%d|window=%d|topk=%d|act=%s", s.model.modelID, c.SampleRate, c.Window, c.TopK, c.Activation)
}
