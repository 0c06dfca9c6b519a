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

type ImageClassifierConfig struct {
	// Model 模型标识
	Model string `mapstructure:"Model"`

	// Size 输入边长，模型元数据中有 image_size 时以元数据为准
	// optional default 224
	Size int `mapstructure:"Size"`

	// TopK
	// optional default 5
	TopK int `mapstructure:"TopK"`

	// Activation 为空时取模型元数据，再缺省为 softmax
	// optional default ""
	Activation string `mapstructure:"Activation"`
}

func imageClassifierConfigMergeDefault(c ImageClassifierConfig) ImageClassifierConfig {
	if c.Size <= 0 {
		c.Size = 224
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// ImageClassifier 图像分类，双线性缩放到 Size x Size，按 mean/std 归一化
// mean/std 缺省为 ImageNet 参数
type ImageClassifier struct {
	name  string
	model *modelSlot

	mu   sync.RWMutex
	conf ImageClassifierConfig
	mean [3]float32
	std  [3]float32
}

func NewImageClassifier(name string, c ImageClassifierConfig, opts ...Option) *ImageClassifier {
	return &ImageClassifier{
		name:  name,
		conf:  imageClassifierConfigMergeDefault(c),
		model: newModelSlot(name, c.Model, opts),
		mean:  xadapter.ImageNetMean,
		std:   xadapter.ImageNetStd,
	}
}

func (s *ImageClassifier) Name() string { return s.name }

func (s *ImageClassifier) Contract() Contract {
	return Contract{
		Accepts:  []xmedia.Kind{xmedia.KindTensor},
		Modality: xmedia.ModalityImage,
		Produces: xmedia.KindLabels,
	}
}

func (s *ImageClassifier) Load(ctx context.Context) error {
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
		if meta.ImageSize > 0 {
			s.conf.Size = meta.ImageSize
		}
		if meta.InputSize() != 3*s.conf.Size*s.conf.Size {
			return xerror.ModelUnavailable("model %s input_shape %v does not fit 3x%dx%d",
				h.ID(), meta.InputShape, s.conf.Size, s.conf.Size)
		}
		if len(meta.Mean) == 3 && len(meta.Std) == 3 {
			copy(s.mean[:], meta.Mean)
			copy(s.std[:], meta.Std)
		}
		s.conf.Activation = resolveActivation(s.conf.Activation, meta.Activation, ActivationSoftmax)
		return nil
	})
}

func (s *ImageClassifier) Close() error {
	return s.model.close()
}

func (s *ImageClassifier) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
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

	s.mu.RLock()
	c, conform := s.conf, xadapter.ImageConform{Width: s.conf.Size, Height: s.conf.Size, Mean: s.mean, Std: s.std}
	s.mu.RUnlock()

	normalized, err := conform.Adapt(in)
	if err != nil {
		return nil, conformErr(s.name, err)
	}
	logits, err := m.Infer(ctx, normalized.(*xmedia.Tensor).Data())
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	labels, err := xmedia.TopK(activate(c.Activation, logits), m.Metadata().Classes, c.TopK)
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	return labels, nil
}

func (s *ImageClassifier) CacheKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%s|size=%d|topk=%d|act=%s|mean=%v|std=%v", s.model.modelID, s.conf.Size, s.conf.TopK, s.conf.Activation, s.mean, s.std)
}
