package xmedia

import (
	"fmt"
	"slices"

	"github.com/xiaoshicae/xinfer/xerror"
)

// Modality 张量的媒体类型
type Modality int

const (
	ModalityUnknown Modality = iota
	ModalityAudio
	ModalityImage
	ModalityTokens
)

func (m Modality) String() string {
	switch m {
	case ModalityAudio:
		return "audio"
	case ModalityImage:
		return "image"
	case ModalityTokens:
		return "tokens"
	default:
		return "unknown"
	}
}

// ParseModality 与 String 互逆
func ParseModality(s string) Modality {
	switch s {
	case "audio":
		return ModalityAudio
	case "image":
		return ModalityImage
	case "tokens":
		return ModalityTokens
	default:
		return ModalityUnknown
	}
}

type DType int

const (
	Float32 DType = iota
)

func (d DType) String() string {
	return "float32"
}

// Meta 模态相关的元数据，未使用的字段为 0
type Meta struct {
	SampleRate int
	Channels   int
	Width      int
	Height     int
	SeqLen     int
}

// Tensor 带模态、形状、元数据标签的不可变数值缓冲
//
// 音频为 [channels, frames]，按声道连续存放；图像为 CHW [3, H, W]；token 序列为 [seqLen]
type Tensor struct {
	modality Modality
	dtype    DType
	shape    []int
	data     []float32
	meta     Meta
}

// NewTensor 校验 len(data) 等于 shape 之积，并拷贝 shape 与 data
func NewTensor(modality Modality, shape []int, data []float32, meta Meta) (*Tensor, error) {
	if len(shape) == 0 {
		return nil, xerror.Newf("xmedia", "NewTensor", "shape is empty")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, xerror.Newf("xmedia", "NewTensor", "invalid dim %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return nil, xerror.Newf("xmedia", "NewTensor", "shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{
		modality: modality,
		dtype:    Float32,
		shape:    slices.Clone(shape),
		data:     slices.Clone(data),
		meta:     meta,
	}, nil
}

// NewAudio channels 每个元素为一个声道，长度必须一致
func NewAudio(sampleRate int, channels ...[]float32) (*Tensor, error) {
	if sampleRate <= 0 {
		return nil, xerror.Newf("xmedia", "NewAudio", "invalid sample rate %d", sampleRate)
	}
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, xerror.Newf("xmedia", "NewAudio", "audio is empty")
	}
	frames := len(channels[0])
	data := make([]float32, 0, frames*len(channels))
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, xerror.Newf("xmedia", "NewAudio", "channel %d has %d frames, want %d", i, len(ch), frames)
		}
		data = append(data, ch...)
	}
	return newTensorNoCopy(ModalityAudio, []int{len(channels), frames}, data, Meta{SampleRate: sampleRate, Channels: len(channels)}), nil
}

// NewImage chw 为 [3, height, width] 排布
func NewImage(width, height int, chw []float32) (*Tensor, error) {
	return NewTensor(ModalityImage, []int{3, height, width}, chw, Meta{Width: width, Height: height, Channels: 3})
}

func NewTokens(ids []int) (*Tensor, error) {
	data := make([]float32, len(ids))
	for i, id := range ids {
		data[i] = float32(id)
	}
	return NewTensor(ModalityTokens, []int{len(ids)}, data, Meta{SeqLen: len(ids)})
}

// newTensorNoCopy 仅用于包内已经拥有 data 所有权的场景
func newTensorNoCopy(modality Modality, shape []int, data []float32, meta Meta) *Tensor {
	return &Tensor{modality: modality, dtype: Float32, shape: shape, data: data, meta: meta}
}

func (t *Tensor) Kind() Kind { return KindTensor }

func (t *Tensor) Modality() Modality { return t.modality }

func (t *Tensor) DType() DType { return t.dtype }

func (t *Tensor) Meta() Meta { return t.meta }

func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

func (t *Tensor) Data() []float32 { return slices.Clone(t.data) }

func (t *Tensor) Len() int { return len(t.data) }

// At 按扁平下标读取，不拷贝
func (t *Tensor) At(i int) float32 { return t.data[i] }

// Frames 音频每个声道的采样点数
func (t *Tensor) Frames() int {
	if t.modality != ModalityAudio || len(t.shape) != 2 {
		return 0
	}
	return t.shape[1]
}

// Channel 返回第 i 个声道的拷贝
func (t *Tensor) Channel(i int) []float32 {
	frames := t.Frames()
	if frames == 0 || i < 0 || i >= t.shape[0] {
		return nil
	}
	return slices.Clone(t.data[i*frames : (i+1)*frames])
}

// Duration 音频时长(秒)
func (t *Tensor) Duration() float64 {
	if t.meta.SampleRate <= 0 {
		return 0
	}
	return float64(t.Frames()) / float64(t.meta.SampleRate)
}

func (t *Tensor) String() string {
	switch t.modality {
	case ModalityAudio:
		return fmt.Sprintf("audio%v@%dHz", t.shape, t.meta.SampleRate)
	case ModalityImage:
		return fmt.Sprintf("image%v", t.shape)
	default:
		return fmt.Sprintf("%s%v", t.modality, t.shape)
	}
}
