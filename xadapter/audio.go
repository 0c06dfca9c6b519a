package xadapter

import (
	"fmt"
	"math"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

// AudioConform 将音频规整为下游模型要求的格式，依次执行:
//  1. 声道: Channels==1 时按算术平均合并为单声道；Channels>1 且输入为单声道时复制；0 保持不变
//  2. 重采样: 线性插值到 TargetRate，0 保持不变
//  3. 定长: 超过 Window 的尾部截断，不足补 0，Window==0 保持长度
type AudioConform struct {
	TargetRate int
	Window     int
	Channels   int
}

func (a AudioConform) Name() string {
	return fmt.Sprintf("audio_conform(%dHz,%d,%dch)", a.TargetRate, a.Window, a.Channels)
}

func (a AudioConform) Adapt(in xmedia.Value) (xmedia.Value, error) {
	t, err := audioInput(a.Name(), in)
	if err != nil {
		return nil, err
	}
	if a.TargetRate < 0 || a.Window < 0 || a.Channels < 0 {
		return nil, xerror.Adaptation("%s: negative parameter", a.Name())
	}

	rate := t.Meta().SampleRate
	channels := make([][]float32, t.Meta().Channels)
	for i := range channels {
		channels[i] = t.Channel(i)
	}

	switch {
	case a.Channels == 0 || a.Channels == len(channels):
	case a.Channels == 1:
		channels = [][]float32{MixDown(channels...)}
	case len(channels) == 1:
		channels = repeat(channels[0], a.Channels)
	default:
		return nil, xerror.Adaptation("%s: can not map %d channels to %d", a.Name(), len(channels), a.Channels)
	}

	if a.TargetRate > 0 && a.TargetRate != rate {
		for i, ch := range channels {
			channels[i] = Resample(ch, rate, a.TargetRate)
		}
		rate = a.TargetRate
	}

	if a.Window > 0 {
		for i, ch := range channels {
			channels[i] = CropOrPad(ch, a.Window)
		}
	}

	out, err := xmedia.NewAudio(rate, channels...)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindAdaptation, err, a.Name())
	}
	return out, nil
}

type upmix struct {
	channels int
}

// Upmix 将单声道复制为 channels 个声道，多声道输入声道数不等于 channels 时报错
func Upmix(channels int) Adapter {
	return upmix{channels: channels}
}

func (u upmix) Name() string { return fmt.Sprintf("upmix(%d)", u.channels) }

func (u upmix) Adapt(in xmedia.Value) (xmedia.Value, error) {
	t, err := audioInput(u.Name(), in)
	if err != nil {
		return nil, err
	}
	if u.channels < 1 {
		return nil, xerror.Adaptation("%s: invalid channel count", u.Name())
	}
	switch t.Meta().Channels {
	case u.channels:
		return t, nil
	case 1:
		out, err := xmedia.NewAudio(t.Meta().SampleRate, repeat(t.Channel(0), u.channels)...)
		if err != nil {
			return nil, xerror.Wrap(xerror.KindAdaptation, err, u.Name())
		}
		return out, nil
	default:
		return nil, xerror.Adaptation("%s: input has %d channels", u.Name(), t.Meta().Channels)
	}
}

func audioInput(adapter string, in xmedia.Value) (*xmedia.Tensor, error) {
	t, ok := in.(*xmedia.Tensor)
	if !ok || t == nil || t.Modality() != xmedia.ModalityAudio {
		return nil, xerror.Adaptation("%s: expect audio tensor, got %s", adapter, describe(in))
	}
	return t, nil
}

func describe(v xmedia.Value) string {
	if t, ok := v.(*xmedia.Tensor); ok && t != nil {
		return t.String()
	}
	return xmedia.KindOf(v).String()
}

// MixDown 逐点算术平均
func MixDown(channels ...[]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	out := make([]float32, len(channels[0]))
	for _, ch := range channels {
		for i, v := range ch {
			out[i] += v
		}
	}
	n := float32(len(channels))
	for i := range out {
		out[i] /= n
	}
	return out
}

// Resample 线性插值重采样，输出长度为 round(len*to/from)
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}
	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}

// CropOrPad 从头截取 n 个采样，不足补 0
func CropOrPad(samples []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, samples)
	return out
}

func repeat(ch []float32, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = append([]float32(nil), ch...)
	}
	return out
}
