package xadapter

import (
	"fmt"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"

	"github.com/nfnt/resize"
)

// ImageNet 归一化参数
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// ImageConform 双线性缩放到 Width x Height 后按通道做 (x-mean)/std
// Std 全为 0 时不做归一化
type ImageConform struct {
	Width  int
	Height int
	Mean   [3]float32
	Std    [3]float32
}

func (a ImageConform) Name() string {
	return fmt.Sprintf("image_conform(%dx%d)", a.Width, a.Height)
}

func (a ImageConform) Adapt(in xmedia.Value) (xmedia.Value, error) {
	t, ok := in.(*xmedia.Tensor)
	if !ok || t == nil || t.Modality() != xmedia.ModalityImage {
		return nil, xerror.Adaptation("%s: expect image tensor, got %s", a.Name(), describe(in))
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, xerror.Adaptation("%s: invalid target size", a.Name())
	}

	if t.Meta().Width != a.Width || t.Meta().Height != a.Height {
		img, err := t.ToImage()
		if err != nil {
			return nil, xerror.Wrap(xerror.KindAdaptation, err, a.Name())
		}
		t = xmedia.FromImage(resize.Resize(uint(a.Width), uint(a.Height), img, resize.Bilinear))
	}

	if a.Std == ([3]float32{}) {
		return t, nil
	}
	data := t.Data()
	plane := a.Width * a.Height
	for c := 0; c < 3; c++ {
		if a.Std[c] == 0 {
			return nil, xerror.Adaptation("%s: std of channel %d is 0", a.Name(), c)
		}
		for i := c * plane; i < (c+1)*plane; i++ {
			data[i] = (data[i] - a.Mean[c]) / a.Std[c]
		}
	}
	out, err := xmedia.NewImage(a.Width, a.Height, data)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindAdaptation, err, a.Name())
	}
	return out, nil
}
