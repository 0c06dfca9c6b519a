package xmedia

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/xiaoshicae/xinfer/xerror"
)

// DecodeImage 解码 jpeg/png 为 CHW RGB 张量，像素值在 [0,1]
func DecodeImage(r io.Reader) (*Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, xerror.New("xmedia", "DecodeImage", err)
	}
	return FromImage(img), nil
}

// FromImage 将任意 image.Image 转为 CHW RGB 张量
func FromImage(img image.Image) *Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r) / 65535
			data[plane+i] = float32(g) / 65535
			data[2*plane+i] = float32(bl) / 65535
		}
	}
	return newTensorNoCopy(ModalityImage, []int{3, h, w}, data, Meta{Width: w, Height: h, Channels: 3})
}

// ToImage 将 [0,1] 范围的 CHW 张量转为 16 位 RGBA 图像，供缩放等图像操作使用
func (t *Tensor) ToImage() (*image.RGBA64, error) {
	if t.modality != ModalityImage || len(t.shape) != 3 || t.shape[0] != 3 {
		return nil, xerror.Newf("xmedia", "ToImage", "want image tensor [3,H,W], got %s", t)
	}
	h, w := t.shape[1], t.shape[2]
	plane := w * h
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetRGBA64(x, y, color.RGBA64{
				R: to16(t.data[i]),
				G: to16(t.data[plane+i]),
				B: to16(t.data[2*plane+i]),
				A: 0xffff,
			})
		}
	}
	return img, nil
}

func to16(v float32) uint16 {
	v = max(0, min(1, v))
	return uint16(v*65535 + 0.5)
}
