package xmedia

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"testing"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewTensor(t *testing.T) {
	PatchConvey("TestNewTensor", t, func() {
		_, err := NewTensor(ModalityAudio, nil, nil, Meta{})
		So(err, ShouldNotBeNil)

		_, err = NewTensor(ModalityAudio, []int{2, 3}, make([]float32, 5), Meta{})
		So(err, ShouldNotBeNil)

		_, err = NewTensor(ModalityAudio, []int{0, 3}, nil, Meta{})
		So(err, ShouldNotBeNil)

		PatchConvey("Immutable", func() {
			data := []float32{1, 2, 3}
			shape := []int{1, 3}
			tt, err := NewTensor(ModalityAudio, shape, data, Meta{SampleRate: 16000})
			So(err, ShouldBeNil)

			data[0] = 100
			shape[1] = 9
			So(tt.Data(), ShouldResemble, []float32{1, 2, 3})
			So(tt.Shape(), ShouldResemble, []int{1, 3})

			out := tt.Data()
			out[1] = 100
			So(tt.At(1), ShouldEqual, 2)
		})
	})
}

func TestNewAudio(t *testing.T) {
	PatchConvey("TestNewAudio", t, func() {
		a, err := NewAudio(32000, []float32{1, 2}, []float32{3, 4})
		So(err, ShouldBeNil)
		So(a.Modality(), ShouldEqual, ModalityAudio)
		So(a.Kind(), ShouldEqual, KindTensor)
		So(a.Shape(), ShouldResemble, []int{2, 2})
		So(a.Frames(), ShouldEqual, 2)
		So(a.Channel(1), ShouldResemble, []float32{3, 4})
		So(a.Channel(2), ShouldBeNil)
		So(a.Meta().Channels, ShouldEqual, 2)
		So(a.String(), ShouldEqual, "audio[2 2]@32000Hz")

		_, err = NewAudio(0, []float32{1})
		So(err, ShouldNotBeNil)
		_, err = NewAudio(16000, []float32{1, 2}, []float32{1})
		So(err, ShouldNotBeNil)
		_, err = NewAudio(16000)
		So(err, ShouldNotBeNil)
	})
}

func TestLabelSet(t *testing.T) {
	PatchConvey("TestLabelSet", t, func() {
		_, err := NewLabel("x", 1.5)
		So(err, ShouldNotBeNil)
		l, err := NewLabel("dog barking", 0.9)
		So(err, ShouldBeNil)
		So(l.Name, ShouldEqual, "dog barking")

		PatchConvey("DescendingStableTies", func() {
			set := NewLabelSet(
				Label{Name: "a", Confidence: 0.5},
				Label{Name: "b", Confidence: 0.9},
				Label{Name: "c", Confidence: 0.5},
				Label{Name: "d", Confidence: 0.7},
			)
			So(set.Names(), ShouldResemble, []string{"b", "d", "a", "c"})
			top, ok := set.Top()
			So(ok, ShouldBeTrue)
			So(top.Name, ShouldEqual, "b")
			So(set.String(), ShouldEqual, "b, d, a, c")
		})

		PatchConvey("TopK", func() {
			set, err := TopK([]float32{0.1, 0.8, 0.8, 1.2}, []string{"w", "x", "y", "z"}, 3)
			So(err, ShouldBeNil)
			So(set.Names(), ShouldResemble, []string{"z", "x", "y"})
			So(set.Labels()[0].Confidence, ShouldEqual, 1)

			all, err := TopK([]float32{0.1, 0.2}, []string{"a", "b"}, 10)
			So(err, ShouldBeNil)
			So(all.Len(), ShouldEqual, 2)

			_, err = TopK([]float32{0.1}, []string{"a", "b"}, 1)
			So(err, ShouldNotBeNil)
		})

		PatchConvey("Empty", func() {
			_, ok := NewLabelSet().Top()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestWAVRoundTrip(t *testing.T) {
	PatchConvey("TestWAVRoundTrip", t, func() {
		a, err := NewAudio(16000, []float32{0, 0.5, -0.5, 1}, []float32{0.25, -1, 0, 0})
		So(err, ShouldBeNil)

		b, err := EncodeWAV16(a)
		So(err, ShouldBeNil)
		So(len(b), ShouldEqual, 44+2*4*2)
		So(string(b[0:4]), ShouldEqual, "RIFF")

		back, err := DecodeWAV(b)
		So(err, ShouldBeNil)
		So(back.Meta().SampleRate, ShouldEqual, 16000)
		So(back.Shape(), ShouldResemble, []int{2, 4})
		for i, want := range []float32{0, 0.5, -0.5, 1} {
			So(back.Channel(0)[i], ShouldAlmostEqual, want, 1e-3)
		}
		So(back.Channel(1)[1], ShouldAlmostEqual, -1, 1e-3)
	})

	PatchConvey("TestReadWAVInvalid", t, func() {
		_, err := DecodeWAV([]byte("not a wav file at all"))
		So(err, ShouldNotBeNil)

		_, err = EncodeWAV16(nil)
		So(err, ShouldNotBeNil)
	})

	PatchConvey("TestReadWAVLyingChunkSize", t, func() {
		b, err := EncodeWAV16(mustAudio(16000, []float32{0.1, 0.2}))
		So(err, ShouldBeNil)

		lying := append([]byte(nil), b...)
		binary.LittleEndian.PutUint32(lying[40:44], 0xF0000000)
		_, err = DecodeWAV(lying)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "declares")

		bigFmt := append([]byte(nil), b...)
		binary.LittleEndian.PutUint32(bigFmt[16:20], 4096)
		_, err = DecodeWAV(bigFmt)
		So(err.Error(), ShouldContainSubstring, "fmt chunk too large")

		noData := append([]byte(nil), b[:36]...)
		_, err = DecodeWAV(noData)
		So(err.Error(), ShouldContainSubstring, "data chunk not found")
	})

	PatchConvey("TestReadWAVSizeLimit", t, func() {
		b, _ := EncodeWAV16(mustAudio(16000, make([]float32, 64)))
		MockValue(&MaxWAVBytes).To(int64(len(b) - 1))

		_, err := DecodeWAV(b)
		So(err.Error(), ShouldContainSubstring, "wav too large")

		_, err = ReadWAV(io.MultiReader(bytes.NewReader(b)))
		So(err.Error(), ShouldContainSubstring, "wav too large")
	})

	PatchConvey("TestReadWAVStream", t, func() {
		b, _ := EncodeWAV16(mustAudio(8000, []float32{0.5, -0.5, 0.25}))
		back, err := ReadWAV(io.MultiReader(bytes.NewReader(b)))
		So(err, ShouldBeNil)
		So(back.Shape(), ShouldResemble, []int{1, 3})
		So(back.Channel(0)[1], ShouldAlmostEqual, -0.5, 1e-3)
	})

	PatchConvey("TestReadWAVFloatAnd8Bit", t, func() {
		f32 := rawWAV(wavFormatFloat, 1, 32, func(buf *bytes.Buffer) {
			for _, v := range []float32{0.75, -0.25} {
				_ = binary.Write(buf, binary.LittleEndian, math.Float32bits(v))
			}
		})
		back, err := DecodeWAV(f32)
		So(err, ShouldBeNil)
		So(back.Channel(0), ShouldResemble, []float32{0.75, -0.25})

		u8 := rawWAV(wavFormatPCM, 2, 8, func(buf *bytes.Buffer) { buf.Write([]byte{128, 192, 64, 128}) })
		back, err = DecodeWAV(u8)
		So(err, ShouldBeNil)
		So(back.Shape(), ShouldResemble, []int{2, 2})
		So(back.Channel(0), ShouldResemble, []float32{0, -0.5})
		So(back.Channel(1), ShouldResemble, []float32{0.5, 0})
	})
}

func mustAudio(rate int, channels ...[]float32) *Tensor {
	a, err := NewAudio(rate, channels...)
	if err != nil {
		panic(err)
	}
	return a
}

// rawWAV 手工拼装 44 字节头的 WAV，用于编码器不产出的格式
func rawWAV(format, channels, bits int, payload func(buf *bytes.Buffer)) []byte {
	data := &bytes.Buffer{}
	payload(data)
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(format))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(16000))
	_ = binary.Write(buf, binary.LittleEndian, uint32(16000*channels*bits/8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bits/8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestImage(t *testing.T) {
	PatchConvey("TestImage", t, func() {
		src := image.NewRGBA(image.Rect(0, 0, 2, 1))
		src.Set(0, 0, color.RGBA{R: 255, A: 255})
		src.Set(1, 0, color.RGBA{B: 255, A: 255})

		var buf bytes.Buffer
		So(png.Encode(&buf, src), ShouldBeNil)

		img, err := DecodeImage(&buf)
		So(err, ShouldBeNil)
		So(img.Shape(), ShouldResemble, []int{3, 1, 2})
		So(img.Meta().Width, ShouldEqual, 2)
		So(img.Data(), ShouldResemble, []float32{1, 0, 0, 0, 0, 1})

		back, err := img.ToImage()
		So(err, ShouldBeNil)
		r, _, _, _ := back.At(0, 0).RGBA()
		So(r, ShouldEqual, 0xffff)

		audio, _ := NewAudio(16000, []float32{0})
		_, err = audio.ToImage()
		So(err, ShouldNotBeNil)

		_, err = DecodeImage(bytes.NewReader([]byte("junk")))
		So(err, ShouldNotBeNil)
	})
}

func TestKinds(t *testing.T) {
	PatchConvey("TestKinds", t, func() {
		So(KindOf(nil), ShouldEqual, KindUnknown)
		So(KindOf(Prompt{}), ShouldEqual, KindPrompt)
		So(KindOf(Transcript{}), ShouldEqual, KindTranscript)
		So(KindOf(GeneratedText{}), ShouldEqual, KindText)
		So(KindOf(LabelSet{}), ShouldEqual, KindLabels)
		So(KindText.String(), ShouldEqual, "text")
		So(ParseModality(ModalityImage.String()), ShouldEqual, ModalityImage)
	})
}
