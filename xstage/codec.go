package xstage

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"hash"
	"math"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

// envelope 文本类结果在 redis 中的存储格式，tensor 不写入 redis
type envelope struct {
	Kind       string                `json:"kind"`
	Labels     []xmedia.Label        `json:"labels,omitempty"`
	Prompt     *xmedia.Prompt        `json:"prompt,omitempty"`
	Transcript *xmedia.Transcript    `json:"transcript,omitempty"`
	Text       *xmedia.GeneratedText `json:"text,omitempty"`
}

func encodeValue(v xmedia.Value) ([]byte, bool) {
	e := envelope{Kind: xmedia.KindOf(v).String()}
	switch x := v.(type) {
	case xmedia.LabelSet:
		e.Labels = x.Labels()
	case xmedia.Prompt:
		e.Prompt = &x
	case xmedia.Transcript:
		e.Transcript = &x
	case xmedia.GeneratedText:
		e.Text = &x
	default:
		return nil, false
	}
	b, err := json.Marshal(e)
	return b, err == nil
}

func decodeValue(b []byte) (xmedia.Value, error) {
	e := envelope{}
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	switch {
	case e.Kind == xmedia.KindLabels.String():
		return xmedia.NewLabelSet(e.Labels...), nil
	case e.Prompt != nil:
		return *e.Prompt, nil
	case e.Transcript != nil:
		return *e.Transcript, nil
	case e.Text != nil:
		return *e.Text, nil
	}
	return nil, xerror.Newf("xstage", "decodeValue", "unknown cached kind %q", e.Kind)
}

// costOf 按结果字节数估算缓存成本，与 XCache.MaxCost 同单位
func costOf(v xmedia.Value) int64 {
	if t, ok := v.(*xmedia.Tensor); ok {
		return max(int64(t.Len())*4, 1)
	}
	if b, ok := encodeValue(v); ok {
		return int64(len(b))
	}
	return 1
}

// digest 输入值的内容摘要，tensor 按模态、形状、元数据和数据逐字节计算
func digest(stage string, v xmedia.Value) (string, error) {
	h := sha256.New()
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write([]byte(xmedia.KindOf(v).String()))
	h.Write([]byte{0})
	var payload any = v
	switch x := v.(type) {
	case *xmedia.Tensor:
		writeTensor(h, x)
		return hex.EncodeToString(h.Sum(nil)), nil
	case xmedia.LabelSet:
		payload = x.Labels()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeTensor(h hash.Hash, t *xmedia.Tensor) {
	m := t.Meta()
	h.Write([]byte(t.Modality().String()))
	for _, d := range append(t.Shape(), m.SampleRate, m.Channels, m.Width, m.Height, m.SeqLen) {
		_ = binary.Write(h, binary.LittleEndian, int64(d))
	}
	buf := make([]byte, 4)
	for i := 0; i < t.Len(); i++ {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(t.At(i)))
		h.Write(buf)
	}
}
