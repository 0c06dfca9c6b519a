package xmedia

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/xiaoshicae/xinfer/xerror"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	maxFmtChunkSize = 64
)

// MaxWAVBytes 单个 WAV 输入的字节上限
var MaxWAVBytes int64 = 256 << 20

// ReadWAV 读取 RIFF/WAVE，支持 8/16/24/32 位整型 PCM 与 32 位浮点，采样值归一化到 [-1,1]
//
// 解码前先按实际长度校验所有 chunk 头，声明长度超出剩余数据的输入直接拒绝
func ReadWAV(r io.Reader) (*Tensor, error) {
	rs, size, err := toReadSeeker(r)
	if err != nil {
		return nil, err
	}
	if err := checkChunks(rs, size); err != nil {
		return nil, err
	}

	if !wav.NewDecoder(rs).IsValidFile() {
		return nil, xerror.Newf("xmedia", "ReadWAV", "not a RIFF/WAVE stream")
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, xerror.New("xmedia", "ReadWAV", err)
	}
	d := wav.NewDecoder(rs)
	if err := d.FwdToPCM(); err != nil {
		return nil, xerror.Newf("xmedia", "ReadWAV", "data chunk not found, err=[%v]", err)
	}
	if d.PCMChunk == nil || d.PCMSize <= 0 {
		return nil, xerror.Newf("xmedia", "ReadWAV", "no audio frames")
	}

	channels, bits, rate := int(d.NumChans), int(d.BitDepth), int(d.SampleRate)
	if channels <= 0 || bits <= 0 || rate <= 0 {
		return nil, xerror.Newf("xmedia", "ReadWAV", "invalid fmt chunk channels=%d bits=%d rate=%d", channels, bits, rate)
	}

	var interleaved []float32
	switch {
	case d.WavAudioFormat == wavFormatFloat && bits == 32:
		interleaved, err = readFloat32(d.PCMChunk, d.PCMSize)
	case d.WavAudioFormat == wavFormatFloat:
		err = xerror.Newf("xmedia", "ReadWAV", "unsupported float bits=%d", bits)
	default:
		interleaved, err = readIntPCM(d, bits)
	}
	if err != nil {
		return nil, err
	}

	frames := len(interleaved) / channels
	if frames == 0 {
		return nil, xerror.Newf("xmedia", "ReadWAV", "no audio frames")
	}
	// 交错存储转为按声道存储
	data := make([]float32, channels*frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[c*frames+i] = interleaved[i*channels+c]
		}
	}
	return newTensorNoCopy(ModalityAudio, []int{channels, frames}, data,
		Meta{SampleRate: rate, Channels: channels}), nil
}

// DecodeWAV 从内存读取
func DecodeWAV(b []byte) (*Tensor, error) {
	return ReadWAV(bytes.NewReader(b))
}

// toReadSeeker 可 seek 且位于起始位置的输入直接使用，其余按 MaxWAVBytes 读入内存
func toReadSeeker(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		if pos, err := rs.Seek(0, io.SeekCurrent); err == nil && pos == 0 {
			size, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, 0, xerror.New("xmedia", "ReadWAV", err)
			}
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return nil, 0, xerror.New("xmedia", "ReadWAV", err)
			}
			if size > MaxWAVBytes {
				return nil, 0, xerror.Newf("xmedia", "ReadWAV", "wav too large, size=%d limit=%d", size, MaxWAVBytes)
			}
			return rs, size, nil
		}
	}
	b, err := io.ReadAll(io.LimitReader(r, MaxWAVBytes+1))
	if err != nil {
		return nil, 0, xerror.New("xmedia", "ReadWAV", err)
	}
	if int64(len(b)) > MaxWAVBytes {
		return nil, 0, xerror.Newf("xmedia", "ReadWAV", "wav too large, limit=%d", MaxWAVBytes)
	}
	return bytes.NewReader(b), int64(len(b)), nil
}

// checkChunks 逐个校验 chunk 声明长度，fmt 不超过 64 字节，其余不超过剩余数据
func checkChunks(rs io.ReadSeeker, size int64) (err error) {
	defer func() {
		if _, serr := rs.Seek(0, io.SeekStart); serr != nil && err == nil {
			err = xerror.New("xmedia", "ReadWAV", serr)
		}
	}()

	var riff [riffHeaderSize]byte
	if _, err := io.ReadFull(rs, riff[:]); err != nil {
		return xerror.Newf("xmedia", "ReadWAV", "not a RIFF/WAVE stream")
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return xerror.Newf("xmedia", "ReadWAV", "not a RIFF/WAVE stream")
	}

	var (
		pos     = int64(riffHeaderSize)
		hdr     [chunkHeaderSize]byte
		hasData bool
	)
	for pos+chunkHeaderSize <= size {
		if _, err := io.ReadFull(rs, hdr[:]); err != nil {
			return xerror.New("xmedia", "ReadWAV", err)
		}
		id := string(hdr[0:4])
		n := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		left := size - pos - chunkHeaderSize
		switch {
		case id == "fmt " && n > maxFmtChunkSize:
			return xerror.Newf("xmedia", "ReadWAV", "fmt chunk too large, size=%d", n)
		case n > left:
			return xerror.Newf("xmedia", "ReadWAV", "chunk %q declares %d bytes, only %d left", id, n, left)
		}
		if id == "data" {
			hasData = true
		}
		pos += chunkHeaderSize + n + n%2
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			return xerror.New("xmedia", "ReadWAV", err)
		}
	}
	if !hasData {
		return xerror.Newf("xmedia", "ReadWAV", "data chunk not found")
	}
	return nil
}

func readFloat32(r io.Reader, size int) ([]float32, error) {
	payload := make([]byte, size)
	if _, err := io.ReadFull(io.LimitReader(r, int64(size)), payload); err != nil {
		return nil, xerror.New("xmedia", "ReadWAV", err)
	}
	out := make([]float32, size/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return out, nil
}

// readIntPCM 8 位为无符号，其余为有符号补码
func readIntPCM(d *wav.Decoder, bits int) ([]float32, error) {
	switch bits {
	case 8, 16, 24, 32:
	default:
		return nil, xerror.Newf("xmedia", "ReadWAV", "unsupported format=%d bits=%d", d.WavAudioFormat, bits)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, xerror.New("xmedia", "ReadWAV", err)
	}
	scale := float32(int64(1) << (bits - 1))
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bits == 8 {
			v -= 128
		}
		out[i] = float32(v) / scale
	}
	return out, nil
}

// EncodeWAV16 编码为 16 位 PCM WAV，超出 [-1,1] 的采样被截断
func EncodeWAV16(t *Tensor) ([]byte, error) {
	if t == nil || t.Modality() != ModalityAudio {
		return nil, xerror.Newf("xmedia", "EncodeWAV16", "not an audio tensor")
	}
	channels, frames := t.shape[0], t.shape[1]
	pcm := make([]int, channels*frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := max(-1, min(1, t.data[c*frames+i]))
			pcm[i*channels+c] = int(math.Round(float64(v) * 32767))
		}
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, t.meta.SampleRate, 16, channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: t.meta.SampleRate},
		Data:           pcm,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, xerror.New("xmedia", "EncodeWAV16", err)
	}
	if err := enc.Close(); err != nil {
		return nil, xerror.New("xmedia", "EncodeWAV16", err)
	}
	return ws.buf, nil
}

// memWriteSeeker wav.Encoder 结束时需要回写头部长度
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		m.buf = append(m.buf, make([]byte, need-len(m.buf))...)
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	}
	if abs < 0 {
		return 0, xerror.Newf("xmedia", "Seek", "negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}
