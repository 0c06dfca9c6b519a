package xstage

import (
	"bytes"
	"context"

	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xmodel"
)

// SpeechSampleRate 语音识别统一使用 16kHz 单声道
const SpeechSampleRate = 16000

// Transcriber 语音转文本，音频以 16kHz 单声道 PCM16 WAV 上传
type Transcriber struct {
	name     string
	language string
	model    *modelSlot
}

// NewTranscriber language 为空时由模型自动识别
func NewTranscriber(name, modelID, language string, opts ...Option) *Transcriber {
	return &Transcriber{name: name, language: language, model: newModelSlot(name, modelID, opts)}
}

func (s *Transcriber) Name() string { return s.name }

func (s *Transcriber) Contract() Contract {
	return Contract{
		Accepts:  []xmedia.Kind{xmedia.KindTensor},
		Modality: xmedia.ModalityAudio,
		Produces: xmedia.KindTranscript,
	}
}

func (s *Transcriber) Load(ctx context.Context) error {
	return s.model.load(ctx, func(h xmodel.Handle) error {
		_, err := handleAs[SpeechModel](s.name, h)
		return err
	})
}

func (s *Transcriber) Close() error {
	return s.model.close()
}

func (s *Transcriber) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	if err := s.Contract().Check(in); err != nil {
		return nil, err
	}
	h, err := s.model.get()
	if err != nil {
		return nil, err
	}
	m, err := handleAs[SpeechModel](s.name, h)
	if err != nil {
		return nil, err
	}

	speech, err := xadapter.AudioConform{TargetRate: SpeechSampleRate, Channels: 1}.Adapt(in)
	if err != nil {
		return nil, conformErr(s.name, err)
	}
	wav, err := xmedia.EncodeWAV16(speech.(*xmedia.Tensor))
	if err != nil {
		return nil, conformErr(s.name, err)
	}
	tr, err := m.Transcribe(ctx, bytes.NewReader(wav), "audio.wav", s.language)
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	lang := tr.Language
	if lang == "" {
		lang = s.language
	}
	return xmedia.Transcript{Text: tr.Text, Language: lang}, nil
}

func (s *Transcriber) CacheKey() string {
	return s.model.modelID + "|lang=" + s.language
}
