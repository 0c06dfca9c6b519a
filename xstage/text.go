package xstage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xmodel"
)

// GenerationParams 文本生成参数
type GenerationParams struct {
	// MaxTokens 最大生成 token 数
	// optional default 50
	MaxTokens int `mapstructure:"MaxTokens"`

	// Temperature 0 表示使用服务端默认值
	// optional default 0
	Temperature float32 `mapstructure:"Temperature"`

	// TopP
	// optional default 0
	TopP float32 `mapstructure:"TopP"`

	// Seed 固定随机种子，便于复现
	// optional default nil
	Seed *int `mapstructure:"Seed"`

	// System system prompt，仅 chat 模型生效
	// optional default ""
	System string `mapstructure:"System"`

	// Stop
	// optional default nil
	Stop []string `mapstructure:"Stop"`
}

func generationParamsMergeDefault(p GenerationParams) GenerationParams {
	if p.MaxTokens <= 0 {
		p.MaxTokens = 50
	}
	return p
}

var textContract = Contract{
	Accepts:  []xmedia.Kind{xmedia.KindPrompt},
	Produces: xmedia.KindText,
}

func promptOf(stage string, in xmedia.Value) (xmedia.Prompt, error) {
	if err := textContract.Check(in); err != nil {
		return xmedia.Prompt{}, err
	}
	p := in.(xmedia.Prompt)
	if strings.TrimSpace(p.Text) == "" {
		return xmedia.Prompt{}, xerror.ContractMismatch("stage %s: prompt is empty", stage)
	}
	return p, nil
}

// TextGenerator chat 模型生成文本
type TextGenerator struct {
	name   string
	params GenerationParams
	model  *modelSlot
}

func NewTextGenerator(name, modelID string, params GenerationParams, opts ...Option) *TextGenerator {
	return &TextGenerator{
		name:   name,
		params: generationParamsMergeDefault(params),
		model:  newModelSlot(name, modelID, opts),
	}
}

func (s *TextGenerator) Name() string { return s.name }

func (s *TextGenerator) Contract() Contract { return textContract }

func (s *TextGenerator) Params() GenerationParams { return s.params }

func (s *TextGenerator) Load(ctx context.Context) error {
	return s.model.load(ctx, func(h xmodel.Handle) error {
		_, err := handleAs[ChatModel](s.name, h)
		return err
	})
}

func (s *TextGenerator) Close() error {
	return s.model.close()
}

func (s *TextGenerator) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	p, err := promptOf(s.name, in)
	if err != nil {
		return nil, err
	}
	h, err := s.model.get()
	if err != nil {
		return nil, err
	}
	m, err := handleAs[ChatModel](s.name, h)
	if err != nil {
		return nil, err
	}
	resp, err := m.Chat(ctx, xmodel.ChatRequest{
		System:      s.params.System,
		User:        p.Text,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
		Seed:        s.params.Seed,
		Stop:        s.params.Stop,
	})
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	return xmedia.GeneratedText{
		Text:         strings.TrimSpace(resp.Text),
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
	}, nil
}

// RemoteGenerator text2text 模型，Hugging Face inference 协议
type RemoteGenerator struct {
	name   string
	params GenerationParams
	model  *modelSlot
}

func NewRemoteGenerator(name, modelID string, params GenerationParams, opts ...Option) *RemoteGenerator {
	return &RemoteGenerator{
		name:   name,
		params: generationParamsMergeDefault(params),
		model:  newModelSlot(name, modelID, opts),
	}
}

func (s *RemoteGenerator) Name() string { return s.name }

func (s *RemoteGenerator) Contract() Contract { return textContract }

func (s *RemoteGenerator) Load(ctx context.Context) error {
	return s.model.load(ctx, func(h xmodel.Handle) error {
		_, err := handleAs[TextModel](s.name, h)
		return err
	})
}

func (s *RemoteGenerator) Close() error {
	return s.model.close()
}

func (s *RemoteGenerator) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	p, err := promptOf(s.name, in)
	if err != nil {
		return nil, err
	}
	h, err := s.model.get()
	if err != nil {
		return nil, err
	}
	m, err := handleAs[TextModel](s.name, h)
	if err != nil {
		return nil, err
	}
	text, err := m.Generate(ctx, p.Text, xmodel.GenerateParams{
		MaxNewTokens: s.params.MaxTokens,
		Temperature:  s.params.Temperature,
		TopP:         s.params.TopP,
		Seed:         s.params.Seed,
		Stop:         s.params.Stop,
	})
	if err != nil {
		return nil, stageErr(s.name, err, xerror.KindInferenceFailure)
	}
	return xmedia.GeneratedText{Text: strings.TrimSpace(text), Model: h.ID()}, nil
}

func (s *TextGenerator) CacheKey() string {
	return s.model.modelID + "|" + s.params.key()
}

func (s *RemoteGenerator) CacheKey() string {
	return s.model.modelID + "|" + s.params.key()
}

func (p GenerationParams) key() string {
	seed := "-"
	if p.Seed != nil {
		seed = strconv.Itoa(*p.Seed)
	}
	return fmt.Sprintf("max=%d|temp=%g|top_p=%g|seed=%s|system=%q|stop=%q", p.MaxTokens, p.Temperature, p.TopP, seed, p.System, p.Stop)
}
