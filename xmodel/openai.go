package xmodel

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhttp"

	openai "github.com/sashabaranov/go-openai"
)

// ChatRequest 单轮对话请求
type ChatRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Seed        *int
	Stop        []string
}

type ChatResponse struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

type Transcription struct {
	Text     string
	Language string
	Duration float64
}

// OpenAIModel openai 兼容协议的远程模型
type OpenAIModel struct {
	id     string
	model  string
	client *openai.Client
}

// NewOpenAIModel client 为 nil 时按 XModel.OpenAI 配置创建
func NewOpenAIModel(id, model string, client *openai.Client) (*OpenAIModel, error) {
	if client == nil {
		c := getConfig()
		key := openAIKey(c)
		if key == "" {
			return nil, xerror.ModelUnavailable("model %s: openai api key not configured", id)
		}
		cfg := openai.DefaultConfig(key)
		cfg.BaseURL = c.OpenAI.BaseURL
		cfg.OrgID = c.OpenAI.Organization
		cfg.HTTPClient = xhttp.RawC()
		client = openai.NewClientWithConfig(cfg)
	}
	return &OpenAIModel{id: id, model: model, client: client}, nil
}

func (m *OpenAIModel) ID() string { return m.id }

func (m *OpenAIModel) Model() string { return m.model }

func (m *OpenAIModel) Close() error { return nil }

func (m *OpenAIModel) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Stop:        req.Stop,
	})
	if err != nil {
		return ChatResponse{}, classifyOpenAIError(m.id, err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, xerror.InferenceFailure("model %s returned no choices", m.id)
	}
	return ChatResponse{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		FinishReason:     string(resp.Choices[0].FinishReason),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Transcribe filename 仅用于让服务端识别音频格式
func (m *OpenAIModel) Transcribe(ctx context.Context, audio io.Reader, filename, language string) (Transcription, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    m.model,
		FilePath: filename,
		Reader:   audio,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcription{}, classifyOpenAIError(m.id, err)
	}
	return Transcription{Text: resp.Text, Language: resp.Language, Duration: resp.Duration}, nil
}

// 鉴权失败或模型不存在视为模型不可用，其余视为推理失败
func classifyOpenAIError(id string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return xerror.Wrap(xerror.KindModelUnavailable, err, "model "+id)
		}
	}
	return xerror.Wrap(xerror.KindInferenceFailure, err, "model "+id)
}

func loadOpenAI(_ context.Context, ref Ref) (Handle, error) {
	return NewOpenAIModel(ref.ID, ref.Location, nil)
}
