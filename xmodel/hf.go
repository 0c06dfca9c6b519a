package xmodel

import (
	"context"
	"net/http"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhttp"

	"github.com/go-resty/resty/v2"
)

// GenerateParams text-generation 参数，零值字段不下发
type GenerateParams struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    float32  `json:"temperature,omitempty"`
	TopP           float32  `json:"top_p,omitempty"`
	Seed           *int     `json:"seed,omitempty"`
	Stop           []string `json:"stop,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters GenerateParams `json:"parameters"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// HFModel Hugging Face inference 协议的 text-generation 模型
type HFModel struct {
	id       string
	endpoint string
	token    string
	client   *resty.Client
}

// NewHFModel client 为 nil 时使用 xhttp 全局 client
func NewHFModel(id, endpoint, token string, client *resty.Client) *HFModel {
	if client == nil {
		client = xhttp.C()
	}
	return &HFModel{id: id, endpoint: endpoint, token: token, client: client}
}

func (m *HFModel) ID() string { return m.id }

func (m *HFModel) Endpoint() string { return m.endpoint }

func (m *HFModel) Close() error { return nil }

func (m *HFModel) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	var out []hfGenerated
	var failure hfError
	r := m.client.R().SetContext(ctx).
		SetBody(hfRequest{Inputs: prompt, Parameters: params}).
		SetResult(&out).
		SetError(&failure)
	if m.token != "" {
		r.SetAuthToken(m.token)
	}
	resp, err := r.Post(m.endpoint)
	if err != nil {
		return "", xerror.Wrap(xerror.KindInferenceFailure, err, "model "+m.id)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound:
		return "", xerror.ModelUnavailable("model %s: status %d, %s", m.id, code, failure.Error)
	case code == http.StatusServiceUnavailable:
		return "", xerror.ModelUnavailable("model %s is loading: %s", m.id, failure.Error)
	case resp.IsError():
		return "", xerror.InferenceFailure("model %s: status %d, %s", m.id, code, failure.Error)
	}
	if len(out) == 0 {
		return "", xerror.InferenceFailure("model %s returned empty result", m.id)
	}
	return out[0].GeneratedText, nil
}

func loadHF(_ context.Context, ref Ref) (Handle, error) {
	return NewHFModel(ref.ID, ref.Location, hfToken(getConfig()), nil), nil
}
