package xapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xsink"
)

// PipelineInfo 流水线描述
type PipelineInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Input       string   `json:"input"`
	Stages      []string `json:"stages"`
}

// RunError 失败 step 的信息
type RunError struct {
	Index   int    `json:"index"`
	Step    string `json:"step,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunResponse 一次运行的响应
type RunResponse struct {
	RunID      string                 `json:"run_id"`
	Pipeline   string                 `json:"pipeline"`
	State      string                 `json:"state"`
	OutputKind string                 `json:"output_kind,omitempty"`
	Labels     []xmedia.Label         `json:"labels,omitempty"`
	Text       string                 `json:"text,omitempty"`
	Error      *RunError              `json:"error,omitempty"`
	Steps      []xpipeline.StepTiming `json:"steps"`
	DurationMs int64                  `json:"duration_ms"`
}

// ErrorResponse 请求本身不合法时的响应
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func newRunResponse(r *xpipeline.RunResult) *RunResponse {
	resp := &RunResponse{
		RunID:      r.RunID,
		Pipeline:   r.Pipeline,
		State:      r.State.String(),
		Steps:      r.Steps,
		DurationMs: r.Duration.Milliseconds(),
	}
	if resp.Steps == nil {
		resp.Steps = []xpipeline.StepTiming{}
	}
	if r.Output != nil {
		resp.OutputKind = r.Output.Kind().String()
		if ls, ok := r.Output.(xmedia.LabelSet); ok {
			resp.Labels = ls.Labels()
		} else {
			resp.Text = xsink.Render(r.Output)
		}
	}
	if r.Err != nil {
		resp.Error = &RunError{
			Index:   r.Err.Index,
			Step:    r.Err.StepName,
			Phase:   string(r.Err.Phase),
			Kind:    r.Err.Kind.String(),
			Message: r.Err.Err.Error(),
		}
	}
	return resp
}

// statusOf 运行结果对应的 http 状态码
func statusOf(r *xpipeline.RunResult) int {
	if r.Success() {
		return http.StatusOK
	}
	if r.Err == nil {
		return http.StatusInternalServerError
	}
	if errors.Is(r.Err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch r.Err.Kind {
	case xerror.KindContractMismatch:
		return http.StatusUnprocessableEntity
	case xerror.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case xerror.KindInferenceFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func errKindOf(r *xpipeline.RunResult) string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind.String()
}
