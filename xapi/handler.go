// Package xapi 流水线的 http 接口
//
//	GET  /health
//	GET  /v1/pipelines
//	POST /v1/pipelines/:name/run
//
// run 接口的输入可以是 multipart 的 file 字段、{"text": "..."} 形式的 json，或直接作为请求体
package xapi

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xgin/middleware"
	"github.com/xiaoshicae/xinfer/xgin/trans"
	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xsink"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	formFileField = "file"
	runPathPrefix = "/v1/pipelines/"
)

// TextRequest text 输入的 json 请求体
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// Register 注册路由
func Register(e *gin.Engine) {
	e.GET("/health", Health)
	v1 := e.Group("/v1")
	v1.GET("/pipelines", ListPipelines)
	v1.POST("/pipelines/:name/run", RunPipeline)
}

// Health
// @Summary 健康检查
// @Success 200 {object} map[string]any
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pipelines": len(xrecipe.Names())})
}

// ListPipelines
// @Summary 已注册的流水线
// @Success 200 {array} PipelineInfo
// @Router /v1/pipelines [get]
func ListPipelines(c *gin.Context) {
	names := xrecipe.Names()
	out := make([]PipelineInfo, 0, len(names))
	for _, n := range names {
		e, ok := xrecipe.Get(n)
		if !ok {
			continue
		}
		info := PipelineInfo{Name: n, Description: e.Recipe.Description, Input: e.Recipe.Input, Stages: make([]string, 0, e.Pipeline.Len())}
		for _, s := range e.Pipeline.Steps {
			info.Stages = append(info.Stages, s.Name())
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, out)
}

// RunPipeline
// @Summary 执行流水线
// @Param name path string true "流水线名"
// @Param file formData file false "音频(wav)或图片"
// @Success 200 {object} RunResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} RunResponse
// @Failure 502 {object} RunResponse
// @Failure 503 {object} RunResponse
// @Router /v1/pipelines/{name}/run [post]
func RunPipeline(c *gin.Context) {
	name := c.Param("name")
	e, ok := xrecipe.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "pipeline " + name + " not found"})
		return
	}

	input, err := readInput(c, e.Recipe.Input)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: kindText(err)})
		return
	}

	conf := GetConfig()
	ctx, cancel := context.WithTimeout(c.Request.Context(), conf.Timeout())
	defer cancel()

	result := e.Run(ctx, input)
	middleware.StampRun(c, name, result.RunID, errKindOf(result))
	emit(c.Request.Context(), conf.Sinks, result)
	c.JSON(statusOf(result), newRunResponse(result))
}

func readInput(c *gin.Context, input string) (xmedia.Value, error) {
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, binding.MIMEMultipartPOSTForm):
		fh, err := c.FormFile(formFileField)
		if err != nil {
			if input == xrecipe.InputText {
				if text := c.PostForm("text"); text != "" {
					return xrecipe.DecodeInput(input, strings.NewReader(text))
				}
			}
			return nil, xerror.ContractMismatch("form field %q is required", formFileField)
		}
		return decodeFormFile(input, fh)
	case contentType == binding.MIMEJSON:
		if input != xrecipe.InputText {
			return nil, xerror.ContractMismatch("pipeline accepts %s input, json body only carries text", input)
		}
		var req TextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, xerror.ContractMismatch("%s", trans.ToZHErrMsg(err))
		}
		return xrecipe.DecodeInput(input, strings.NewReader(req.Text))
	default:
		body := http.MaxBytesReader(c.Writer, c.Request.Body, GetConfig().UploadLimit())
		return xrecipe.DecodeInput(input, body)
	}
}

func decodeFormFile(input string, fh *multipart.FileHeader) (xmedia.Value, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return xrecipe.DecodeInput(input, f)
}

var (
	sink     xsink.Sink
	sinkOnce sync.Once
)

// resultSink 按 XApi.Sinks 构造一次，配置非法时回退到 LogSink
func resultSink(names []string) xsink.Sink {
	sinkOnce.Do(func() {
		s, err := xsink.ParseAll(names, nil)
		if err != nil {
			xlog.Warn(context.Background(), "XInfer XApi.Sinks invalid, fallback to log, err=[%v]", err)
			s = xsink.LogSink{}
		}
		sink = s
	})
	return sink
}

// emit 输出失败只记录日志，不影响响应
func emit(ctx context.Context, names []string, r *xpipeline.RunResult) {
	if err := resultSink(names).Accept(ctx, r); err != nil {
		xlog.Warn(ctx, "XInfer emit run result failed, err=[%v]", err, xlog.KV(xlog.FieldRunID, r.RunID))
	}
}

func kindText(err error) string {
	if k := xerror.KindOf(err); k != xerror.KindUnknown {
		return k.String()
	}
	return ""
}
