package middleware

import (
	"github.com/xiaoshicae/xinfer/xlog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIdHeader = "X-Request-Id"
	RunIdHeader     = "X-Run-Id"
	FieldRequestId  = "request_id"
	FieldErrorKind  = "error_kind"

	maxRequestIdLen = 128
)

// GinXSessionMiddleware 为每个请求生成或透传 request id，并注入日志上下文
func GinXSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIdHeader)
		if rid == "" || len(rid) > maxRequestIdLen {
			rid = uuid.NewString()
		}
		c.Header(RequestIdHeader, rid)
		c.Set(FieldRequestId, rid)

		ctx := xlog.CtxWithKV(c.Request.Context(), map[string]any{FieldRequestId: rid})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// StampRun 记录本次请求触发的 pipeline 运行，写回 X-Run-Id 响应头，日志与 trace 中间件在 c.Next 之后读取
//
// 必须在写响应 body 之前调用，errKind 为空表示运行成功
func StampRun(c *gin.Context, pipeline, runID, errKind string) {
	if runID == "" {
		return
	}
	c.Header(RunIdHeader, runID)
	c.Set(xlog.FieldPipeline, pipeline)
	c.Set(xlog.FieldRunID, runID)
	if errKind != "" {
		c.Set(FieldErrorKind, errKind)
	}
}

// RequestId 获取当前请求的 request id
func RequestId(c *gin.Context) string {
	return c.GetString(FieldRequestId)
}

// RunId 获取当前请求触发的运行 id，未运行时为空
func RunId(c *gin.Context) string {
	return c.GetString(xlog.FieldRunID)
}
