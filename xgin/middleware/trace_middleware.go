package middleware

import (
	"github.com/xiaoshicae/xinfer/xtrace"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/semconv/v1.20.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName    = "github.com/xiaoshicae/xinfer/xgin"
	TraceIdHeader = "X-Trace-Id"

	attrPipeline = "xinfer.pipeline"
	attrRunID    = "xinfer.run_id"
)

// GinXTraceMiddleware 开启 server span，上游 trace 上下文从请求头提取
//
// 请求触发了流水线运行时，span 带上 pipeline 与 run_id，pipeline 内各 stage 的 span 挂在其下
func GinXTraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := routeOf(c)
		attrs := []attribute.KeyValue{semconv.HTTPRoute(route), semconv.HTTPMethod(c.Request.Method)}
		if name := c.Param("name"); name != "" {
			attrs = append(attrs, attribute.String(attrPipeline, name))
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := xtrace.GetTracer(tracerName).Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		// 响应头必须在 c.Next() 之前写入
		if sc := span.SpanContext(); sc.IsValid() {
			c.Header(TraceIdHeader, sc.TraceID().String())
		}

		c.Next()
		finishSpan(c, span)
	}
}

func finishSpan(c *gin.Context, span trace.Span) {
	status := c.Writer.Status()
	span.SetStatus(httpconv.ServerStatus(status))
	if status > 0 {
		span.SetAttributes(semconv.HTTPStatusCode(status))
	}
	if runID := RunId(c); runID != "" {
		span.SetAttributes(attribute.String(attrRunID, runID))
	}
	if kind := c.GetString(FieldErrorKind); kind != "" {
		span.SetAttributes(attribute.String("xinfer.error_kind", kind))
	}
	if len(c.Errors) > 0 {
		span.SetAttributes(attribute.String("gin.errors", c.Errors.String()))
	}
}

// routeOf 未命中路由时取原始 path
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
