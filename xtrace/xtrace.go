// Package xtrace 初始化 OpenTelemetry TracerProvider 与上下文透传
package xtrace

import (
	"context"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/xiaoshicae/xinfer"

var (
	shutdownMu      sync.Mutex
	shutdownFunc    func(ctx context.Context) error
	shutdownTimeout = 5 * time.Second
)

func init() {
	xhook.BeforeStart(initXTrace, xhook.Order(3))
	xhook.BeforeStop(shutdownXTrace)
}

// EnableTrace 需要明确配置 XTrace.Enable=false 才会关闭
func EnableTrace() bool {
	if !xconfig.ContainKey(XTraceConfigKey + ".Enable") {
		return true
	}
	return xconfig.GetBool(XTraceConfigKey + ".Enable")
}

// GetTracer 获取 tracer，未初始化时为全局 noop
func GetTracer(name ...string) trace.Tracer {
	return otel.Tracer(xutil.GetOrDefault(append(name, "")[0], tracerName))
}

// StartSpan 以默认 tracer 开启 span
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetShutdownTimeout 设置 TracerProvider 关闭时 flush 的超时
func SetShutdownTimeout(timeout time.Duration) {
	if timeout > 0 {
		shutdownTimeout = timeout
	}
}

func initXTrace() error {
	c, err := getConfig()
	if err != nil {
		return xerror.Newf("xtrace", "initXTrace", "getConfig failed, err=[%v]", err)
	}
	if !*c.Enable {
		otel.SetTracerProvider(noop.NewTracerProvider())
		xutil.InfoIfEnableDebug("XInfer initXTrace ignored, because of config XTrace.Enable=false")
		return nil
	}
	return initXTraceByConfig(c, xconfig.GetServerName(), xconfig.GetServerVersion())
}

func initXTraceByConfig(c *Config, serviceName, serviceVersion string) error {
	r, err := resource.New(
		context.Background(),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return xerror.New("xtrace", "resource.New", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))),
		sdktrace.WithResource(r),
	}
	if c.Console {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return xerror.New("xtrace", "stdouttrace.New", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(buildPropagator(c.Propagators, c.ForwardHeaders))

	shutdownMu.Lock()
	shutdownFunc = tp.Shutdown
	shutdownMu.Unlock()
	return nil
}

func getConfig() (*Config, error) {
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XTraceConfigKey, c); err != nil {
		return nil, err
	}
	return configMergeDefault(c), nil
}

func shutdownXTrace() error {
	shutdownMu.Lock()
	fn := shutdownFunc
	shutdownFunc = nil
	shutdownMu.Unlock()
	if fn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return fn(ctx)
}
