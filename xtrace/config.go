package xtrace

import "github.com/xiaoshicae/xinfer/xutil"

const (
	XTraceConfigKey = "XTrace"
)

type Config struct {
	// Enable Trace是否开启
	// optional default true
	Enable *bool `mapstructure:"Enable"`

	// Console span 是否打印到控制台
	// optional default false
	Console bool `mapstructure:"Console"`

	// SampleRatio 采样率，(0,1]
	// optional default 1
	SampleRatio float64 `mapstructure:"SampleRatio"`

	// Propagators 上下文透传格式，支持 tracecontext、baggage、b3、b3multi
	// optional default ["tracecontext", "baggage"]
	Propagators []string `mapstructure:"Propagators"`

	// ForwardHeaders 需要从上游请求透传到下游模型服务的 Header，如 X-Request-ID
	// optional default nil
	ForwardHeaders []string `mapstructure:"ForwardHeaders"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	// 只有明确配置 Enable: false 才关闭
	if c.Enable == nil {
		c.Enable = xutil.ToPtr(true)
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1
	}
	if len(c.Propagators) == 0 {
		c.Propagators = []string{"tracecontext", "baggage"}
	}
	return c
}
