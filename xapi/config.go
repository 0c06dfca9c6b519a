package xapi

import (
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xgin/options"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/dustin/go-humanize"
)

// writeGrace 写超时在运行超时之外留给编码与写响应的时间
const writeGrace = 5 * time.Second

const XApiConfigKey = "XApi"

type Config struct {
	// RunTimeout 单次运行的超时时间
	// optional default "60s"
	RunTimeout string `mapstructure:"RunTimeout"`

	// Sinks 每次运行结果的输出，可选 log | gorm | json[:path]
	// optional default ["log"]
	Sinks []string `mapstructure:"Sinks"`

	// MaxUploadSize run 接口请求体上限，如 "32MB"
	// optional default "32MB"
	MaxUploadSize string `mapstructure:"MaxUploadSize"`

	// MaxInflight 同时执行的运行数上限，超出返回 503，0 不限制
	// optional default 0
	MaxInflight int `mapstructure:"MaxInflight"`
}

// UploadLimit 解析 MaxUploadSize，非法时回退到 32MiB
func (c *Config) UploadLimit() int64 {
	n, err := humanize.ParseBytes(c.MaxUploadSize)
	if err != nil || n == 0 {
		return options.DefaultMaxUploadBytes
	}
	return int64(n)
}

// ServeOptions 由 XApi 配置推导出的 http 服务参数
func (c *Config) ServeOptions() []options.Option {
	return []options.Option{
		options.MaxUploadBytes(c.UploadLimit()),
		options.WriteTimeout(c.Timeout() + writeGrace),
		options.MaxInflight(c.MaxInflight, runPathPrefix),
	}
}

func (c *Config) Timeout() time.Duration {
	if d := xutil.ToDuration(c.RunTimeout); d > 0 {
		return d
	}
	return 60 * time.Second
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.RunTimeout == "" {
		c.RunTimeout = "60s"
	}
	if c.Sinks == nil {
		c.Sinks = []string{"log"}
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "32MB"
	}
	if c.MaxInflight < 0 {
		c.MaxInflight = 0
	}
	return c
}

var (
	cachedConfig     *Config
	cachedConfigOnce sync.Once
)

// GetConfig 首次调用时反序列化并缓存
func GetConfig() *Config {
	cachedConfigOnce.Do(func() {
		c := &Config{}
		if err := xconfig.UnmarshalConfig(XApiConfigKey, c); err != nil {
			cachedConfig = configMergeDefault(nil)
			return
		}
		cachedConfig = configMergeDefault(c)
	})
	return cachedConfig
}
