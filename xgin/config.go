package xgin

import (
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xutil"
)

const ginConfigKey = "XGin"

// Config XGin 监听与退出相关配置，请求体上限、写超时与并发上限由 options 传入
type Config struct {
	// Host 监听地址
	// optional default "0.0.0.0"
	Host string `mapstructure:"Host"`

	// Port 监听端口
	// optional default 8000
	Port int `mapstructure:"Port"`

	// UseH2C 未配置 TLS 时启用 HTTP/2 Cleartext
	// optional default false
	UseH2C bool `mapstructure:"UseH2C"`

	// CertFile 与 KeyFile 同时配置时以 https 启动
	// optional default ""
	CertFile string `mapstructure:"CertFile"`

	// KeyFile
	// optional default ""
	KeyFile string `mapstructure:"KeyFile"`

	// ReadHeaderTimeout 读取请求头的超时时间
	// optional default "10s"
	ReadHeaderTimeout string `mapstructure:"ReadHeaderTimeout"`

	// ShutdownTimeout 退出时等待在途运行结束的最长时间，应不小于 XApi.RunTimeout
	// optional default "30s"
	ShutdownTimeout string `mapstructure:"ShutdownTimeout"`

	// Swagger swagger 页面展示信息
	// optional default nil
	Swagger *SwaggerConfig `mapstructure:"Swagger"`
}

// SwaggerConfig 对应 swag.Spec 中的同名字段
type SwaggerConfig struct {
	// optional default ""
	Host string `mapstructure:"Host"`

	// optional default ""
	BasePath string `mapstructure:"BasePath"`

	// optional default Server.Name
	Title string `mapstructure:"Title"`

	// optional default ""
	Description string `mapstructure:"Description"`

	// optional default 配置了 CertFile 时为 ["https"]，否则为 ["http"]
	Schemes []string `mapstructure:"Schemes"`
}

// GetConfig 获取 XGin 配置，每次调用重新读取
func GetConfig() *Config {
	c := &Config{}
	_ = xconfig.UnmarshalConfig(ginConfigKey, c)
	return configMergeDefault(c)
}

// GetSwaggerConfig 获取 XGin.Swagger，未配置的字段按服务名与 TLS 设置补齐
func GetSwaggerConfig() *SwaggerConfig {
	c := GetConfig()
	return swaggerConfigMergeDefault(c.Swagger, c.CertFile != "")
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8000
	}
	if xutil.ToDuration(c.ReadHeaderTimeout) <= 0 {
		c.ReadHeaderTimeout = "10s"
	}
	if xutil.ToDuration(c.ShutdownTimeout) <= 0 {
		c.ShutdownTimeout = "30s"
	}
	return c
}

func (c *Config) readHeaderTimeout() time.Duration {
	if d := xutil.ToDuration(c.ReadHeaderTimeout); d > 0 {
		return d
	}
	return 10 * time.Second
}

func (c *Config) shutdownTimeout() time.Duration {
	if d := xutil.ToDuration(c.ShutdownTimeout); d > 0 {
		return d
	}
	return 30 * time.Second
}

func swaggerConfigMergeDefault(s *SwaggerConfig, tls bool) *SwaggerConfig {
	out := SwaggerConfig{}
	if s != nil {
		out = *s
	}
	if out.Title == "" {
		out.Title = xconfig.GetServerName()
	}
	if len(out.Schemes) == 0 {
		out.Schemes = []string{"http"}
		if tls {
			out.Schemes = []string{"https"}
		}
	}
	return &out
}
