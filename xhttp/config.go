package xhttp

const XHttpConfigKey = "XHttp"

type Config struct {
	// Timeout 单次请求超时，模型下载与远程推理耗时较长
	// optional default "120s"
	Timeout string `mapstructure:"Timeout"`

	// DialTimeout 建立 TCP 连接超时时间
	// optional default "10s"
	DialTimeout string `mapstructure:"DialTimeout"`

	// MaxIdleConnsPerHost 每个 host 最大空闲连接数
	// optional default 16
	MaxIdleConnsPerHost int `mapstructure:"MaxIdleConnsPerHost"`

	// IdleConnTimeout 空闲连接超时时间
	// optional default "90s"
	IdleConnTimeout string `mapstructure:"IdleConnTimeout"`

	// RetryCount 重试次数，仅对网络错误、429 与 5xx 重试
	// optional default 2
	RetryCount *int `mapstructure:"RetryCount"`

	// RetryWaitTime 重试等待时间
	// optional default "500ms"
	RetryWaitTime string `mapstructure:"RetryWaitTime"`

	// RetryMaxWaitTime 最大重试等待时间
	// optional default "5s"
	RetryMaxWaitTime string `mapstructure:"RetryMaxWaitTime"`

	// UserAgent
	// optional default "xinfer/{Server.Version}"
	UserAgent string `mapstructure:"UserAgent"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Timeout == "" {
		c.Timeout = "120s"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "10s"
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 16
	}
	if c.IdleConnTimeout == "" {
		c.IdleConnTimeout = "90s"
	}
	if c.RetryCount == nil || *c.RetryCount < 0 {
		n := 2
		c.RetryCount = &n
	}
	if c.RetryWaitTime == "" {
		c.RetryWaitTime = "500ms"
	}
	if c.RetryMaxWaitTime == "" {
		c.RetryMaxWaitTime = "5s"
	}
	return c
}
