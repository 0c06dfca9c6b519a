package xredis

const XRedisConfigKey = "XRedis"

type Config struct {
	// Addr Redis 地址
	// optional default "localhost:6379"
	Addr string `mapstructure:"Addr"`

	// Username Redis 6.0+ ACL 用户名
	// optional default ""
	Username string `mapstructure:"Username"`

	// Password 认证密码
	// optional default ""
	Password string `mapstructure:"Password"`

	// DB 数据库编号
	// optional default 0
	DB int `mapstructure:"DB"`

	// KeyPrefix 推理结果缓存 key 前缀
	// optional default "xinfer:"
	KeyPrefix string `mapstructure:"KeyPrefix"`

	// DialTimeout 建立连接超时时间
	// optional default "500ms"
	DialTimeout string `mapstructure:"DialTimeout"`

	// ReadTimeout 读超时时间
	// optional default "500ms"
	ReadTimeout string `mapstructure:"ReadTimeout"`

	// WriteTimeout 写超时时间
	// optional default "500ms"
	WriteTimeout string `mapstructure:"WriteTimeout"`

	// PoolSize 连接池最大连接数
	// optional default 0，由 go-redis 决定
	PoolSize int `mapstructure:"PoolSize"`

	// MinIdleConns 最小空闲连接数
	// optional default 2
	MinIdleConns int `mapstructure:"MinIdleConns"`

	// MaxRetries 命令重试次数，-1 禁用
	// optional default 0，由 go-redis 决定
	MaxRetries int `mapstructure:"MaxRetries"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "xinfer:"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "500ms"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "500ms"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "500ms"
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	return c
}

// sanitize 日志输出前隐藏密码
func sanitize(c *Config) *Config {
	sc := *c
	if sc.Password != "" {
		sc.Password = "***"
	}
	return &sc
}
