package xcache

const XCacheConfigKey = "XCache"

type Config struct {
	// NumCounters 用于统计访问频率的 key 数量，建议为期望条目数的 10 倍
	// optional default 100000
	NumCounters int64 `mapstructure:"NumCounters"`

	// MaxCost 缓存总成本上限(字节)，stage 结果缓存按结果字节数计成本，Set 固定计 1
	// optional default 268435456 (256MB)
	MaxCost int64 `mapstructure:"MaxCost"`

	// BufferItems Get 缓冲区大小
	// optional default 64
	BufferItems int64 `mapstructure:"BufferItems"`

	// DefaultTTL 默认过期时间
	// optional default "10m"
	DefaultTTL string `mapstructure:"DefaultTTL"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.NumCounters <= 0 {
		c.NumCounters = 100000
	}
	if c.MaxCost <= 0 {
		c.MaxCost = 256 << 20
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
	if c.DefaultTTL == "" {
		c.DefaultTTL = "10m"
	}
	return c
}
