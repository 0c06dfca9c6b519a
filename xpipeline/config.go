package xpipeline

import (
	"sync"

	"github.com/xiaoshicae/xinfer/xconfig"
)

const XPipelineConfigKey = "XPipeline"

type Config struct {
	// DisableMonitor 是否禁用监控，默认开启
	// optional default false
	DisableMonitor bool `mapstructure:"DisableMonitor"`

	// BatchWorkers RunBatch 的并发数
	// optional default 4
	BatchWorkers int `mapstructure:"BatchWorkers"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = 4
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
		if err := xconfig.UnmarshalConfig(XPipelineConfigKey, c); err != nil {
			cachedConfig = configMergeDefault(nil)
			return
		}
		cachedConfig = configMergeDefault(c)
	})
	return cachedConfig
}
