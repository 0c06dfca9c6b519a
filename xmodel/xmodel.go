package xmodel

import (
	"os"
	"sync"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"
)

var (
	mu   sync.RWMutex
	conf = configMergeDefault(nil)
)

func init() {
	xhook.BeforeStart(initXModel, xhook.Order(7))
	xhook.BeforeStop(destroyOrt)
}

func initXModel() error {
	c := &Config{}
	if xconfig.ContainKey(XModelConfigKey) {
		if err := xconfig.UnmarshalConfig(XModelConfigKey, c); err != nil {
			return xerror.Newf("xmodel", "init", "getConfig failed, err=[%v]", err)
		}
	}
	c = configMergeDefault(c)
	xutil.InfoIfEnableDebug("XInfer initXModel got config: cache_dir=%s, onnxruntime=%s, openai=%s",
		c.CacheDir, c.OnnxRuntimeLib, c.OpenAI.BaseURL)

	if err := xutil.EnsureDir(c.CacheDir); err != nil {
		return xerror.Newf("xmodel", "init", "create cache dir %s failed, err=[%v]", c.CacheDir, err)
	}
	setConfig(c)
	return nil
}

func setConfig(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	conf = configMergeDefault(c)
}

func getConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return conf
}

func openAIKey(c *Config) string {
	if c.OpenAI.APIKey != "" {
		return c.OpenAI.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func hfToken(c *Config) string {
	if c.HF.Token != "" {
		return c.HF.Token
	}
	return os.Getenv("HF_TOKEN")
}
