package xmodel

import (
	"path/filepath"

	"github.com/xiaoshicae/xinfer/xconfig"
)

const XModelConfigKey = "XModel"

type Config struct {
	// CacheDir 远程模型权重的本地缓存目录
	// optional default "{Server.DataDir}/models"
	CacheDir string `mapstructure:"CacheDir"`

	// OnnxRuntimeLib onnxruntime 动态库路径，为空时使用系统默认搜索路径
	// optional default ""
	OnnxRuntimeLib string `mapstructure:"OnnxRuntimeLib"`

	// LockTimeout 等待其他进程下载同一模型的超时时间
	// optional default "10m"
	LockTimeout string `mapstructure:"LockTimeout"`

	// OpenAI openai 兼容接口配置
	// optional default nil
	OpenAI *OpenAIConfig `mapstructure:"OpenAI"`

	// HF Hugging Face inference 接口配置
	// optional default nil
	HF *HFConfig `mapstructure:"HF"`
}

type OpenAIConfig struct {
	// BaseURL 兼容 openai 协议的服务地址
	// optional default "https://api.openai.com/v1"
	BaseURL string `mapstructure:"BaseURL"`

	// APIKey 为空时读取环境变量 OPENAI_API_KEY
	// optional default ""
	APIKey string `mapstructure:"APIKey"`

	// Organization
	// optional default ""
	Organization string `mapstructure:"Organization"`
}

type HFConfig struct {
	// Token 为空时读取环境变量 HF_TOKEN
	// optional default ""
	Token string `mapstructure:"Token"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(xconfig.GetDataDir(), "models")
	}
	if c.LockTimeout == "" {
		c.LockTimeout = "10m"
	}
	if c.OpenAI == nil {
		c.OpenAI = &OpenAIConfig{}
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.HF == nil {
		c.HF = &HFConfig{}
	}
	return c
}
