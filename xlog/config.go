package xlog

const (
	XLogConfigKey = "XLog"

	defaultMaxFieldLength = 4096
)

// Config 日志配置，文件日志为 json，一行一条
type Config struct {
	// Level 日志级别
	// optional default "info"
	Level string `mapstructure:"Level"`

	// Name 日志文件名称，实际文件为 Path/Name.log
	// optional default "xinfer"
	Name string `mapstructure:"Name"`

	// Path 日志文件夹路径
	// optional default "./log"
	Path string `mapstructure:"Path"`

	// MaxAge 日志保存最大时间
	// optional default "7d"
	MaxAge string `mapstructure:"MaxAge"`

	// RotateTime 日志切割时长
	// optional default "1d"
	RotateTime string `mapstructure:"RotateTime"`

	// Timezone 日志时间的时区
	// optional default "Asia/Shanghai"
	Timezone string `mapstructure:"Timezone"`

	// Async 文件写入是否异步，批量推理时日志量较大可开启
	// optional default false
	Async bool `mapstructure:"Async"`

	// AsyncBufferSize 异步写入缓冲条数
	// optional default 4096
	AsyncBufferSize int `mapstructure:"AsyncBufferSize"`

	// Console 是否同时打印到控制台
	// optional default false
	Console bool `mapstructure:"Console"`

	// ConsoleFormatIsRaw 控制台直接打印 json，为false时打印 level+time+file+RunFields+traceid+内容
	// optional default false
	ConsoleFormatIsRaw bool `mapstructure:"ConsoleFormatIsRaw"`

	// RunFields 控制台行内展示的上下文字段，按顺序输出
	// optional default ["pipeline", "run_id", "step", "stage"]
	RunFields []string `mapstructure:"RunFields"`

	// MaxFieldLength 字符串字段的最大字节数，超出部分截断，prompt、转写文本与生成结果可能很长，<0 不截断
	// optional default 4096
	MaxFieldLength int `mapstructure:"MaxFieldLength"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Name == "" {
		c.Name = "xinfer"
	}
	if c.Path == "" {
		c.Path = "./log"
	}
	if c.MaxAge == "" {
		c.MaxAge = "7d"
	}
	if c.RotateTime == "" {
		c.RotateTime = "1d"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	if c.AsyncBufferSize <= 0 {
		c.AsyncBufferSize = defaultAsyncBufferSize
	}
	if len(c.RunFields) == 0 {
		c.RunFields = []string{FieldPipeline, FieldRunID, FieldStep, FieldStage}
	}
	if c.MaxFieldLength == 0 {
		c.MaxFieldLength = defaultMaxFieldLength
	}
	return c
}
