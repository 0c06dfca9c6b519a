package xconfig

import "github.com/xiaoshicae/xinfer/xutil"

const (
	ServerConfigKey = "Server"
)

// Server 进程级配置，banner、trace resource、日志文件名都取自这里
type Server struct {
	// Name 服务名
	// required
	Name string `mapstructure:"Name"`

	// Version 服务版本号
	// optional default "v0.0.1"
	Version string `mapstructure:"Version"`

	// DataDir 本地数据根目录，模型缓存与 json 运行记录默认落在其下
	// optional default "./.xinfer"
	DataDir string `mapstructure:"DataDir"`

	// Profiles 环境相关配置
	// optional default nil
	Profiles *Profiles `mapstructure:"Profiles"`
}

type Profiles struct {
	// Active 启用的环境，对应 application-{Active}.yml，命令行 --profile 与环境变量优先
	// required
	Active string `mapstructure:"Active"`
}

func serverConfigMergeDefault(c *Server) *Server {
	if c == nil {
		c = &Server{}
	}
	c.Name = xutil.GetOrDefault(c.Name, defaultServerName)
	c.Version = xutil.GetOrDefault(c.Version, defaultServerVersion)
	c.DataDir = xutil.GetOrDefault(c.DataDir, defaultDataDir)
	return c
}
