// Package xconfig 加载 application.yml(支持 profiles 覆盖、.env、${VAR:-default} 占位符)，
// 各模块通过 UnmarshalConfig 读取自己的配置段
package xconfig

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/spf13/viper"
)

const (
	serverNameConfigKey    = ServerConfigKey + ".Name"
	serverVersionConfigKey = ServerConfigKey + ".Version"
	serverDataDirConfigKey = ServerConfigKey + ".DataDir"

	defaultServerName    = "xinfer"
	defaultServerVersion = "v0.0.1"
	defaultDataDir       = "./.xinfer"
)

var (
	vipMu sync.RWMutex
	vip   *viper.Viper
)

func UnmarshalConfig(key string, conf any) error {
	if err := checkParam(key, conf); err != nil {
		return err
	}
	return getViperConfig().UnmarshalKey(key, conf)
}

func GetConfig(key string) any {
	return getViperConfig().Get(key)
}

func ContainKey(key string) bool {
	return getViperConfig().IsSet(key)
}

func GetString(key string) string {
	return getViperConfig().GetString(key)
}

func GetBool(key string) bool {
	return getViperConfig().GetBool(key)
}

func GetInt(key string) int {
	return getViperConfig().GetInt(key)
}

func GetFloat64(key string) float64 {
	return getViperConfig().GetFloat64(key)
}

// GetDuration 兼容 "7d" 这种按天的写法
func GetDuration(key string) time.Duration {
	return xutil.ToDuration(getViperConfig().Get(key))
}

func GetStringSlice(key string) []string {
	return getViperConfig().GetStringSlice(key)
}

// Set 覆盖单个配置项，用于命令行参数覆盖与测试
func Set(key string, value any) {
	vipMu.Lock()
	defer vipMu.Unlock()
	if vip == nil {
		vip = viper.New()
	}
	vip.Set(key, value)
}

// GetServerName 获取Server的Name，如果没有配置则为默认值
func GetServerName() string {
	return xutil.GetOrDefault(getViperConfig().GetString(serverNameConfigKey), defaultServerName)
}

// GetServerVersion 获取Server的Version，如果没有配置则为默认值
func GetServerVersion() string {
	return xutil.GetOrDefault(getViperConfig().GetString(serverVersionConfigKey), defaultServerVersion)
}

// GetDataDir 本地数据根目录，未配置时为 ./.xinfer
func GetDataDir() string {
	return xutil.GetOrDefault(getViperConfig().GetString(serverDataDirConfigKey), defaultDataDir)
}

// GetServer 获取合并默认值后的 Server 配置
func GetServer() *Server {
	c := &Server{}
	if err := UnmarshalConfig(ServerConfigKey, c); err != nil {
		xutil.WarnIfEnableDebug("XInfer xconfig unmarshal Server failed, err=[%v]", err)
	}
	return serverConfigMergeDefault(c)
}

func getViperConfig() *viper.Viper {
	vipMu.RLock()
	defer vipMu.RUnlock()
	if vip == nil {
		xutil.WarnIfEnableDebug("XInfer config not loaded, use empty config")
		return viper.New()
	}
	return vip
}

func loaded() bool {
	vipMu.RLock()
	defer vipMu.RUnlock()
	return vip != nil
}

func setViperConfig(vp *viper.Viper) {
	vipMu.Lock()
	vip = vp
	vipMu.Unlock()
}

func checkParam(key string, conf any) error {
	if key == "" {
		return fmt.Errorf("param key is empty")
	}
	if conf == nil {
		return fmt.Errorf("param conf is nil")
	}
	if reflect.TypeOf(conf).Kind() != reflect.Ptr {
		return fmt.Errorf("param conf is not ptr")
	}
	return nil
}
