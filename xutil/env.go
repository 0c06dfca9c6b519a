package xutil

import (
	"os"
	"strings"
)

const (
	// DebugKey 启用框架调试日志的环境变量
	DebugKey = "XINFER_ENABLE_DEBUG"
)

// EnableDebug 是否启用debug模式，用于xinfer启动、模型加载过程中的日志打印
func EnableDebug() bool {
	return IsTruthy(os.Getenv(DebugKey))
}

// IsTruthy 判断字符串是否表示"真"
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t", "yes", "y", "on":
		return true
	}
	return false
}
