package xutil

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// 这里的日志仅用于xinfer自身的调试输出(启动、模型加载等)，只打印到屏幕，业务日志请使用xlog

const (
	maxCallerDepth = 25
	minCallerDepth = 5
	selfFile       = "/xutil/log.go"
)

var (
	debugLogger *logrus.Logger
	loggerOnce  sync.Once

	// 计算caller时需要跳过的第三方/框架文件
	ignoredCallerPatterns = compilePatterns(
		`logrus(|@v.*)/(hooks|entry|logger|exported)\.go$`,
		`gorm(|@v.*)/(callbacks|finisher_api)\.go$`,
		`go-redis/(.*)/(redis|string_commands)\.go$`,
		`onnxruntime_go(|@v.*)/.*\.go$`,
		`asm_(amd64|arm64)\.s$`,
	)
)

func ErrorIfEnableDebug(msg string, args ...any) {
	LogIfEnableDebug(logrus.ErrorLevel, msg, args...)
}

func WarnIfEnableDebug(msg string, args ...any) {
	LogIfEnableDebug(logrus.WarnLevel, msg, args...)
}

func InfoIfEnableDebug(msg string, args ...any) {
	LogIfEnableDebug(logrus.InfoLevel, msg, args...)
}

// LogIfEnableDebug 仅在 XINFER_ENABLE_DEBUG 打开时输出
func LogIfEnableDebug(level logrus.Level, msg string, args ...any) {
	if !EnableDebug() {
		return
	}
	loggerOnce.Do(initDebugLogger)
	debugLogger.Logf(level, msg, args...)
}

// GetLogCaller 获取第一个不在忽略列表中的调用栈帧
func GetLogCaller(callDepth int, suffixToIgnore []string) *runtime.Frame {
	pcs := make([]uintptr, maxCallerDepth)
	n := runtime.Callers(minCallerDepth+callDepth, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var frame *runtime.Frame
	for {
		f, more := frames.Next()
		frame = &f
		if !shouldIgnoreCaller(f.File, suffixToIgnore) || !more {
			break
		}
	}
	return frame
}

func shouldIgnoreCaller(file string, suffixToIgnore []string) bool {
	for _, s := range suffixToIgnore {
		if strings.HasSuffix(file, s) {
			return true
		}
	}
	for _, re := range ignoredCallerPatterns {
		if re.MatchString(file) {
			return true
		}
	}
	return false
}

func initDebugLogger() {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.999",
		CallerPrettyfier: func(*runtime.Frame) (string, string) {
			frame := GetLogCaller(0, []string{selfFile})
			if frame == nil {
				return "", " ???"
			}
			return "", fmt.Sprintf(" \x1b[34m%s:%d\x1b[0m", path.Base(frame.File), frame.Line)
		},
	}
	l.SetReportCaller(true)
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stdout)
	debugLogger = l
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}
