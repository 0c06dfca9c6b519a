package xlog

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xutil"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	logwriter "github.com/sirupsen/logrus/hooks/writer"
)

var findFrameIgnoreFileNames = []string{
	"/xlog/xlog.go",
	"/xlog/hook.go",
}

func init() {
	xhook.BeforeStart(initXLog, xhook.Order(2))
}

func initXLog() error {
	c, err := getConfig()
	if err != nil {
		return xerror.New("xlog", "getConfig", err)
	}
	xutil.InfoIfEnableDebug("XInfer initXLog got config: %s", xutil.ToJsonString(c))
	return initXLogByConfig(c)
}

func initXLogByConfig(c *Config) error {
	if err := xutil.EnsureDir(c.Path); err != nil {
		return xerror.Newf("xlog", "EnsureDir", "path=[%s], err=[%v]", c.Path, err)
	}

	logFilePath := filepath.Join(c.Path, c.Name+".log")
	rotated, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(xutil.ToDuration(c.MaxAge)),
		rotatelogs.WithRotationTime(xutil.ToDuration(c.RotateTime)),
	)
	if err != nil {
		return xerror.New("xlog", "rotatelogs.New", err)
	}

	var fileWriter io.WriteCloser = rotated
	if c.Async {
		fileWriter = newAsyncWriter(rotated, c.AsyncBufferSize)
	}
	// 最后关闭，保证其他模块 BeforeStop 中的日志能写入
	xhook.BeforeStop(fileWriter.Close, xhook.Order(10000))

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		xutil.WarnIfEnableDebug("XInfer initXLog load timezone [%s] failed, use Local, err=[%v]", c.Timezone, err)
		loc = time.Local
	}

	logrus.SetOutput(io.Discard)
	logrus.SetFormatter(timeFormatter{
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: timeLayout,
			CallerPrettyfier: func(*runtime.Frame) (string, string) {
				return "", ""
			},
		},
		Location: loc,
	})

	ip, _ := xutil.GetLocalIp()
	logrus.AddHook(&xLogHook{
		ServerName:     xconfig.GetServerName(),
		IP:             xutil.GetOrDefault(ip, "0.0.0.0"),
		Pid:            strconv.Itoa(os.Getpid()),
		SuffixToIgnore: findFrameIgnoreFileNames,
		Console:        c.Console,
		ConsoleRaw:     c.ConsoleFormatIsRaw,
		Color:          isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		Writer:         os.Stdout,
		RunFields:      c.RunFields,
		MaxFieldLength: c.MaxFieldLength,
	})
	logrus.AddHook(&logwriter.Hook{
		Writer:    fileWriter,
		LogLevels: resolveLevels(c.Level),
	})

	l, err := logrus.ParseLevel(c.Level)
	if err != nil {
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)
	return nil
}

func getConfig() (*Config, error) {
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XLogConfigKey, c); err != nil {
		return nil, err
	}
	return configMergeDefault(c), nil
}

// resolveLevels 返回不低于 l 的全部级别
func resolveLevels(l string) []logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(l))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, x := range logrus.AllLevels {
		if x <= lvl {
			levels = append(levels, x)
		}
	}
	return levels
}
