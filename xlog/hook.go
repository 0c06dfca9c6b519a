package xlog

import (
	"context"
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/sirupsen/logrus"
)

const (
	colorRed    = 31
	colorYellow = 33
	colorBlue   = 36
	colorGray   = 37
)

const timeLayout = "2006-01-02 15:04:05.000"

// xLogHook 补充公共字段，并按需输出到控制台
type xLogHook struct {
	ServerName     string
	IP             string
	Pid            string
	SuffixToIgnore []string

	Console    bool
	ConsoleRaw bool
	Color      bool
	Writer     io.Writer

	// RunFields 控制台行内展示的字段，为空时使用 pipeline/run_id/stage
	RunFields []string
	// MaxFieldLength <=0 不截断
	MaxFieldLength int
}

func (h *xLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *xLogHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["servername"]; !ok {
		entry.Data["servername"] = h.ServerName
	}
	entry.Data["ip"] = h.IP
	entry.Data["pid"] = h.Pid

	caller := entry.Caller
	if caller == nil {
		caller = xutil.GetLogCaller(0, h.SuffixToIgnore)
	}
	if caller != nil {
		entry.Data["filename"] = path.Base(caller.File)
		entry.Data["lineid"] = strconv.Itoa(caller.Line)
	}

	if traceID := xutil.GetTraceIDFromCtx(entry.Context); traceID != "" {
		entry.Data["traceid"] = traceID
		entry.Data["spanid"] = xutil.GetSpanIDFromCtx(entry.Context)
	}

	for k, v := range kvFromCtx(entry.Context) {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	if h.MaxFieldLength > 0 {
		truncateFields(entry.Data, h.MaxFieldLength)
	}

	if !h.Console {
		return nil
	}
	return h.consolePrint(entry, caller)
}

func (h *xLogHook) consolePrint(entry *logrus.Entry, caller *runtime.Frame) error {
	if h.ConsoleRaw {
		line, err := entry.Bytes()
		if err != nil {
			return err
		}
		_, err = h.Writer.Write(line)
		return err
	}

	level := strings.ToUpper(entry.Level.String())
	if h.Color {
		level = fmt.Sprintf("\x1b[%dm%s\x1b[0m", levelColor(entry.Level), level)
	}

	msg := fmt.Appendf(nil, "%s[%s] %s", level, entry.Time.Format(timeLayout), callerPretty(caller))
	fields := h.RunFields
	if len(fields) == 0 {
		fields = []string{FieldPipeline, FieldRunID, FieldStage}
	}
	for _, k := range fields {
		if v, ok := entry.Data[k]; ok {
			msg = fmt.Appendf(msg, " %s=%v", k, v)
		}
	}
	if traceID, ok := entry.Data["traceid"]; ok {
		msg = fmt.Appendf(msg, " %v", traceID)
	}
	msg = fmt.Appendf(msg, " %s\n", entry.Message)
	if stack, ok := entry.Data["panic_stack"]; ok {
		msg = fmt.Appendf(msg, "%v\n", stack)
	}

	_, err := h.Writer.Write(msg)
	return err
}

// timeFormatter 按配置时区输出时间，拷贝 entry 避免多个 writer 之间互相影响
type timeFormatter struct {
	logrus.Formatter
	Location *time.Location
}

func (t timeFormatter) Format(e *logrus.Entry) ([]byte, error) {
	cp := *e
	if cp.Context == nil {
		cp.Context = context.Background()
	}
	if t.Location != nil {
		cp.Time = cp.Time.In(t.Location)
	}
	return t.Formatter.Format(&cp)
}

// truncateFields 截断超长字符串字段，保留 utf8 边界
func truncateFields(data logrus.Fields, n int) {
	for k, v := range data {
		s, ok := v.(string)
		if !ok || len(s) <= n {
			continue
		}
		cut := n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		data[k] = s[:cut] + "...(" + strconv.Itoa(len(s)) + " bytes)"
	}
}

func levelColor(l logrus.Level) int {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return colorGray
	case logrus.WarnLevel:
		return colorYellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}

func callerPretty(f *runtime.Frame) string {
	if f == nil {
		return "???"
	}
	return fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
}
