package xsink

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
)

const defaultJSONFileName = "runs.jsonl"

// Parse 由名称构造 sink，支持 log | table | gorm | json[:path]
// json 未指定 path 时写 {Server.DataDir}/runs.jsonl
// table 写入 w，w 为 nil 时写 stdout
func Parse(name string, w io.Writer) (Sink, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
	switch strings.ToLower(kind) {
	case "log":
		return LogSink{}, nil
	case "table":
		if w == nil {
			w = os.Stdout
		}
		return NewTableSink(w), nil
	case "gorm", "db":
		return GormSink{}, nil
	case "json":
		if arg == "" {
			arg = filepath.Join(xconfig.GetDataDir(), defaultJSONFileName)
		}
		return NewJSONFileSink(arg), nil
	}
	return nil, xerror.Newf("xsink", "Parse", "unknown sink %q", name)
}

// ParseAll 依次构造并合并，空名称被忽略
func ParseAll(names []string, w io.Writer) (Sink, error) {
	sinks := make([]Sink, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		s, err := Parse(n, w)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return Multi(sinks...), nil
}
