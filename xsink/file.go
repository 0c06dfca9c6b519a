package xsink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xutil"
)

// JSONFileSink 每次运行追加一行 json 到 Path
type JSONFileSink struct {
	Path string

	mu sync.Mutex
}

func NewJSONFileSink(path string) *JSONFileSink {
	return &JSONFileSink{Path: path}
}

func (s *JSONFileSink) Accept(_ context.Context, r *xpipeline.RunResult) error {
	b, err := json.Marshal(NewRecord(r))
	if err != nil {
		return xerror.New("xsink", "json.Marshal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := xutil.EnsureDir(filepath.Dir(s.Path)); err != nil {
		return xerror.New("xsink", "EnsureDir", err)
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return xerror.New("xsink", "OpenFile", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return xerror.New("xsink", "Write", err)
	}
	return nil
}
