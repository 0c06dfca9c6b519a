package xstage

import (
	"context"
	"sync"

	"github.com/xiaoshicae/xinfer/xmedia"
)

// Serialized 串行化 Run，用于句柄非线程安全的 stage
type Serialized struct {
	Stage
	mu sync.Mutex
}

func NewSerialized(s Stage) *Serialized {
	return &Serialized{Stage: s}
}

func (s *Serialized) Load(ctx context.Context) error {
	return Load(ctx, s.Stage)
}

func (s *Serialized) Close() error {
	return Close(s.Stage)
}

func (s *Serialized) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Stage.Run(ctx, in)
}
