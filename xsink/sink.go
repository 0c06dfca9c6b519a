// Package xsink 流水线运行结果的输出端
package xsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
)

// Sink 接收一次运行的结果
type Sink interface {
	Accept(ctx context.Context, r *xpipeline.RunResult) error
}

// SinkFunc 函数实现的 Sink
type SinkFunc func(ctx context.Context, r *xpipeline.RunResult) error

func (f SinkFunc) Accept(ctx context.Context, r *xpipeline.RunResult) error {
	return f(ctx, r)
}

type multi []Sink

// Multi 依次写入所有 sink，某个失败不影响其余，错误合并返回
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Accept(ctx context.Context, r *xpipeline.RunResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Accept(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Render 结果的可读文本
func Render(v xmedia.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case xmedia.LabelSet:
		parts := make([]string, 0, x.Len())
		for _, l := range x.Labels() {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", l.Name, l.Confidence))
		}
		return strings.Join(parts, ", ")
	case xmedia.Prompt:
		return x.Text
	case xmedia.Transcript:
		return x.Text
	case xmedia.GeneratedText:
		return x.Text
	case *xmedia.Tensor:
		return x.String()
	default:
		return xmedia.KindOf(v).String()
	}
}
