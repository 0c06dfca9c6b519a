package xsink

import (
	"context"

	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xpipeline"
)

// LogSink 以 xlog 记录结果，失败记为 warn
type LogSink struct{}

func (LogSink) Accept(ctx context.Context, r *xpipeline.RunResult) error {
	ctx = xlog.CtxWithRun(ctx, r.Pipeline, r.RunID)
	if r.Err != nil {
		xlog.Warn(ctx, "pipeline result: %s", r.State,
			xlog.KV("failed_step", r.Err.Index), xlog.KV("err_kind", r.Err.Kind.String()), xlog.KV("err", r.Err.Err.Error()))
		return nil
	}
	xlog.Info(ctx, "pipeline result: %s", r.State,
		xlog.KV("output", Render(r.Output)), xlog.KV("duration_ms", r.Duration.Milliseconds()))
	return nil
}
