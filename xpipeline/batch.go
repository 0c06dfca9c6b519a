package xpipeline

import (
	"context"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xutil"
)

// RunBatch 并发执行多个输入，结果与输入一一对应
// workers<=0 时使用配置 XPipeline.BatchWorkers
func (p *Pipeline) RunBatch(ctx context.Context, inputs []xmedia.Value, workers int) []*RunResult {
	if workers <= 0 {
		workers = GetConfig().BatchWorkers
	}
	workers = min(workers, max(len(inputs), 1))
	pool := xutil.NewPool(workers)
	defer pool.Shutdown()

	futures := make([]*xutil.Future[*RunResult], len(inputs))
	for i, in := range inputs {
		futures[i] = xutil.Go(pool, func() (*RunResult, error) {
			return p.Run(ctx, in), nil
		})
	}
	// 任务 panic 或未能提交时也保证每个输入都有结果
	return xutil.Collect(futures, func(i int, err error) *RunResult {
		return p.Abort(ctx, xerror.Wrap(xerror.KindInferenceFailure, err, "batch worker"))
	})
}
