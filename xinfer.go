// Package xinfer 多阶段异构推理流水线
//
// 流水线由配置 XInfer.Pipelines 声明，启动时经 before start hook 依次初始化
// xconfig、xlog、xtrace、xhttp、xcache/xredis、xgorm、xmodel，最后由 xrecipe 构建流水线
package xinfer

import (
	"context"

	"github.com/xiaoshicae/xinfer/xapi"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xserver"
)

const VERSION = "v0.1.0"

// R 仅执行 before start hook，建议用于调试
func R() error {
	return xserver.R()
}

// Serve 启动 http 服务，阻塞直到收到退出信号
func Serve() error {
	return xapi.NewServer().Start()
}

// RunServer 启动自定义 Server
func RunServer(server xserver.Server) error {
	return xserver.Run(server)
}

// Exec 初始化后执行一次性任务，收到退出信号时取消 task 的 ctx，结束时执行 before stop hook
func Exec(ctx context.Context, task xserver.TaskFunc) error {
	return xserver.Exec(ctx, task)
}

// Run 按名称执行已注册的流水线，需在 Exec/R 初始化之后调用
func Run(ctx context.Context, pipeline string, input xmedia.Value) (*xpipeline.RunResult, error) {
	e, ok := xrecipe.Get(pipeline)
	if !ok {
		return nil, xerror.Newf("xinfer", "Run", "pipeline %s not found", pipeline)
	}
	return e.Run(ctx, input), nil
}
