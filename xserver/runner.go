package xserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xiaoshicae/xinfer/xhook"
	_ "github.com/xiaoshicae/xinfer/xtrace" // 默认加载trace
	"github.com/xiaoshicae/xinfer/xutil"
)

var quitSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// Run 启动 Server 并阻塞，收到退出信号后调用 Stop，server 为 nil 时只执行 before start hook
func Run(server Server) error {
	if server == nil {
		return R()
	}
	return lifecycle(func() error { return serve(server) })
}

// Exec 执行一次性任务(单次或批量推理、模型拉取)，收到退出信号时取消传给 task 的 ctx，
// 在途运行随之以取消结束，before stop hook 总会执行
func Exec(ctx context.Context, task TaskFunc) error {
	return lifecycle(func() error {
		ctx, stop := signal.NotifyContext(ctx, quitSignals...)
		defer stop()
		return safeInvokeTask(ctx, task)
	})
}

// R 仅执行 before start hook，建议用于调试
func R() error {
	return xhook.InvokeBeforeStartHook()
}

// lifecycle start hook 失败时直接返回，否则 body 与 stop hook 的错误合并返回
func lifecycle(body func() error) error {
	if err := xhook.InvokeBeforeStartHook(); err != nil {
		return err
	}
	bodyErr := body()
	return errors.Join(bodyErr, xhook.InvokeBeforeStopHook())
}

func serve(s Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), quitSignals...)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- safeInvokeServerRun(s) }()

	select {
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("XInfer Run server failed, err=[%v]", err)
		}
		xutil.WarnIfEnableDebug("XInfer Run server unexpected stopped")
		return nil
	case <-ctx.Done():
		xutil.InfoIfEnableDebug("********** XInfer Stop server begin **********")
		if err := safeInvokeServerStop(s); err != nil {
			return fmt.Errorf("XInfer Stop server failed, err=[%v]", err)
		}
		xutil.InfoIfEnableDebug("********** XInfer Stop server success **********")
		return nil
	}
}

func safeInvokeServerRun(s Server) (err error) {
	defer recoverTo(&err)
	if err = s.Run(); errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func safeInvokeServerStop(s Server) (err error) {
	defer recoverTo(&err)
	return s.Stop()
}

func safeInvokeTask(ctx context.Context, task TaskFunc) (err error) {
	defer recoverTo(&err)
	if task == nil {
		return nil
	}
	return task(ctx)
}

func recoverTo(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic occurred, %v", r)
	}
}
