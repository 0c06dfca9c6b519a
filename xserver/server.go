package xserver

import "context"

// Server 常驻服务接口
type Server interface {
	// Run 以阻塞方式运行，框架异步调用并等待退出信号，Run 返回即视为服务结束
	Run() error

	// Stop 收到退出信号后调用，用于优雅关闭
	Stop() error
}

// TaskFunc 一次性任务，如命令行单次推理，ctx 在收到退出信号时取消
type TaskFunc func(ctx context.Context) error
