package xpipeline

import (
	"context"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xlog"
)

// StepEvent step 执行完成事件
type StepEvent struct {
	Pipeline string
	RunID    string
	Index    int
	StepName string
	Err      error
	Duration time.Duration
}

// Monitor 监控接口，Pipeline 可注入自定义实现以观测执行过程
type Monitor interface {
	// OnStepDone 每个 step 执行完成时调用
	OnStepDone(ctx context.Context, event *StepEvent)
	// OnPipelineDone 一次运行结束时调用
	OnPipelineDone(ctx context.Context, result *RunResult)
}

type defaultMonitor struct{}

func (d *defaultMonitor) OnStepDone(ctx context.Context, e *StepEvent) {
	if e.Err != nil {
		xlog.Error(ctx, "xpipeline step failed, step=[%d] name=[%s] duration=[%s] err=[%v]",
			e.Index, e.StepName, e.Duration, e.Err, xlog.Step(e.Index, e.StepName), xlog.Err(e.Err))
		return
	}
	xlog.Info(ctx, "xpipeline step done, step=[%d] name=[%s] duration=[%s]",
		e.Index, e.StepName, e.Duration, xlog.Step(e.Index, e.StepName))
}

func (d *defaultMonitor) OnPipelineDone(ctx context.Context, r *RunResult) {
	if r.Err != nil {
		xlog.Warn(ctx, "xpipeline run failed, state=[%s] duration=[%s] failed_step=[%d] kind=[%s]",
			r.State, r.Duration, r.Err.Index, r.Err.Kind)
		return
	}
	xlog.Info(ctx, "xpipeline run done, state=[%s] duration=[%s]", r.State, r.Duration)
}

var (
	monitorMu              sync.RWMutex
	defaultMonitorInstance Monitor = &defaultMonitor{}
)

// SetDefaultMonitor 替换全局默认 Monitor，传 nil 恢复内置实现
func SetDefaultMonitor(m Monitor) {
	monitorMu.Lock()
	defer monitorMu.Unlock()
	if m == nil {
		m = &defaultMonitor{}
	}
	defaultMonitorInstance = m
}

func GetDefaultMonitor() Monitor {
	monitorMu.RLock()
	defer monitorMu.RUnlock()
	return defaultMonitorInstance
}
