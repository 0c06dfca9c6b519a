package xpipeline

import (
	"fmt"
	"time"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

// State 一次运行的状态
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phase 失败发生在 step 的哪个阶段
type Phase string

const (
	PhaseAdapter Phase = "adapter"
	PhaseStage   Phase = "stage"
)

// StepError 失败 step 的位置与原因，Index 从 1 开始，0 表示流水线本身不可运行
type StepError struct {
	Index    int
	StepName string
	Phase    Phase
	Kind     xerror.Kind
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step=[%d] name=[%s] phase=[%s] kind=[%s] err=[%v]", e.Index, e.StepName, e.Phase, e.Kind, e.Err)
}

// Unwrap 同时支持 errors.Is(err, xerror.ErrXxx) 与 errors.Is(err, cause)
func (e *StepError) Unwrap() error {
	return e.Err
}

// StepTiming 单个 step 的执行记录
type StepTiming struct {
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Adapter    string        `json:"adapter"`
	OutputKind string        `json:"output_kind,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"err,omitempty"`
}

// RunResult 一次运行的结果
type RunResult struct {
	Pipeline  string
	RunID     string
	State     State
	Output    xmedia.Value
	Err       *StepError
	Steps     []StepTiming
	StartedAt time.Time
	Duration  time.Duration
}

func (r *RunResult) Success() bool {
	return r.State == Completed
}

// Error Err 为 nil 时返回 nil 接口
func (r *RunResult) Error() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// FailedIndex 未失败时返回 -1
func (r *RunResult) FailedIndex() int {
	if r.Err == nil {
		return -1
	}
	return r.Err.Index
}

func (r *RunResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("pipeline=[%s] run=[%s] state=[%s] %v", r.Pipeline, r.RunID, r.State, r.Err)
	}
	return fmt.Sprintf("pipeline=[%s] run=[%s] state=[%s] output=[%s]", r.Pipeline, r.RunID, r.State, xmedia.KindOf(r.Output))
}
