// Package xpipeline 按顺序执行 (adapter, stage) 组成的推理流水线
//
// 每个 step 先由 adapter 转换上一步的输出，再做 stage 输入约束检查，最后调用 stage。
// 任一 step 失败即终止，后续 stage 不会被调用，也不做重试
package xpipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xstage"
	"github.com/xiaoshicae/xinfer/xtrace"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Step 一个 adapter 与一个 stage，Adapter 为 nil 时视为 identity
type Step struct {
	Adapter xadapter.Adapter
	Stage   xstage.Stage
}

func (s Step) Name() string {
	if s.Stage == nil {
		return ""
	}
	return s.Stage.Name()
}

func (s Step) adapter() xadapter.Adapter {
	if s.Adapter == nil {
		return xadapter.Identity()
	}
	return s.Adapter
}

// Observer 每个 step 成功后同步回调其输出，不影响流水线控制流，panic 会被吞掉
type Observer func(ctx context.Context, index int, stepName string, v xmedia.Value)

// Pipeline 有序 step 列表，可并发 Run，每次 Run 拥有独立的运行上下文
// 注意: Set/Add 方法非并发安全，必须在 Run 前完成配置
type Pipeline struct {
	Name     string
	Steps    []Step
	Observer Observer
	// Monitor 可选自定义监控实现，nil 时使用全局默认 Monitor
	Monitor Monitor
}

func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{Name: name, Steps: steps}
}

func (p *Pipeline) AddStep(s Step) {
	p.Steps = append(p.Steps, s)
}

func (p *Pipeline) SetObserver(o Observer) {
	p.Observer = o
}

func (p *Pipeline) SetMonitor(m Monitor) {
	p.Monitor = m
}

// Len step 数量
func (p *Pipeline) Len() int {
	return len(p.Steps)
}

// Load 依次加载所有 stage 的模型，stage 的关闭由其持有者负责
func (p *Pipeline) Load(ctx context.Context) error {
	for i, s := range p.Steps {
		if s.Stage == nil {
			continue
		}
		if err := xstage.Load(ctx, s.Stage); err != nil {
			return &StepError{Index: i + 1, StepName: s.Name(), Phase: PhaseStage, Kind: xerror.KindOf(err), Err: err}
		}
	}
	return nil
}

// runContext 单次运行的私有状态，值在每个边界整体替换
type runContext struct {
	value xmedia.Value
	index int
}

// Run 同步执行，返回的 RunResult 状态为 Completed 或 Failed
func (p *Pipeline) Run(ctx context.Context, input xmedia.Value) *RunResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &RunResult{Pipeline: p.Name, RunID: uuid.NewString(), State: Idle, StartedAt: time.Now()}
	ctx = xlog.CtxWithRun(ctx, p.Name, result.RunID)
	ctx, span := xtrace.StartSpan(ctx, "xpipeline.run",
		attribute.String("pipeline", p.Name),
		attribute.String("run_id", result.RunID),
		attribute.Int("steps", len(p.Steps)))
	defer span.End()

	monitor := p.resolveMonitor()
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		if result.Err != nil {
			span.SetStatus(codes.Error, result.Err.Error())
		}
		if monitor != nil {
			monitor.OnPipelineDone(ctx, result)
		}
	}()

	if len(p.Steps) == 0 {
		result.State = Failed
		result.Err = &StepError{
			Index: 0, StepName: p.Name, Phase: PhaseStage, Kind: xerror.KindContractMismatch,
			Err: xerror.ContractMismatch("pipeline %s has no steps", p.Name),
		}
		return result
	}

	result.State = Running
	rc := &runContext{value: input}
	for i, step := range p.Steps {
		rc.index = i + 1
		start := time.Now()
		stepCtx, stepSpan := xtrace.StartSpan(ctx, "xpipeline.step",
			attribute.Int("index", rc.index),
			attribute.String("stage", step.Name()))

		out, se := p.runStep(stepCtx, rc, step)
		timing := StepTiming{Index: rc.index, Name: step.Name(), Adapter: step.adapter().Name(), Duration: time.Since(start)}
		if se != nil {
			timing.Err = se.Err.Error()
			stepSpan.SetStatus(codes.Error, se.Err.Error())
		} else {
			timing.OutputKind = xmedia.KindOf(out).String()
		}
		stepSpan.End()
		result.Steps = append(result.Steps, timing)
		if monitor != nil {
			var err error
			if se != nil {
				err = se
			}
			monitor.OnStepDone(ctx, &StepEvent{
				Pipeline: p.Name, RunID: result.RunID, Index: rc.index, StepName: step.Name(), Err: err, Duration: timing.Duration,
			})
		}

		if se != nil {
			result.State = Failed
			result.Err = se
			return result
		}
		rc.value = out
		p.observe(ctx, rc.index, step.Name(), out)
	}

	result.State = Completed
	result.Output = rc.value
	return result
}

// Abort 未进入 Running 即失败的运行(如模型加载失败)，与 Run 一样分配 RunID 并通知 Monitor
//
// 非 StepError 归到 index 0，未分类的错误视为 ModelUnavailable
func (p *Pipeline) Abort(ctx context.Context, err error) *RunResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := &RunResult{Pipeline: p.Name, RunID: uuid.NewString(), State: Failed, StartedAt: time.Now()}
	ctx = xlog.CtxWithRun(ctx, p.Name, result.RunID)

	var se *StepError
	if errors.As(err, &se) {
		c := *se
		se = &c
	} else {
		se = &StepError{StepName: p.Name, Phase: PhaseStage, Err: err}
	}
	if se.Kind == xerror.KindUnknown {
		se.Err = xerror.KindOr(se.Err, xerror.KindModelUnavailable)
		se.Kind = xerror.KindOf(se.Err)
	}
	result.Err = se
	result.Duration = time.Since(result.StartedAt)
	if monitor := p.resolveMonitor(); monitor != nil {
		monitor.OnPipelineDone(ctx, result)
	}
	return result
}

func (p *Pipeline) runStep(ctx context.Context, rc *runContext, step Step) (xmedia.Value, *StepError) {
	fail := func(phase Phase, err error, fallback xerror.Kind) *StepError {
		err = xerror.KindOr(err, fallback)
		return &StepError{Index: rc.index, StepName: step.Name(), Phase: phase, Kind: xerror.KindOf(err), Err: err}
	}
	if step.Stage == nil {
		return nil, fail(PhaseStage, xerror.ModelUnavailable("step %d has no stage", rc.index), xerror.KindModelUnavailable)
	}

	adapted, err := safeAdapt(step.adapter(), rc.value)
	if err != nil {
		return nil, fail(PhaseAdapter, err, xerror.KindAdaptation)
	}
	if err := step.Stage.Contract().Check(adapted); err != nil {
		return nil, fail(PhaseStage, err, xerror.KindContractMismatch)
	}
	out, err := safeRun(ctx, step.Stage, adapted)
	if err != nil {
		return nil, fail(PhaseStage, err, xerror.KindInferenceFailure)
	}
	return out, nil
}

func (p *Pipeline) observe(ctx context.Context, index int, name string, v xmedia.Value) {
	if p.Observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			xlog.Warn(ctx, "xpipeline observer %s panic, step=[%d] err=[%v]", xutil.GetFuncName(p.Observer), index, r)
		}
	}()
	p.Observer(ctx, index, name, v)
}

// resolveMonitor config 禁用时返回 nil
func (p *Pipeline) resolveMonitor() Monitor {
	if GetConfig().DisableMonitor {
		return nil
	}
	if p.Monitor != nil {
		return p.Monitor
	}
	return GetDefaultMonitor()
}

// safeAdapt 捕获 panic 并附带堆栈
func safeAdapt(a xadapter.Adapter, in xmedia.Value) (out xmedia.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerror.Adaptation("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return a.Adapt(in)
}

// safeRun 捕获 panic 并附带堆栈
func safeRun(ctx context.Context, s xstage.Stage, in xmedia.Value) (out xmedia.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerror.InferenceFailure("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.Run(ctx, in)
}

// String 形如 narrator[identity>tagger, labels_to_prompt>generator]
func (p *Pipeline) String() string {
	s := p.Name + "["
	for i, step := range p.Steps {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s>%s", step.adapter().Name(), step.Name())
	}
	return s + "]"
}
