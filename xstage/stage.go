// Package xstage 推理 stage: 对外统一为 Run(ctx, Value) (Value, error)
//
// 每个 stage 在调用模型前先做输入约束检查，随后做模型相关的归一化、
// 一次推理调用以及 top-k 提取或解码。stage 持有自己的模型句柄，不写文件、不打印
package xstage

import (
	"context"
	"slices"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

// Stage 单个模型的一次推理
type Stage interface {
	Name() string
	Contract() Contract
	Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error)
}

// Lifecycle 持有模型句柄的 stage 实现，Load 可重复调用
type Lifecycle interface {
	Load(ctx context.Context) error
	Close() error
}

// Load stage 未实现 Lifecycle 时直接返回
func Load(ctx context.Context, s Stage) error {
	if l, ok := s.(Lifecycle); ok {
		return l.Load(ctx)
	}
	return nil
}

func Close(s Stage) error {
	if l, ok := s.(Lifecycle); ok {
		return l.Close()
	}
	return nil
}

// Contract stage 的输入约束与输出类型
// 零值字段表示不限制
type Contract struct {
	Accepts    []xmedia.Kind
	Modality   xmedia.Modality
	SampleRate int
	Channels   int
	// Shape 中 -1 表示该维不限制
	Shape    []int
	Produces xmedia.Kind
}

// Check 不满足约束时返回 ContractMismatch
func (c Contract) Check(v xmedia.Value) error {
	if v == nil {
		return xerror.ContractMismatch("input is nil")
	}
	k := xmedia.KindOf(v)
	if len(c.Accepts) > 0 && !slices.Contains(c.Accepts, k) {
		return xerror.ContractMismatch("input kind %s, accepts %s", k, joinKinds(c.Accepts))
	}
	t, ok := v.(*xmedia.Tensor)
	if !ok {
		return nil
	}
	if t == nil {
		return xerror.ContractMismatch("input tensor is nil")
	}
	if c.Modality != xmedia.ModalityUnknown && t.Modality() != c.Modality {
		return xerror.ContractMismatch("input modality %s, want %s", t.Modality(), c.Modality)
	}
	if c.SampleRate > 0 && t.Meta().SampleRate != c.SampleRate {
		return xerror.ContractMismatch("input sample rate %d, want %d", t.Meta().SampleRate, c.SampleRate)
	}
	if c.Channels > 0 && t.Meta().Channels != c.Channels {
		return xerror.ContractMismatch("input channels %d, want %d", t.Meta().Channels, c.Channels)
	}
	if c.Shape != nil && !shapeMatch(t.Shape(), c.Shape) {
		return xerror.ContractMismatch("input shape %v, want %v", t.Shape(), c.Shape)
	}
	return nil
}

func shapeMatch(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if want[i] >= 0 && got[i] != want[i] {
			return false
		}
	}
	return true
}

func joinKinds(ks []xmedia.Kind) string {
	s := make([]string, len(ks))
	for i, k := range ks {
		s[i] = k.String()
	}
	return strings.Join(s, "|")
}

// Func 函数实现的 stage，Fn 返回的未分类错误视为 InferenceFailure
type Func struct {
	N  string
	C  Contract
	Fn func(ctx context.Context, in xmedia.Value) (xmedia.Value, error)
}

func (f Func) Name() string { return f.N }

func (f Func) Contract() Contract { return f.C }

func (f Func) Run(ctx context.Context, in xmedia.Value) (xmedia.Value, error) {
	if err := f.C.Check(in); err != nil {
		return nil, err
	}
	out, err := f.Fn(ctx, in)
	if err != nil {
		return nil, xerror.KindOr(err, xerror.KindInferenceFailure)
	}
	return out, nil
}

// stageErr 附加 stage 名，已分类的错误保留原分类
func stageErr(stage string, err error, fallback xerror.Kind) error {
	kind := xerror.KindOf(err)
	if kind == xerror.KindUnknown {
		kind = fallback
	}
	return xerror.Wrap(kind, err, "stage "+stage)
}

// conformErr stage 内部归一化失败说明输入不满足模型要求
func conformErr(stage string, err error) error {
	return xerror.Wrap(xerror.KindContractMismatch, err, "stage "+stage)
}
