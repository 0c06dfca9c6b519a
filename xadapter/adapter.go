// Package xadapter 提供 stage 之间的数据转换
//
// Adapter 必须是纯函数：无 I/O、无隐藏状态，相同输入总是得到相同输出；无法产出合法结果时
// 返回 AdaptationError
package xadapter

import (
	"fmt"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

type Adapter interface {
	Name() string
	Adapt(in xmedia.Value) (xmedia.Value, error)
}

// Func 以函数实现 Adapter
type Func struct {
	N  string
	Fn func(in xmedia.Value) (xmedia.Value, error)
}

func (f Func) Name() string { return f.N }

func (f Func) Adapt(in xmedia.Value) (xmedia.Value, error) {
	out, err := f.Fn(in)
	if err != nil {
		return nil, xerror.KindOr(err, xerror.KindAdaptation)
	}
	return out, nil
}

type identity struct{}

// Identity 原样返回
func Identity() Adapter { return identity{} }

func (identity) Name() string { return "identity" }

func (identity) Adapt(in xmedia.Value) (xmedia.Value, error) {
	if in == nil {
		return nil, xerror.Adaptation("identity: input is nil")
	}
	return in, nil
}

type chain struct {
	members []Adapter
}

// Chain 依次执行多个 adapter，出错时指出失败的成员
func Chain(adapters ...Adapter) Adapter {
	members := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			members = append(members, a)
		}
	}
	if len(members) == 0 {
		return Identity()
	}
	if len(members) == 1 {
		return members[0]
	}
	return chain{members: members}
}

func (c chain) Name() string {
	names := make([]string, len(c.members))
	for i, a := range c.members {
		names[i] = a.Name()
	}
	return strings.Join(names, "+")
}

func (c chain) Adapt(in xmedia.Value) (xmedia.Value, error) {
	cur := in
	for i, a := range c.members {
		out, err := a.Adapt(cur)
		if err != nil {
			return nil, xerror.Wrap(xerror.KindAdaptation, err, fmt.Sprintf("chain member %d (%s)", i+1, a.Name()))
		}
		cur = out
	}
	return cur, nil
}

func expectKind(adapter string, in xmedia.Value, want xmedia.Kind) error {
	if got := xmedia.KindOf(in); got != want {
		return xerror.Adaptation("%s: expect %s input, got %s", adapter, want, got)
	}
	return nil
}
