// Package xmedia 定义在流水线各 stage 之间流转的值
//
// 所有值均不可变：构造时拷贝输入，访问器返回拷贝，stage 之间只替换不修改
package xmedia

// Kind 值的种类
type Kind int

const (
	KindUnknown Kind = iota
	KindTensor
	KindLabels
	KindPrompt
	KindTranscript
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindLabels:
		return "labels"
	case KindPrompt:
		return "prompt"
	case KindTranscript:
		return "transcript"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value 流水线中流转的值
type Value interface {
	Kind() Kind
}

// KindOf nil 安全
func KindOf(v Value) Kind {
	if v == nil {
		return KindUnknown
	}
	return v.Kind()
}
