package xerror

import (
	"errors"
	"fmt"
)

// Kind 推理错误分类
type Kind int

const (
	KindUnknown Kind = iota
	// KindModelUnavailable 模型无法加载或句柄不可用，不重试
	KindModelUnavailable
	// KindContractMismatch 输入不满足 stage 声明的输入约束，在调用模型之前检出
	KindContractMismatch
	// KindInferenceFailure 模型调用本身失败
	KindInferenceFailure
	// KindAdaptation stage 之间的转换失败
	KindAdaptation
)

func (k Kind) String() string {
	switch k {
	case KindModelUnavailable:
		return "ModelUnavailable"
	case KindContractMismatch:
		return "ContractMismatch"
	case KindInferenceFailure:
		return "InferenceFailure"
	case KindAdaptation:
		return "AdaptationError"
	default:
		return "Unknown"
	}
}

// 分类哨兵错误，配合 errors.Is 使用
var (
	ErrModelUnavailable = &kindError{kind: KindModelUnavailable}
	ErrContractMismatch = &kindError{kind: KindContractMismatch}
	ErrInferenceFailure = &kindError{kind: KindInferenceFailure}
	ErrAdaptation       = &kindError{kind: KindAdaptation}
)

type kindError struct {
	kind Kind
}

func (e *kindError) Error() string {
	return e.kind.String()
}

// classified 将原始错误与分类绑定，同时支持 errors.Is(err, ErrXxx) 与 errors.Is(err, cause)
type classified struct {
	kind  Kind
	msg   string
	cause error
}

func (e *classified) Error() string {
	switch {
	case e.cause != nil && e.msg != "":
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
}

func (e *classified) Unwrap() []error {
	errs := []error{sentinel(e.kind)}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func sentinel(k Kind) error {
	switch k {
	case KindModelUnavailable:
		return ErrModelUnavailable
	case KindContractMismatch:
		return ErrContractMismatch
	case KindInferenceFailure:
		return ErrInferenceFailure
	case KindAdaptation:
		return ErrAdaptation
	}
	return &kindError{kind: KindUnknown}
}

// Wrap 给 cause 打上分类，msg 可为空
func Wrap(kind Kind, cause error, msg string) error {
	return &classified{kind: kind, msg: msg, cause: cause}
}

// Wrapf 以格式化消息创建分类错误
func Wrapf(kind Kind, format string, args ...any) error {
	return &classified{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func ModelUnavailable(format string, args ...any) error {
	return Wrapf(KindModelUnavailable, format, args...)
}

func ContractMismatch(format string, args ...any) error {
	return Wrapf(KindContractMismatch, format, args...)
}

func InferenceFailure(format string, args ...any) error {
	return Wrapf(KindInferenceFailure, format, args...)
}

func Adaptation(format string, args ...any) error {
	return Wrapf(KindAdaptation, format, args...)
}

// KindOf 返回 err 链中第一个分类，未分类返回 KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// KindOr err 未分类时使用 fallback 分类包装，已分类则原样返回
func KindOr(err error, fallback Kind) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return Wrap(fallback, err, "")
}
