// Package xerror xinfer 的错误类型
//
// 框架模块(配置、日志、客户端初始化、模型拉取等)返回 *XInferError，标明出错的模块与操作；
// 推理过程中的错误按 Kind 分类(ModelUnavailable / ContractMismatch / InferenceFailure / AdaptationError)，
// 分类错误被 XInferError 包装后仍可通过 KindOf 与 errors.Is 判断
package xerror

import "fmt"

// XInferError 框架模块错误
type XInferError struct {
	Module string // 如 "xconfig", "xmodel"
	Op     string // 如 "init", "load"
	Err    error
}

func (e *XInferError) Error() string {
	head := "XInfer " + e.Module + " " + e.Op + " failed"
	if e.Err == nil {
		return head
	}
	return head + ", err=[" + e.Err.Error() + "]"
}

func (e *XInferError) Unwrap() error {
	return e.Err
}

func New(module, op string, err error) *XInferError {
	return &XInferError{Module: module, Op: op, Err: err}
}

// Newf format 支持 %w，被包装的分类错误保留其 Kind
func Newf(module, op, format string, args ...any) *XInferError {
	return &XInferError{Module: module, Op: op, Err: fmt.Errorf(format, args...)}
}
