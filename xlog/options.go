package xlog

// KV 附加单个字段
func KV(k string, v any) Option {
	return func(o *options) {
		o.KV[k] = v
	}
}

func KVMap(m map[string]any) Option {
	return func(o *options) {
		for k, v := range m {
			o.KV[k] = v
		}
	}
}

// Step 附加流水线步骤序号与 stage 名
func Step(index int, stage string) Option {
	return func(o *options) {
		o.KV[FieldStep] = index
		o.KV[FieldStage] = stage
	}
}

// Err err 非 nil 时附加 error 字段
func Err(err error) Option {
	return func(o *options) {
		if err != nil {
			o.KV[FieldError] = err.Error()
		}
	}
}

type Option func(*options)

type options struct {
	KV map[string]any
}

func defaultOptions() *options {
	return &options{KV: make(map[string]any)}
}
