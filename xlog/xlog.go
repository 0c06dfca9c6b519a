// Package xlog 基于 logrus 的结构化日志
//
// 日志统一为 json 写入滚动文件，可选彩色控制台输出；trace/span id 与通过 CtxWithKV 注入的
// 字段(如 pipeline、run_id、stage)会自动附加到每条日志
package xlog

import (
	"context"
	"maps"

	"github.com/sirupsen/logrus"
)

type ctxKVKey struct{}

// 常用日志字段
const (
	FieldPipeline = "pipeline"
	FieldRunID    = "run_id"
	FieldStage    = "stage"
	FieldStep     = "step"
	FieldError    = "error"
)

func Error(ctx context.Context, msg string, args ...any) {
	RawLog(ctx, logrus.ErrorLevel, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	RawLog(ctx, logrus.WarnLevel, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	RawLog(ctx, logrus.InfoLevel, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	RawLog(ctx, logrus.DebugLevel, msg, args...)
}

// RawLog args 中的 Option(KV/KVMap) 作为字段，其余作为 msg 的格式化参数
func RawLog(ctx context.Context, level logrus.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !logrus.IsLevelEnabled(level) {
		return
	}

	if len(args) == 0 {
		logrus.WithContext(ctx).Log(level, msg)
		return
	}

	var opts *options
	fmtArgs := make([]any, 0, len(args))
	for _, arg := range args {
		opt, ok := arg.(Option)
		if !ok {
			fmtArgs = append(fmtArgs, arg)
			continue
		}
		if opts == nil {
			opts = defaultOptions()
		}
		opt(opts)
	}

	entry := logrus.WithContext(ctx)
	if opts != nil && len(opts.KV) > 0 {
		entry = entry.WithFields(opts.KV)
	}
	entry.Logf(level, msg, fmtArgs...)
}

// CtxWithKV 向ctx注入kv，之后以该ctx记录的日志都会带上这些字段
// 每次返回新的map副本，不修改父ctx中的数据
func CtxWithKV(ctx context.Context, kvs map[string]any) context.Context {
	parent := kvFromCtx(ctx)
	merged := make(map[string]any, len(parent)+len(kvs))
	maps.Copy(merged, parent)
	maps.Copy(merged, kvs)
	return context.WithValue(ctx, ctxKVKey{}, merged)
}

// CtxWithRun 注入一次流水线运行的 pipeline 名与 run id
func CtxWithRun(ctx context.Context, pipeline, runID string) context.Context {
	return CtxWithKV(ctx, map[string]any{FieldPipeline: pipeline, FieldRunID: runID})
}

func kvFromCtx(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	kvs, _ := ctx.Value(ctxKVKey{}).(map[string]any)
	return kvs
}

// Level 当前生效的日志级别
func Level() string {
	return logrus.GetLevel().String()
}
