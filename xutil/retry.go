package xutil

import (
	"context"
	"time"
)

// Retry 执行fn，失败后间隔sleep重试，最多执行attempts次，返回最后一次的错误
func Retry(fn func() error, attempts int, sleep time.Duration) error {
	return RetryCtx(context.Background(), fn, attempts, sleep)
}

// RetryCtx 同 Retry，ctx 结束时提前返回
func RetryCtx(ctx context.Context, fn func() error, attempts int, sleep time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i+1 == attempts || sleep <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(sleep):
		}
	}
	return err
}
