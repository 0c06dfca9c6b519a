package xutil

import "context"

// Future 提交到 Pool 的任务结果
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done 任务结束时关闭
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get 阻塞等待结果
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait ctx 先结束时返回 ctx.Err()，任务本身继续执行
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Collect 按提交顺序等待全部结果，出错的任务(包括 panic 与提交失败)由 onErr 生成替代值
func Collect[T any](fs []*Future[T], onErr func(i int, err error) T) []T {
	out := make([]T, len(fs))
	for i, f := range fs {
		v, err := f.Get()
		if err != nil {
			v = onErr(i, err)
		}
		out[i] = v
	}
	return out
}
