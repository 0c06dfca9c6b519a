package xutil

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Pool 固定 worker 数量的任务池，用于并发执行互不相关的任务(如批量推理)
type Pool struct {
	tasks    chan func()
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewPool 创建任务池，workerCount < 1 时按 1 处理
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{tasks: make(chan func(), workerCount*4)}
	p.wg.Add(workerCount)
	for range workerCount {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit 提交任务，任务池关闭后返回 false
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Shutdown 停止接收新任务并等待已提交任务完成，可重复调用
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// ErrPoolClosed 任务池已关闭
var ErrPoolClosed = errors.New("pool is shut down")

// Go 向任务池提交带返回值的任务，fn 发生 panic 时以 error 形式返回
func Go[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	task := func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
			f.complete(v, err)
		}()
		v, err = fn()
	}
	if !p.Submit(task) {
		var zero T
		f.complete(zero, ErrPoolClosed)
	}
	return f
}
