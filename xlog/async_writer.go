package xlog

import (
	"io"
	"sync"
)

const (
	defaultAsyncBufferSize = 4096

	// 超过该容量的 buffer 不归还 pool
	maxPoolBufSize = 8192
)

var logBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

// asyncWriter 将写入放入 channel，由单个 goroutine 顺序写到底层 writer
// channel 满时 Write 阻塞，不丢日志
type asyncWriter struct {
	ch       chan *[]byte
	writer   io.WriteCloser
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func newAsyncWriter(w io.WriteCloser, bufferSize int) *asyncWriter {
	if bufferSize <= 0 {
		bufferSize = defaultAsyncBufferSize
	}
	aw := &asyncWriter{
		ch:     make(chan *[]byte, bufferSize),
		writer: w,
		done:   make(chan struct{}),
	}
	go aw.loop()
	return aw
}

// Write 调用方可能复用 p，必须拷贝
func (aw *asyncWriter) Write(p []byte) (int, error) {
	bp := logBufPool.Get().(*[]byte)
	*bp = append((*bp)[:0], p...)
	aw.ch <- bp
	return len(p), nil
}

// Close 等待缓冲中的日志全部写完后关闭底层 writer，可重复调用
func (aw *asyncWriter) Close() error {
	aw.once.Do(func() {
		close(aw.ch)
		<-aw.done
		aw.closeErr = aw.writer.Close()
	})
	return aw.closeErr
}

func (aw *asyncWriter) loop() {
	defer close(aw.done)
	for bp := range aw.ch {
		_, _ = aw.writer.Write(*bp)
		if cap(*bp) <= maxPoolBufSize {
			logBufPool.Put(bp)
		}
	}
}
