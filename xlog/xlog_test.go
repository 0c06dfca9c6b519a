package xlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigMergeDefault(t *testing.T) {
	PatchConvey("TestConfigMergeDefault", t, func() {
		So(configMergeDefault(nil), ShouldResemble, &Config{
			Level:           "info",
			Name:            "xinfer",
			Path:            "./log",
			AsyncBufferSize: 4096,
			MaxAge:          "7d",
			RotateTime:      "1d",
			Timezone:        "Asia/Shanghai",
			RunFields:       []string{FieldPipeline, FieldRunID, FieldStep, FieldStage},
			MaxFieldLength:  4096,
		})

		c := configMergeDefault(&Config{Level: "debug", Name: "n", Path: "p", Async: true, AsyncBufferSize: 8, MaxAge: "1d", RotateTime: "1h", Timezone: "UTC"})
		So(c.Level, ShouldEqual, "debug")
		So(c.AsyncBufferSize, ShouldEqual, 8)
		So(c.Timezone, ShouldEqual, "UTC")

		c = configMergeDefault(&Config{RunFields: []string{FieldRunID}, MaxFieldLength: -1})
		So(c.RunFields, ShouldResemble, []string{FieldRunID})
		So(c.MaxFieldLength, ShouldEqual, -1)
	})
}

func TestResolveLevels(t *testing.T) {
	PatchConvey("TestResolveLevels", t, func() {
		So(resolveLevels("error"), ShouldResemble, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel})
		So(len(resolveLevels("debug")), ShouldEqual, 6)
		So(len(resolveLevels("unknown")), ShouldEqual, 5)
	})
}

func TestCtxWithKV(t *testing.T) {
	PatchConvey("TestCtxWithKV", t, func() {
		ctx := CtxWithRun(context.Background(), "narrator", "r1")
		child := CtxWithKV(ctx, map[string]any{FieldStage: "tagger"})

		So(kvFromCtx(ctx), ShouldResemble, map[string]any{FieldPipeline: "narrator", FieldRunID: "r1"})
		So(kvFromCtx(child), ShouldResemble, map[string]any{FieldPipeline: "narrator", FieldRunID: "r1", FieldStage: "tagger"})
		So(kvFromCtx(nil), ShouldBeNil)
	})
}

func TestOptions(t *testing.T) {
	PatchConvey("TestOptions", t, func() {
		o := defaultOptions()
		for _, opt := range []Option{KV("a", 1), KVMap(map[string]any{"b": 2}), Step(2, "generator"), Err(nil)} {
			opt(o)
		}
		So(o.KV, ShouldResemble, map[string]any{"a": 1, "b": 2, FieldStep: 2, FieldStage: "generator"})

		Err(errors.New("boom"))(o)
		So(o.KV[FieldError], ShouldEqual, "boom")
	})
}

type nopCloser struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (n *nopCloser) Write(p []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buf.Write(p)
}

func (n *nopCloser) Close() error {
	n.closed = true
	return nil
}

func TestAsyncWriter(t *testing.T) {
	PatchConvey("TestAsyncWriter", t, func() {
		dst := &nopCloser{}
		aw := newAsyncWriter(dst, 2)
		for i := 0; i < 10; i++ {
			_, err := aw.Write([]byte("line\n"))
			So(err, ShouldBeNil)
		}
		So(aw.Close(), ShouldBeNil)
		So(aw.Close(), ShouldBeNil)
		So(dst.closed, ShouldBeTrue)
		So(bytes.Count(dst.buf.Bytes(), []byte("line\n")), ShouldEqual, 10)
	})
}

func TestHookConsolePrint(t *testing.T) {
	PatchConvey("TestHookConsolePrint", t, func() {
		out := &bytes.Buffer{}
		h := &xLogHook{ServerName: "s", IP: "1.1.1.1", Pid: "1", Console: true, Writer: out}

		entry := logrus.NewEntry(logrus.New())
		entry.Context = CtxWithRun(context.Background(), "narrator", "r1")
		entry.Message = "stage done"
		entry.Level = logrus.InfoLevel

		So(h.Fire(entry), ShouldBeNil)
		So(entry.Data["servername"], ShouldEqual, "s")
		So(entry.Data[FieldPipeline], ShouldEqual, "narrator")
		So(out.String(), ShouldContainSubstring, "INFO")
		So(out.String(), ShouldContainSubstring, "pipeline=narrator")
		So(out.String(), ShouldContainSubstring, "stage done")
	})

	PatchConvey("TestHookRunFields", t, func() {
		out := &bytes.Buffer{}
		h := &xLogHook{Console: true, Writer: out, RunFields: []string{FieldRunID, FieldStep}}

		entry := logrus.NewEntry(logrus.New())
		entry.Context = CtxWithRun(context.Background(), "narrator", "r7")
		entry.Data[FieldStep] = 2
		entry.Message = "step failed"

		So(h.Fire(entry), ShouldBeNil)
		So(out.String(), ShouldContainSubstring, "run_id=r7 step=2")
		So(out.String(), ShouldNotContainSubstring, "pipeline=")
	})
}

func TestTruncateFields(t *testing.T) {
	PatchConvey("TestTruncateFields", t, func() {
		h := &xLogHook{MaxFieldLength: 8, Writer: &bytes.Buffer{}}
		entry := logrus.NewEntry(logrus.New())
		entry.Data["text"] = "a generated scene about a barking dog"
		entry.Data["short"] = "ok"
		// 4 个 3 字节汉字，截断点落在第三个字中间
		entry.Data["zh"] = "狗在叫唤"
		entry.Data[FieldStep] = 1

		So(h.Fire(entry), ShouldBeNil)
		So(entry.Data["text"], ShouldEqual, "a genera...(37 bytes)")
		So(entry.Data["short"], ShouldEqual, "ok")
		So(entry.Data["zh"], ShouldEqual, "狗在...(12 bytes)")
		So(entry.Data[FieldStep], ShouldEqual, 1)
	})
}

func TestInitXLogByConfig(t *testing.T) {
	PatchConvey("TestInitXLogByConfig", t, func() {
		old := logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
		defer logrus.StandardLogger().ReplaceHooks(old)
		defer logrus.SetOutput(os.Stderr)

		dir := t.TempDir()
		c := configMergeDefault(&Config{Path: dir, Name: "test", Timezone: "UTC"})
		So(initXLogByConfig(c), ShouldBeNil)

		Info(context.Background(), "hello %s", "xinfer", KV("k", "v"))

		data, err := os.ReadFile(filepath.Join(dir, "test.log"))
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "hello xinfer")
		So(string(data), ShouldContainSubstring, `"k":"v"`)
	})
}
