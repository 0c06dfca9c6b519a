package xutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace"
)

func TestIsTruthy(t *testing.T) {
	PatchConvey("TestIsTruthy", t, func() {
		for _, s := range []string{"true", " TRUE ", "1", "t", "yes", "Y", "on"} {
			So(IsTruthy(s), ShouldBeTrue)
		}
		for _, s := range []string{"", "0", "false", "off", "no", "x"} {
			So(IsTruthy(s), ShouldBeFalse)
		}
	})
}

func TestEnableDebug(t *testing.T) {
	PatchConvey("TestEnableDebug", t, func() {
		t.Setenv(DebugKey, "")
		So(EnableDebug(), ShouldBeFalse)
		t.Setenv(DebugKey, "on")
		So(EnableDebug(), ShouldBeTrue)
		So(func() { InfoIfEnableDebug("debug %s", "msg") }, ShouldNotPanic)
	})
}

func TestGetOrDefault(t *testing.T) {
	PatchConvey("TestGetOrDefault", t, func() {
		So(GetOrDefault("", "d"), ShouldEqual, "d")
		So(GetOrDefault("v", "d"), ShouldEqual, "v")
		So(GetOrDefault(0, 32000), ShouldEqual, 32000)
		So(GetOrDefault(16000, 32000), ShouldEqual, 16000)
		var p *int
		So(GetOrDefault(p, ToPtr(1)), ShouldNotBeNil)
	})
}

func TestToDuration(t *testing.T) {
	PatchConvey("TestToDuration", t, func() {
		So(ToDuration(nil), ShouldEqual, 0)
		So(ToDuration("1s"), ShouldEqual, time.Second)
		So(ToDuration("7d"), ShouldEqual, 7*24*time.Hour)
		So(ToDuration("1d12h"), ShouldEqual, 36*time.Hour)
		So(ToDuration(ToPtr("2m")), ShouldEqual, 2*time.Minute)
		var nilStr *string
		So(ToDuration(nilStr), ShouldEqual, 0)
		So(ToDuration(time.Minute), ShouldEqual, time.Minute)
	})
}

func TestTraceIDFromCtx(t *testing.T) {
	PatchConvey("TestTraceIDFromCtx", t, func() {
		So(GetTraceIDFromCtx(context.Background()), ShouldBeEmpty)
		So(GetSpanIDFromCtx(context.Background()), ShouldBeEmpty)

		tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)
		So(GetTraceIDFromCtx(ctx), ShouldEqual, "4bf92f3577b34da6a3ce929d0e0e4736")
		So(GetSpanIDFromCtx(ctx), ShouldEqual, "00f067aa0ba902b7")
	})
}

func funcForReflectTest() {}

func TestGetFuncInfo(t *testing.T) {
	PatchConvey("TestGetFuncInfo", t, func() {
		file, line, name := GetFuncInfo(funcForReflectTest)
		So(name, ShouldEqual, "funcForReflectTest")
		So(filepath.Base(file), ShouldEqual, "xutil_test.go")
		So(line, ShouldBeGreaterThan, 0)

		So(GetFuncName(nil), ShouldBeEmpty)
		So(GetFuncName("not a func"), ShouldBeEmpty)
		var nilFn func()
		So(GetFuncName(nilFn), ShouldBeEmpty)
	})
}

func TestGetConfigFromArgs(t *testing.T) {
	PatchConvey("TestGetConfigFromArgs", t, func() {
		PatchConvey("InvalidKey", func() {
			_, err := GetConfigFromArgs("1bad key")
			So(err, ShouldNotBeNil)
		})

		PatchConvey("SpaceStyle", func() {
			Mock(GetOsArgs).Return([]string{"--server.config.location", "/a/application.yml"}).Build()
			v, err := GetConfigFromArgs("server.config.location")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "/a/application.yml")
		})

		PatchConvey("EqualStyle", func() {
			Mock(GetOsArgs).Return([]string{"-x", "--server.profiles.active=dev"}).Build()
			v, err := GetConfigFromArgs("server.profiles.active")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "dev")
		})

		PatchConvey("MissingValue", func() {
			Mock(GetOsArgs).Return([]string{"--server.profiles.active"}).Build()
			_, err := GetConfigFromArgs("server.profiles.active")
			So(err, ShouldNotBeNil)
		})

		PatchConvey("NotFound", func() {
			Mock(GetOsArgs).Return([]string{"run"}).Build()
			_, err := GetConfigFromArgs("server.profiles.active")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFileAndDir(t *testing.T) {
	PatchConvey("TestFileAndDir", t, func() {
		dir := t.TempDir()
		f := filepath.Join(dir, "a.txt")
		So(os.WriteFile(f, []byte("x"), 0o644), ShouldBeNil)

		So(FileExist(f), ShouldBeTrue)
		So(FileExist(dir), ShouldBeFalse)
		So(DirExist(dir), ShouldBeTrue)
		So(DirExist(f), ShouldBeFalse)

		nested := filepath.Join(dir, "x", "y")
		So(EnsureDir(nested), ShouldBeNil)
		So(DirExist(nested), ShouldBeTrue)
		So(EnsureDir(nested), ShouldBeNil)
	})
}

func TestToJsonString(t *testing.T) {
	PatchConvey("TestToJsonString", t, func() {
		So(ToJsonString(map[string]int{"a": 1}), ShouldEqual, `{"a":1}`)
		So(ToJsonString(make(chan int)), ShouldBeEmpty)
		So(ToJsonStringIndent([]int{1}), ShouldEqual, "[\n  1\n]")
	})
}

func TestRetry(t *testing.T) {
	PatchConvey("TestRetry", t, func() {
		PatchConvey("SuccessAfterFailures", func() {
			n := 0
			err := Retry(func() error {
				n++
				if n < 3 {
					return errors.New("not yet")
				}
				return nil
			}, 5, time.Millisecond)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})

		PatchConvey("AllFailed", func() {
			n := 0
			err := Retry(func() error {
				n++
				return errors.New("always")
			}, 3, 0)
			So(err.Error(), ShouldEqual, "always")
			So(n, ShouldEqual, 3)
		})

		PatchConvey("ZeroAttemptsRunsOnce", func() {
			n := 0
			_ = Retry(func() error { n++; return errors.New("x") }, 0, 0)
			So(n, ShouldEqual, 1)
		})

		PatchConvey("CtxCanceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			n := 0
			err := RetryCtx(ctx, func() error { n++; return errors.New("x") }, 5, time.Hour)
			So(err, ShouldNotBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPool(t *testing.T) {
	PatchConvey("TestPool", t, func() {
		PatchConvey("GoAndGet", func() {
			p := NewPool(4)
			defer p.Shutdown()

			futures := make([]*Future[int], 0, 10)
			for i := range 10 {
				futures = append(futures, Go(p, func() (int, error) { return i * i, nil }))
			}
			for i, f := range futures {
				v, err := f.Get()
				So(err, ShouldBeNil)
				So(v, ShouldEqual, i*i)
				So(closed(f.Done()), ShouldBeTrue)
			}
		})

		PatchConvey("PanicBecomesError", func() {
			p := NewPool(1)
			defer p.Shutdown()
			_, err := Go(p, func() (int, error) { panic("boom") }).Get()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})

		PatchConvey("ShutdownWaitsAndRejects", func() {
			p := NewPool(2)
			var cnt atomic.Int32
			for range 8 {
				p.Submit(func() { cnt.Add(1) })
			}
			p.Shutdown()
			So(cnt.Load(), ShouldEqual, 8)
			So(p.Submit(func() {}), ShouldBeFalse)

			_, err := Go(p, func() (int, error) { return 1, nil }).Get()
			So(errors.Is(err, ErrPoolClosed), ShouldBeTrue)
		})

		PatchConvey("Wait", func() {
			p := NewPool(1)
			defer p.Shutdown()
			block := make(chan struct{})
			f := Go(p, func() (int, error) { <-block; return 1, nil })
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := f.Wait(ctx)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(closed(f.Done()), ShouldBeFalse)
			close(block)
			v, err := f.Wait(context.Background())
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1)
		})

		PatchConvey("Collect", func() {
			p := NewPool(2)
			defer p.Shutdown()
			fs := []*Future[string]{
				Go(p, func() (string, error) { return "narrator", nil }),
				Go(p, func() (string, error) { panic("tagger crashed") }),
				Go(p, func() (string, error) { return "", errors.New("bad input") }),
			}
			var failed []int
			out := Collect(fs, func(i int, err error) string {
				failed = append(failed, i)
				return "failed: " + strings.SplitN(err.Error(), "\n", 2)[0]
			})
			So(out[0], ShouldEqual, "narrator")
			So(out[1], ShouldEqual, "failed: panic: tagger crashed")
			So(out[2], ShouldEqual, "failed: bad input")
			So(failed, ShouldResemble, []int{1, 2})
		})
	})
}

func TestGetLocalIp(t *testing.T) {
	PatchConvey("TestGetLocalIp", t, func() {
		ip, err := GetLocalIp()
		if err == nil {
			So(ip, ShouldNotBeEmpty)
		}
	})
}
