package xhook

import (
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func okHook() error { return nil }

func panicHook() error { panic("for test") }

func TestFuncFullName(t *testing.T) {
	PatchConvey("TestFuncFullName", t, func() {
		name := funcFullName(okHook)
		So(strings.Contains(name, "xhook_test.go"), ShouldBeTrue)
		So(strings.Contains(name, "okHook"), ShouldBeTrue)
	})
}

func TestSafeInvoke(t *testing.T) {
	PatchConvey("TestSafeInvoke", t, func() {
		So(safeInvoke(okHook), ShouldBeNil)
		err := safeInvoke(panicHook)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldEqual, "panic occurred, for test")
	})
}

func TestInvokeWithTimeout(t *testing.T) {
	PatchConvey("TestInvokeWithTimeout", t, func() {
		slow := func() error { time.Sleep(200 * time.Millisecond); return nil }
		err := invokeWithTimeout(slow, 10*time.Millisecond)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "timeout")
		So(invokeWithTimeout(okHook, 0), ShouldBeNil)
	})
}

func TestRegister(t *testing.T) {
	PatchConvey("TestRegister", t, func() {
		r := newRegistry("BeforeStart")

		PatchConvey("NilPanics", func() {
			So(func() { r.register(nil, nil) }, ShouldPanicWith, "XInfer BeforeStart hook can not be nil")
		})

		PatchConvey("Dedup", func() {
			r.register(okHook, nil)
			r.register(okHook, nil)
			So(len(r.snapshot()), ShouldEqual, 1)
		})

		PatchConvey("SortByOrderStable", func() {
			calls := make([]string, 0)
			a := func() error { calls = append(calls, "a"); return nil }
			b := func() error { calls = append(calls, "b"); return nil }
			c := func() error { calls = append(calls, "c"); return nil }
			r.register(a, []Option{Order(5)})
			r.register(b, []Option{Order(1)})
			r.register(c, []Option{Order(5)})
			for _, h := range r.snapshot() {
				_ = h.fn()
			}
			So(calls, ShouldResemble, []string{"b", "a", "c"})
		})
	})
}

func TestInvokeBeforeStartHook(t *testing.T) {
	PatchConvey("TestInvokeBeforeStartHook", t, func() {
		startHooks.reset()
		defer startHooks.reset()

		PatchConvey("MustSuccessFailed", func() {
			BeforeStart(func() error { return errors.New("boom") }, Order(1))
			err := InvokeBeforeStartHook()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})

		PatchConvey("OptionalFailedIgnored", func() {
			called := false
			BeforeStart(func() error { return errors.New("boom") }, MustInvokeSuccess(false), Order(1))
			BeforeStart(func() error { called = true; return nil }, Order(2))
			So(InvokeBeforeStartHook(), ShouldBeNil)
			So(called, ShouldBeTrue)
		})
	})
}

func TestInvokeBeforeStopHook(t *testing.T) {
	PatchConvey("TestInvokeBeforeStopHook", t, func() {
		stopHooks.reset()
		defer stopHooks.reset()

		PatchConvey("Empty", func() {
			So(InvokeBeforeStopHook(), ShouldBeNil)
		})

		PatchConvey("ContinueOnError", func() {
			called := false
			BeforeStop(func() error { return errors.New("close failed") }, Order(1))
			BeforeStop(func() error { called = true; return nil }, Order(2))
			err := InvokeBeforeStopHook()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "close failed")
			So(called, ShouldBeTrue)
		})

		PatchConvey("GlobalTimeout", func() {
			SetStopTimeout(20 * time.Millisecond)
			defer SetStopTimeout(60 * time.Second)
			BeforeStop(func() error { time.Sleep(time.Second); return nil }, Timeout(0))
			err := InvokeBeforeStopHook()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "timeout")
		})
	})
}
