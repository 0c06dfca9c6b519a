package xtrace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"

	"go.opentelemetry.io/otel/propagation"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConfigMergeDefault(t *testing.T) {
	PatchConvey("TestConfigMergeDefault", t, func() {
		c := configMergeDefault(nil)
		So(*c.Enable, ShouldBeTrue)
		So(c.SampleRatio, ShouldEqual, 1)
		So(c.Propagators, ShouldResemble, []string{"tracecontext", "baggage"})

		off := false
		c = configMergeDefault(&Config{Enable: &off, SampleRatio: 0.5, Propagators: []string{"b3"}})
		So(*c.Enable, ShouldBeFalse)
		So(c.SampleRatio, ShouldEqual, 0.5)
		So(c.Propagators, ShouldResemble, []string{"b3"})
	})
}

func TestEnableTrace(t *testing.T) {
	PatchConvey("TestEnableTrace-NotSet", t, func() {
		Mock(xconfig.ContainKey).Return(false).Build()
		So(EnableTrace(), ShouldBeTrue)
	})

	PatchConvey("TestEnableTrace-False", t, func() {
		Mock(xconfig.ContainKey).Return(true).Build()
		Mock(xconfig.GetBool).Return(false).Build()
		So(EnableTrace(), ShouldBeFalse)
	})
}

func TestHeaderPropagator(t *testing.T) {
	PatchConvey("TestHeaderPropagator", t, func() {
		p := NewHeaderPropagator([]string{"x-request-id", " ", "X-Tenant-ID"})
		So(p.Fields(), ShouldResemble, []string{"X-Request-Id", "X-Tenant-Id"})

		in := propagation.MapCarrier{"X-Request-Id": "req-1"}
		ctx := p.Extract(context.Background(), in)
		So(ForwardHeaderFromContext(ctx, "x-request-id"), ShouldEqual, "req-1")
		So(ForwardHeaderFromContext(ctx, "X-Tenant-ID"), ShouldEqual, "")

		out := propagation.MapCarrier{}
		p.Inject(ctx, out)
		So(out.Get("X-Request-Id"), ShouldEqual, "req-1")
		So(out.Keys(), ShouldHaveLength, 1)

		same := p.Extract(context.Background(), propagation.MapCarrier{})
		So(ForwardHeaderFromContext(same, "X-Request-Id"), ShouldEqual, "")
	})
}

func TestBuildPropagator(t *testing.T) {
	PatchConvey("TestBuildPropagator", t, func() {
		p := buildPropagator([]string{"tracecontext", "b3", "unknown"}, []string{"X-Request-Id"})
		fields := p.Fields()
		So(fields, ShouldContain, "traceparent")
		So(fields, ShouldContain, "b3")
		So(fields, ShouldContain, "X-Request-Id")
	})
}

func TestInitXTrace(t *testing.T) {
	PatchConvey("TestInitXTrace-GetConfigFail", t, func() {
		Mock(getConfig).Return(nil, errors.New("config failed")).Build()
		err := initXTrace()
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "config failed")
	})

	PatchConvey("TestInitXTrace-Disabled", t, func() {
		off := false
		Mock(getConfig).Return(&Config{Enable: &off}, nil).Build()
		So(initXTrace(), ShouldBeNil)
	})

	PatchConvey("TestInitXTraceByConfig", t, func() {
		So(initXTraceByConfig(configMergeDefault(nil), "xinfer-test", "v1"), ShouldBeNil)

		ctx, span := StartSpan(context.Background(), "unit")
		So(span.SpanContext().IsValid(), ShouldBeTrue)
		span.End()
		_ = ctx

		So(shutdownXTrace(), ShouldBeNil)
		So(shutdownXTrace(), ShouldBeNil)
	})
}

func TestSetShutdownTimeout(t *testing.T) {
	PatchConvey("TestSetShutdownTimeout", t, func() {
		old := shutdownTimeout
		defer func() { shutdownTimeout = old }()

		SetShutdownTimeout(0)
		So(shutdownTimeout, ShouldEqual, old)
		SetShutdownTimeout(time.Second)
		So(shutdownTimeout, ShouldEqual, time.Second)
	})
}
