package xinfer

import (
	"context"
	"testing"

	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xserver"
	"github.com/xiaoshicae/xinfer/xstage"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	PatchConvey("TestRun", t, func() {
		Mock(xpipeline.GetConfig).Return(&xpipeline.Config{DisableMonitor: true}).Build()
		p := xpipeline.New("root-echo", xpipeline.Step{Stage: xstage.Func{
			N: "echo",
			Fn: func(_ context.Context, in xmedia.Value) (xmedia.Value, error) {
				return xmedia.GeneratedText{Text: in.(xmedia.Prompt).Text}, nil
			},
		}})
		xrecipe.Register(&xrecipe.Entry{Recipe: xrecipe.Recipe{Name: "root-echo", Input: xrecipe.InputText}, Pipeline: p})

		r, err := Run(context.Background(), "root-echo", xmedia.Prompt{Text: "hi"})
		So(err, ShouldBeNil)
		So(r.Success(), ShouldBeTrue)
		So(r.Output.(xmedia.GeneratedText).Text, ShouldEqual, "hi")

		_, err = Run(context.Background(), "missing", xmedia.Prompt{Text: "hi"})
		So(err, ShouldNotBeNil)
	})

	PatchConvey("TestExec", t, func() {
		called := false
		Mock(xserver.Exec).To(func(ctx context.Context, task xserver.TaskFunc) error { return task(ctx) }).Build()
		So(Exec(context.Background(), func(context.Context) error { called = true; return nil }), ShouldBeNil)
		So(called, ShouldBeTrue)
		So(VERSION, ShouldNotBeEmpty)
	})
}
