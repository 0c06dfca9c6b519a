package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xgin/middleware"
	"github.com/xiaoshicae/xinfer/xgin/options"
	"github.com/xiaoshicae/xinfer/xmedia"
	"github.com/xiaoshicae/xinfer/xpipeline"
	"github.com/xiaoshicae/xinfer/xrecipe"
	"github.com/xiaoshicae/xinfer/xsink"
	"github.com/xiaoshicae/xinfer/xstage"

	"github.com/gin-gonic/gin"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func textEntry(name string, fn func(ctx context.Context, in xmedia.Value) (xmedia.Value, error)) *xrecipe.Entry {
	p := xpipeline.New(name)
	p.AddStep(xpipeline.Step{Adapter: xadapter.Identity(), Stage: xstage.Func{
		N:  "echo",
		C:  xstage.Contract{Accepts: []xmedia.Kind{xmedia.KindPrompt}, Produces: xmedia.KindText},
		Fn: fn,
	}})
	return &xrecipe.Entry{Recipe: xrecipe.Recipe{Name: name, Description: "echo text", Input: xrecipe.InputText}, Pipeline: p}
}

func tagEntry(name string) *xrecipe.Entry {
	p := xpipeline.New(name)
	p.AddStep(xpipeline.Step{Stage: xstage.Func{
		N: "tagger",
		C: xstage.Contract{Accepts: []xmedia.Kind{xmedia.KindTensor}, Modality: xmedia.ModalityAudio},
		Fn: func(_ context.Context, in xmedia.Value) (xmedia.Value, error) {
			return xmedia.NewLabelSet(xmedia.Label{Name: "dog barking", Confidence: 0.9}), nil
		},
	}})
	return &xrecipe.Entry{Recipe: xrecipe.Recipe{Name: name, Input: xrecipe.InputAudio}, Pipeline: p}
}

func upper(_ context.Context, in xmedia.Value) (xmedia.Value, error) {
	return xmedia.GeneratedText{Text: strings.ToUpper(in.(xmedia.Prompt).Text)}, nil
}

func engine() *gin.Engine {
	e := gin.New()
	Register(e)
	return e
}

func do(e *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	body := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthAndList(t *testing.T) {
	PatchConvey("TestHealthAndList", t, func() {
		xrecipe.Register(textEntry("api-list", upper))
		e := engine()

		w, body := do(e, httptest.NewRequest(http.MethodGet, "/health", nil))
		So(w.Code, ShouldEqual, http.StatusOK)
		So(body["status"], ShouldEqual, "ok")

		w = httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pipelines", nil))
		So(w.Code, ShouldEqual, http.StatusOK)
		var infos []PipelineInfo
		So(json.Unmarshal(w.Body.Bytes(), &infos), ShouldBeNil)
		var found *PipelineInfo
		for i := range infos {
			if infos[i].Name == "api-list" {
				found = &infos[i]
			}
		}
		So(found, ShouldNotBeNil)
		So(found.Input, ShouldEqual, "text")
		So(found.Stages, ShouldResemble, []string{"echo"})
	})
}

func TestRunPipeline(t *testing.T) {
	PatchConvey("TestRunPipeline", t, func() {
		Mock(GetConfig).Return(configMergeDefault(&Config{RunTimeout: "5s", Sinks: []string{}, MaxUploadSize: "1KB"})).Build()
		var emitted []*xpipeline.RunResult
		Mock(resultSink).Return(xsink.SinkFunc(func(_ context.Context, r *xpipeline.RunResult) error {
			emitted = append(emitted, r)
			return nil
		})).Build()

		xrecipe.Register(textEntry("api-echo", upper))
		xrecipe.Register(textEntry("api-broken", func(context.Context, xmedia.Value) (xmedia.Value, error) {
			return nil, xerror.InferenceFailure("upstream 500")
		}))
		xrecipe.Register(tagEntry("api-tag"))
		e := engine()

		PatchConvey("NotFound", func() {
			w, _ := do(e, httptest.NewRequest(http.MethodPost, "/v1/pipelines/nope/run", strings.NewReader("x")))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		PatchConvey("JSONText", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-echo/run", strings.NewReader(`{"text":"hello"}`))
			req.Header.Set("Content-Type", "application/json")
			w, body := do(e, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["state"], ShouldEqual, "completed")
			So(body["text"], ShouldEqual, "HELLO")
			So(body["output_kind"], ShouldEqual, "text")
			So(len(emitted), ShouldEqual, 1)
			So(w.Header().Get(middleware.RunIdHeader), ShouldEqual, body["run_id"])
			So(w.Header().Get(middleware.RunIdHeader), ShouldEqual, emitted[0].RunID)
		})

		PatchConvey("JSONMissingText", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-echo/run", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w, body := do(e, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(body["kind"], ShouldEqual, "ContractMismatch")
			So(len(emitted), ShouldEqual, 0)
		})

		PatchConvey("RawBody", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-echo/run", strings.NewReader("plain words"))
			req.Header.Set("Content-Type", "text/plain")
			w, body := do(e, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(body["text"], ShouldEqual, "PLAIN WORDS")
		})

		PatchConvey("RawBodyOverUploadLimit", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-echo/run", strings.NewReader(strings.Repeat("a", 2000)))
			req.Header.Set("Content-Type", "text/plain")
			w, _ := do(e, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(len(emitted), ShouldEqual, 0)
		})

		PatchConvey("InferenceFailure", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-broken/run", strings.NewReader(`{"text":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			w, body := do(e, req)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(body["state"], ShouldEqual, "failed")
			errBody := body["error"].(map[string]any)
			So(errBody["index"], ShouldEqual, 1)
			So(errBody["kind"], ShouldEqual, "InferenceFailure")
			So(len(emitted), ShouldEqual, 1)
			So(w.Header().Get(middleware.RunIdHeader), ShouldNotBeEmpty)
		})

		PatchConvey("MultipartWAV", func() {
			audio, err := xmedia.NewAudio(16000, make([]float32, 1600))
			So(err, ShouldBeNil)
			wav, err := xmedia.EncodeWAV16(audio)
			So(err, ShouldBeNil)

			buf := &bytes.Buffer{}
			mw := multipart.NewWriter(buf)
			fw, _ := mw.CreateFormFile("file", "a.wav")
			_, _ = fw.Write(wav)
			_ = mw.Close()

			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-tag/run", buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			w, body := do(e, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			labels := body["labels"].([]any)
			So(len(labels), ShouldEqual, 1)
			So(labels[0].(map[string]any)["name"], ShouldEqual, "dog barking")
		})

		PatchConvey("MultipartMissingFile", func() {
			buf := &bytes.Buffer{}
			mw := multipart.NewWriter(buf)
			_ = mw.WriteField("other", "x")
			_ = mw.Close()
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-tag/run", buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			w, _ := do(e, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		PatchConvey("JSONForAudioPipeline", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/api-tag/run", strings.NewReader(`{"text":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			w, _ := do(e, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatusOf(t *testing.T) {
	Convey("status mapping", t, func() {
		failed := func(k xerror.Kind, err error) *xpipeline.RunResult {
			return &xpipeline.RunResult{State: xpipeline.Failed, Err: &xpipeline.StepError{Index: 1, Kind: k, Err: err}}
		}
		So(statusOf(&xpipeline.RunResult{State: xpipeline.Completed}), ShouldEqual, http.StatusOK)
		So(statusOf(failed(xerror.KindContractMismatch, xerror.ContractMismatch("x"))), ShouldEqual, http.StatusUnprocessableEntity)
		So(statusOf(failed(xerror.KindModelUnavailable, xerror.ModelUnavailable("x"))), ShouldEqual, http.StatusServiceUnavailable)
		So(statusOf(failed(xerror.KindInferenceFailure, xerror.InferenceFailure("x"))), ShouldEqual, http.StatusBadGateway)
		So(statusOf(failed(xerror.KindAdaptation, xerror.Adaptation("x"))), ShouldEqual, http.StatusInternalServerError)
		So(statusOf(failed(xerror.KindInferenceFailure, xerror.Wrap(xerror.KindInferenceFailure, context.DeadlineExceeded, "run"))), ShouldEqual, http.StatusGatewayTimeout)
	})

	Convey("config", t, func() {
		c := configMergeDefault(nil)
		So(c.Timeout().Seconds(), ShouldEqual, 60)
		So(c.Sinks, ShouldResemble, []string{"log"})
		So(c.MaxUploadSize, ShouldEqual, "32MB")
		So(c.UploadLimit(), ShouldEqual, int64(32000000))
		So((&Config{MaxUploadSize: "8MiB"}).UploadLimit(), ShouldEqual, int64(8<<20))
		So((&Config{MaxUploadSize: "bogus"}).UploadLimit(), ShouldEqual, options.DefaultMaxUploadBytes)
		So(configMergeDefault(&Config{MaxInflight: -3}).MaxInflight, ShouldEqual, 0)
	})
}

func TestNewServer(t *testing.T) {
	PatchConvey("TestNewServer", t, func() {
		Mock(GetConfig).Return(configMergeDefault(&Config{RunTimeout: "20s", MaxUploadSize: "2MB", MaxInflight: 3})).Build()

		o := NewServer(options.EnableLogMiddleware(false)).Options()
		So(o.MaxUploadBytes, ShouldEqual, int64(2000000))
		So(o.WriteTimeout, ShouldEqual, 20*time.Second+writeGrace)
		So(o.MaxInflight, ShouldEqual, 3)
		So(o.InflightPaths, ShouldResemble, []string{runPathPrefix})
		So(o.EnableZHTranslations, ShouldBeTrue)
		So(o.EnableLogMiddleware, ShouldBeFalse)

		o = NewServer(options.MaxInflight(0)).Options()
		So(o.MaxInflight, ShouldEqual, 0)
	})
}
