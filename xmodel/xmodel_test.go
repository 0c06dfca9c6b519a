package xmodel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xutil"

	. "github.com/bytedance/mockey"
	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseID(t *testing.T) {
	PatchConvey("TestParseID", t, func() {
		ref, err := ParseID("onnx:///models/panns.onnx")
		So(err, ShouldBeNil)
		So(ref.Scheme, ShouldEqual, "onnx")
		So(ref.Location, ShouldEqual, "/models/panns.onnx")

		ref, err = ParseID("onnx:models/panns.onnx")
		So(err, ShouldBeNil)
		So(ref.Location, ShouldEqual, "models/panns.onnx")

		ref, err = ParseID("onnx+https://example.com/m/panns.onnx")
		So(err, ShouldBeNil)
		So(ref.Scheme, ShouldEqual, "onnx+https")
		So(ref.Location, ShouldEqual, "https://example.com/m/panns.onnx")

		ref, err = ParseID("openai:gpt-4o-mini")
		So(err, ShouldBeNil)
		So(ref.Location, ShouldEqual, "gpt-4o-mini")

		ref, err = ParseID("hf:https://api-inference.example.com/models/flan")
		So(err, ShouldBeNil)
		So(ref.Scheme, ShouldEqual, "hf")
		So(ref.Location, ShouldEqual, "https://api-inference.example.com/models/flan")

		for _, bad := range []string{"", "panns.onnx", "onnx:", ":x", "onnx://"} {
			_, err = ParseID(bad)
			So(errorsIsModelUnavailable(err), ShouldBeTrue)
		}
	})
}

func errorsIsModelUnavailable(err error) bool {
	return xerror.KindOf(err) == xerror.KindModelUnavailable
}

type fakeHandle struct{ id string }

func (h *fakeHandle) ID() string   { return h.id }
func (h *fakeHandle) Close() error { return nil }

func TestRegistry(t *testing.T) {
	PatchConvey("TestRegistry", t, func() {
		r := NewRegistry()
		r.Register("FAKE", func(_ context.Context, ref Ref) (Handle, error) {
			if ref.Location == "broken" {
				return nil, os.ErrNotExist
			}
			return &fakeHandle{id: ref.ID}, nil
		})
		So(r.Schemes(), ShouldResemble, []string{"fake"})

		h, err := r.Load(context.Background(), "fake:ok")
		So(err, ShouldBeNil)
		So(h.ID(), ShouldEqual, "fake:ok")

		_, err = r.Load(context.Background(), "fake:broken")
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
		So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)

		_, err = r.Load(context.Background(), "other:x")
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "unsupported scheme")
	})

	PatchConvey("TestDefaultProvider", t, func() {
		So(DefaultProvider().Schemes(), ShouldResemble,
			[]string{"hf", "onnx", "onnx+http", "onnx+https", "openai", "openai-whisper"})
	})
}

func writeMetadata(t *testing.T, dir string, m Metadata) string {
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "model.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMetadata(t *testing.T) {
	PatchConvey("TestLoadMetadata", t, func() {
		dir := t.TempDir()
		p := writeMetadata(t, dir, Metadata{
			InputShape:  []int64{1, 32000},
			OutputShape: []int64{1, 3},
			Classes:     []string{"Speech", "Dog", "Car horn"},
			SampleRate:  32000,
		})
		m, err := LoadMetadata(p)
		So(err, ShouldBeNil)
		So(m.InputName, ShouldEqual, "input")
		So(m.OutputName, ShouldEqual, "output")
		So(m.InputSize(), ShouldEqual, 32000)
		So(m.OutputSize(), ShouldEqual, 3)
	})

	PatchConvey("TestLoadMetadataClassesMismatch", t, func() {
		p := writeMetadata(t, t.TempDir(), Metadata{
			InputShape:  []int64{1, 10},
			OutputShape: []int64{1, 3},
			Classes:     []string{"a"},
		})
		_, err := LoadMetadata(p)
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
	})

	PatchConvey("TestLoadMetadataMissing", t, func() {
		_, err := LoadMetadata(filepath.Join(t.TempDir(), "none.json"))
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
	})

	PatchConvey("TestSidecarPath", t, func() {
		So(SidecarPath("/m/panns.onnx"), ShouldEqual, "/m/panns.json")
		So(SidecarPath("https://h/m/panns.onnx"), ShouldEqual, "https://h/m/panns.json")
	})
}

func TestOpenOnnxMissingFile(t *testing.T) {
	PatchConvey("TestOpenOnnxMissingFile", t, func() {
		_, err := Load(context.Background(), "onnx:///not/exist/model.onnx")
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "not found")
	})

	PatchConvey("TestOpenOnnxMissingMetadata", t, func() {
		p := filepath.Join(t.TempDir(), "model.onnx")
		So(os.WriteFile(p, []byte("onnx"), 0o644), ShouldBeNil)
		_, err := OpenOnnx("onnx:"+p, p)
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
	})
}

func TestOnnxInferContract(t *testing.T) {
	PatchConvey("TestOnnxInferContract", t, func() {
		m := &OnnxModel{id: "onnx:x", meta: &Metadata{InputShape: []int64{1, 4}, OutputShape: []int64{1, 2}}}
		_, err := m.Infer(context.Background(), []float32{1, 2, 3})
		So(xerror.KindOf(err), ShouldEqual, xerror.KindContractMismatch)

		So(m.Close(), ShouldBeNil)
		_, err = m.Infer(context.Background(), []float32{1, 2, 3, 4})
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
	})
}

func TestFetcher(t *testing.T) {
	PatchConvey("TestFetcher", t, func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			if strings.HasSuffix(r.URL.Path, "missing.onnx") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte("weights:" + r.URL.Path))
		}))
		defer srv.Close()

		dir := t.TempDir()
		f := &Fetcher{Dir: dir, Client: resty.New()}

		Convey("download once and reuse", func() {
			var wg sync.WaitGroup
			paths := make([]string, 4)
			errs := make([]error, 4)
			for i := range paths {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					paths[i], errs[i] = f.Fetch(context.Background(), srv.URL+"/m/panns.onnx")
				}(i)
			}
			wg.Wait()
			for i := range paths {
				So(errs[i], ShouldBeNil)
				So(paths[i], ShouldEqual, paths[0])
			}
			So(filepath.Dir(paths[0]), ShouldEqual, dir)
			So(strings.HasSuffix(paths[0], "-panns.onnx"), ShouldBeTrue)
			b, err := os.ReadFile(paths[0])
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "weights:/m/panns.onnx")
			So(atomic.LoadInt32(&calls), ShouldEqual, 1)
		})

		Convey("http error is model unavailable", func() {
			p, err := f.Fetch(context.Background(), srv.URL+"/m/missing.onnx")
			So(errorsIsModelUnavailable(err), ShouldBeTrue)
			So(p, ShouldEqual, "")
			entries, _ := filepath.Glob(filepath.Join(dir, "*.part"))
			So(entries, ShouldBeEmpty)
		})

		Convey("invalid url", func() {
			_, err := f.Fetch(context.Background(), "not a url")
			So(errorsIsModelUnavailable(err), ShouldBeTrue)
		})
	})
}

func TestOpenAIModel(t *testing.T) {
	PatchConvey("TestOpenAIModel", t, func() {
		var got openai.ChatCompletionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/v1/chat/completions":
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"index":0,"finish_reason":"stop",` +
					`"message":{"role":"assistant","content":"A dog barks near a busy road."}}],` +
					`"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`))
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
			}
		}))
		defer srv.Close()

		cfg := openai.DefaultConfig("test-key")
		cfg.BaseURL = srv.URL + "/v1"
		m, err := NewOpenAIModel("openai:gpt-test", "gpt-test", openai.NewClientWithConfig(cfg))
		So(err, ShouldBeNil)

		seed := 7
		resp, err := m.Chat(context.Background(), ChatRequest{
			System: "be brief", User: "Describe a scene where you hear: dog barking, car horn.",
			MaxTokens: 64, Temperature: 0.2, Seed: &seed,
		})
		So(err, ShouldBeNil)
		So(resp.Text, ShouldEqual, "A dog barks near a busy road.")
		So(resp.FinishReason, ShouldEqual, "stop")
		So(resp.CompletionTokens, ShouldEqual, 8)
		So(got.Model, ShouldEqual, "gpt-test")
		So(len(got.Messages), ShouldEqual, 2)
		So(got.Messages[1].Content, ShouldEqual, "Describe a scene where you hear: dog barking, car horn.")
		So(*got.Seed, ShouldEqual, 7)

		_, err = m.Transcribe(context.Background(), strings.NewReader("RIFF"), "audio.wav", "")
		So(errorsIsModelUnavailable(err), ShouldBeTrue)
	})

	PatchConvey("TestOpenAIModelNoKey", t, func() {
		setConfig(&Config{OpenAI: &OpenAIConfig{}})
		defer setConfig(nil)
		t.Setenv("OPENAI_API_KEY", "")
		_, err := Load(context.Background(), "openai:gpt-4o-mini")
		So(errorsIsModelUnavailable(err), ShouldBeTrue)

		t.Setenv("OPENAI_API_KEY", "k")
		h, err := Load(context.Background(), "openai-whisper:whisper-1")
		So(err, ShouldBeNil)
		So(h.(*OpenAIModel).Model(), ShouldEqual, "whisper-1")
	})
}

func TestHFModel(t *testing.T) {
	PatchConvey("TestHFModel", t, func() {
		var auth string
		var body hfRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/models/loading":
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
			case "/models/bad":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"bad input"}`))
			default:
				_, _ = w.Write([]byte(`[{"generated_text":"a quiet street"}]`))
			}
		}))
		defer srv.Close()

		m := NewHFModel("hf:x", srv.URL+"/models/flan", "tok", resty.New())
		out, err := m.Generate(context.Background(), "hello", GenerateParams{MaxNewTokens: 16})
		So(err, ShouldBeNil)
		So(out, ShouldEqual, "a quiet street")
		So(auth, ShouldEqual, "Bearer tok")
		So(body.Inputs, ShouldEqual, "hello")
		So(body.Parameters.MaxNewTokens, ShouldEqual, 16)

		_, err = NewHFModel("hf:y", srv.URL+"/models/loading", "", resty.New()).Generate(context.Background(), "x", GenerateParams{})
		So(errorsIsModelUnavailable(err), ShouldBeTrue)

		_, err = NewHFModel("hf:z", srv.URL+"/models/bad", "", resty.New()).Generate(context.Background(), "x", GenerateParams{})
		So(xerror.KindOf(err), ShouldEqual, xerror.KindInferenceFailure)
		So(err.Error(), ShouldContainSubstring, "bad input")
	})
}

func TestPrefetch(t *testing.T) {
	PatchConvey("TestPrefetch", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("blob:" + r.URL.Path))
		}))
		defer srv.Close()

		dir := t.TempDir()
		Mock(getConfig).Return(configMergeDefault(&Config{CacheDir: dir})).Build()

		Convey("remote onnx with sidecar", func() {
			path, err := Prefetch(context.Background(), "onnx+"+srv.URL+"/tagger.onnx")
			So(err, ShouldBeNil)
			So(filepath.Dir(path), ShouldEqual, dir)
			So(xutil.FileExist(SidecarPath(path)), ShouldBeTrue)
		})

		Convey("local onnx", func() {
			_, err := Prefetch(context.Background(), "onnx://"+filepath.Join(dir, "none.onnx"))
			So(errors.Is(err, xerror.ErrModelUnavailable), ShouldBeTrue)
		})

		Convey("remote service", func() {
			path, err := Prefetch(context.Background(), "openai:gpt-4o-mini")
			So(err, ShouldBeNil)
			So(path, ShouldEqual, "")
		})
	})
}
