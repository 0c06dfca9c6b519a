package xmodel

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xutil"

	ort "github.com/yalue/onnxruntime_go"
)

// Metadata 与 onnx 文件同名的 .json 元数据
type Metadata struct {
	InputName   string    `json:"input_name"`
	OutputName  string    `json:"output_name"`
	InputShape  []int64   `json:"input_shape"`
	OutputShape []int64   `json:"output_shape"`
	Classes     []string  `json:"classes"`
	SampleRate  int       `json:"sample_rate,omitempty"`
	ImageSize   int       `json:"image_size,omitempty"`
	Mean        []float32 `json:"mean,omitempty"`
	Std         []float32 `json:"std,omitempty"`
	// Activation 输出 logits 的激活方式: sigmoid | softmax | none
	Activation string `json:"activation,omitempty"`
}

// InputSize 输入元素个数
func (m *Metadata) InputSize() int {
	return shapeSize(m.InputShape)
}

func (m *Metadata) OutputSize() int {
	return shapeSize(m.OutputShape)
}

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return int(n)
}

func (m *Metadata) validate() error {
	if m.InputSize() <= 0 {
		return xerror.ModelUnavailable("invalid input_shape %v", m.InputShape)
	}
	if m.OutputSize() <= 0 {
		return xerror.ModelUnavailable("invalid output_shape %v", m.OutputShape)
	}
	if len(m.Classes) > 0 && len(m.Classes) != int(m.OutputShape[len(m.OutputShape)-1]) {
		return xerror.ModelUnavailable("classes size %d mismatch output_shape %v", len(m.Classes), m.OutputShape)
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	return nil
}

// SidecarPath 模型文件对应的元数据路径
func SidecarPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
}

// LoadMetadata 读取并校验元数据
func LoadMetadata(path string) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "read metadata")
	}
	m := &Metadata{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "parse metadata "+path)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// OnnxModel 单输入单输出的 float32 onnx 模型，Run 串行执行
type OnnxModel struct {
	id   string
	path string
	meta *Metadata

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

func (m *OnnxModel) ID() string { return m.id }

func (m *OnnxModel) Path() string { return m.path }

func (m *OnnxModel) Metadata() *Metadata { return m.meta }

// Infer 输入长度必须等于 input_shape 的元素个数，返回 output 的拷贝
func (m *OnnxModel) Infer(ctx context.Context, in []float32) ([]float32, error) {
	if len(in) != m.meta.InputSize() {
		return nil, xerror.ContractMismatch("model %s: input size %d, want %d (shape %v)",
			m.id, len(in), m.meta.InputSize(), m.meta.InputShape)
	}
	if err := ctx.Err(); err != nil {
		return nil, xerror.Wrap(xerror.KindInferenceFailure, err, "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, xerror.ModelUnavailable("model %s is closed", m.id)
	}
	copy(m.input.GetData(), in)
	if err := m.session.Run(); err != nil {
		return nil, xerror.Wrap(xerror.KindInferenceFailure, err, "onnx run "+m.id)
	}
	out := make([]float32, m.meta.OutputSize())
	copy(out, m.output.GetData())
	return out, nil
}

func (m *OnnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var ortMu sync.Mutex

func ensureOrt(lib string) error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return xerror.Wrap(xerror.KindModelUnavailable, err, "initialize onnxruntime")
	}
	xutil.InfoIfEnableDebug("XInfer onnxruntime initialized, version=%s", ort.GetVersion())
	return nil
}

func destroyOrt() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// OpenOnnx 打开本地 onnx 模型，元数据从同名 .json 读取
func OpenOnnx(id, path string) (*OnnxModel, error) {
	if !xutil.FileExist(path) {
		return nil, xerror.ModelUnavailable("model %s: file %s not found", id, path)
	}
	meta, err := LoadMetadata(SidecarPath(path))
	if err != nil {
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "model "+id)
	}
	if err := ensureOrt(getConfig().OnnxRuntimeLib); err != nil {
		return nil, err
	}

	m := &OnnxModel{id: id, path: path, meta: meta}
	m.input, err = ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "create input tensor")
	}
	m.output, err = ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		_ = m.input.Destroy()
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "create output tensor")
	}
	m.session, err = ort.NewAdvancedSession(path,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.Value{m.input}, []ort.Value{m.output}, nil)
	if err != nil {
		_ = m.input.Destroy()
		_ = m.output.Destroy()
		return nil, xerror.Wrap(xerror.KindModelUnavailable, err, "create session "+id)
	}
	xutil.InfoIfEnableDebug("XInfer onnx model loaded, id=%s, input=%v, output=%v, classes=%d",
		id, meta.InputShape, meta.OutputShape, len(meta.Classes))
	return m, nil
}

func loadLocalOnnx(_ context.Context, ref Ref) (Handle, error) {
	return OpenOnnx(ref.ID, ref.Location)
}

func loadRemoteOnnx(ctx context.Context, ref Ref) (Handle, error) {
	path, err := fetchOnnx(ctx, ref.Location)
	if err != nil {
		return nil, err
	}
	return OpenOnnx(ref.ID, path)
}

// fetchOnnx 下载模型及其 sidecar 元数据，返回本地模型路径
func fetchOnnx(ctx context.Context, rawURL string) (string, error) {
	f := NewFetcher(getConfig())
	path, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if _, err := f.FetchTo(ctx, SidecarPath(rawURL), SidecarPath(path)); err != nil {
		return "", err
	}
	return path, nil
}

// Prefetch 将远程 onnx 模型预先下载到缓存目录，返回本地路径
// 本地 onnx 模型返回其路径，远程推理服务(openai/hf)无需下载，返回空串
func Prefetch(ctx context.Context, id string) (string, error) {
	ref, err := ParseID(id)
	if err != nil {
		return "", err
	}
	switch ref.Scheme {
	case "onnx":
		if !xutil.FileExist(ref.Location) {
			return "", xerror.ModelUnavailable("model file %s not found", ref.Location)
		}
		return ref.Location, nil
	case "onnx+http", "onnx+https":
		return fetchOnnx(ctx, ref.Location)
	}
	return "", nil
}
