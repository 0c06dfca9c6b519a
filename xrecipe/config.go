package xrecipe

import (
	"github.com/xiaoshicae/xinfer/xstage"
)

const XInferPipelinesConfigKey = "XInfer.Pipelines"

// 输入类型
const (
	InputAudio = "audio"
	InputImage = "image"
	InputText  = "text"
)

// Recipe 一条流水线的声明
type Recipe struct {
	// Name 为空时使用配置中的 key
	Name string `mapstructure:"Name"`

	// Description
	// optional default ""
	Description string `mapstructure:"Description"`

	// Preset narrator | caption | summarize，设置后 Steps 由预设生成，Models 覆盖其中的模型
	// optional default ""
	Preset string `mapstructure:"Preset"`

	// Models 预设中各 stage 的模型标识，key 为 stage 名
	// optional default nil
	Models map[string]string `mapstructure:"Models"`

	// Input audio | image | text，使用 Preset 时可省略
	Input string `mapstructure:"Input"`

	// Steps 未使用 Preset 时必填
	Steps []StepSpec `mapstructure:"Steps"`
}

// StepSpec 一个 step 的声明
type StepSpec struct {
	// Name stage 名，为空时使用 Stage
	Name string `mapstructure:"Name"`

	// Adapter identity | labels_to_prompt | transcript_to_prompt | audio_conform | upmix | image_conform
	// optional default "identity"
	Adapter string `mapstructure:"Adapter"`

	// Template prompt 模板，仅 labels_to_prompt / transcript_to_prompt 使用
	// optional default ""
	Template string `mapstructure:"Template"`

	// SampleRate / Window / Channels 仅 audio_conform / upmix 使用
	SampleRate int `mapstructure:"SampleRate"`
	Window     int `mapstructure:"Window"`
	Channels   int `mapstructure:"Channels"`

	// Stage audio_tagger | image_classifier | text_generator | remote_generator | transcriber
	Stage string `mapstructure:"Stage"`

	// Model 模型标识
	Model string `mapstructure:"Model"`

	// TopK 分类 stage 使用
	// optional default 5
	TopK int `mapstructure:"TopK"`

	// Size image_classifier 输入边长
	// optional default 224
	Size int `mapstructure:"Size"`

	// Language transcriber 指定语言
	// optional default ""
	Language string `mapstructure:"Language"`

	// Generation 文本生成参数
	Generation xstage.GenerationParams `mapstructure:"Generation"`

	// Cache 是否按输入缓存 stage 输出，只应对确定性 stage 开启
	// optional default false
	Cache bool `mapstructure:"Cache"`

	// Serialize 是否串行化该 stage 的调用
	// optional default false
	Serialize bool `mapstructure:"Serialize"`
}
