package xrecipe

import (
	"github.com/xiaoshicae/xinfer/xadapter"
	"github.com/xiaoshicae/xinfer/xerror"
)

// 预设名
const (
	PresetNarrator  = "narrator"
	PresetCaption   = "caption"
	PresetSummarize = "summarize"
)

// 预设中的 stage 名，Recipe.Models 以此为 key
const (
	RoleTagger      = "tagger"
	RoleClassifier  = "classifier"
	RoleTranscriber = "transcriber"
	RoleGenerator   = "generator"
)

// DefaultCaptionTemplate 图像描述模板
const DefaultCaptionTemplate = "Write one sentence describing a picture that shows: {labels}."

// 预设默认模型
var defaultModels = map[string]map[string]string{
	PresetNarrator: {
		RoleTagger:    "onnx:///models/panns_cnn14.onnx",
		RoleGenerator: "openai:gpt-4o-mini",
	},
	PresetCaption: {
		RoleClassifier: "onnx:///models/resnet50.onnx",
		RoleGenerator:  "openai:gpt-4o-mini",
	},
	PresetSummarize: {
		RoleTranscriber: "openai-whisper:whisper-1",
		RoleGenerator:   "openai:gpt-4o-mini",
	},
}

// expandPreset 展开 Preset，Steps 已存在时原样返回
func expandPreset(r Recipe) (Recipe, error) {
	if r.Preset == "" {
		return r, nil
	}
	defaults, ok := defaultModels[r.Preset]
	if !ok {
		return r, xerror.Newf("xrecipe", "expandPreset", "recipe %s: unknown preset %q", r.Name, r.Preset)
	}
	model := func(stage string) string {
		if m := r.Models[stage]; m != "" {
			return m
		}
		return defaults[stage]
	}

	switch r.Preset {
	case PresetNarrator:
		r.Input = InputAudio
		r.Steps = []StepSpec{
			{Name: RoleTagger, Stage: StageAudioTagger, Model: model(RoleTagger), TopK: 5, Cache: true},
			{Name: RoleGenerator, Adapter: AdapterLabelsToPrompt, Template: xadapter.DefaultLabelsTemplate,
				Stage: StageTextGenerator, Model: model(RoleGenerator)},
		}
	case PresetCaption:
		r.Input = InputImage
		r.Steps = []StepSpec{
			{Name: RoleClassifier, Stage: StageImageClassifier, Model: model(RoleClassifier), TopK: 3, Cache: true},
			{Name: RoleGenerator, Adapter: AdapterLabelsToPrompt, Template: DefaultCaptionTemplate,
				Stage: StageTextGenerator, Model: model(RoleGenerator)},
		}
	case PresetSummarize:
		r.Input = InputAudio
		r.Steps = []StepSpec{
			{Name: RoleTranscriber, Stage: StageTranscriber, Model: model(RoleTranscriber)},
			{Name: RoleGenerator, Adapter: AdapterTranscriptToPrompt, Template: xadapter.DefaultTextTemplate,
				Stage: StageTextGenerator, Model: model(RoleGenerator)},
		}
	}
	return r, nil
}

// Presets 内置预设，key 为流水线名
func Presets() map[string]Recipe {
	return map[string]Recipe{
		PresetNarrator:  {Name: PresetNarrator, Preset: PresetNarrator, Description: "audio tags narrated by a language model"},
		PresetCaption:   {Name: PresetCaption, Preset: PresetCaption, Description: "image classes turned into a caption"},
		PresetSummarize: {Name: PresetSummarize, Preset: PresetSummarize, Description: "speech transcript summarized by a language model"},
	}
}
