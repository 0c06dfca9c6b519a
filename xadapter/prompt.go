package xadapter

import (
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"

	"github.com/pemistahl/lingua-go"
)

const (
	LabelsPlaceholder   = "{labels}"
	TextPlaceholder     = "{text}"
	LanguagePlaceholder = "{language}"

	// DefaultLabelsTemplate 声音场景描述模板
	DefaultLabelsTemplate = "Describe a scene where you hear: {labels}."
	// DefaultTextTemplate 转写文本摘要模板
	DefaultTextTemplate = "Summarize the following {language} transcript in two sentences: {text}"
)

type labelsToPrompt struct {
	template string
}

// LabelsToPrompt 将 LabelSet 按置信度顺序以 ", " 连接后填入模板的 {labels}
// template 为空时使用 DefaultLabelsTemplate，不含 {labels} 时返回错误
func LabelsToPrompt(template string) (Adapter, error) {
	if template == "" {
		template = DefaultLabelsTemplate
	}
	if !strings.Contains(template, LabelsPlaceholder) {
		return nil, xerror.Adaptation("labels template %q has no %s placeholder", template, LabelsPlaceholder)
	}
	return labelsToPrompt{template: template}, nil
}

func (a labelsToPrompt) Name() string { return "labels_to_prompt" }

func (a labelsToPrompt) Adapt(in xmedia.Value) (xmedia.Value, error) {
	if err := expectKind(a.Name(), in, xmedia.KindLabels); err != nil {
		return nil, err
	}
	set := in.(xmedia.LabelSet)
	if set.Len() == 0 {
		return nil, xerror.Adaptation("%s: label set is empty", a.Name())
	}
	text := strings.ReplaceAll(a.template, LabelsPlaceholder, strings.Join(set.Names(), ", "))
	return xmedia.Prompt{Text: text}, nil
}

type textToPrompt struct {
	template string
}

// TranscriptToPrompt 将转写文本(或上一个生成 stage 的文本)填入模板的 {text}，
// {language} 替换为检测出的语言名，检测不出时为 "unknown"
func TranscriptToPrompt(template string) (Adapter, error) {
	if template == "" {
		template = DefaultTextTemplate
	}
	if !strings.Contains(template, TextPlaceholder) {
		return nil, xerror.Adaptation("text template %q has no %s placeholder", template, TextPlaceholder)
	}
	return textToPrompt{template: template}, nil
}

func (a textToPrompt) Name() string { return "transcript_to_prompt" }

func (a textToPrompt) Adapt(in xmedia.Value) (xmedia.Value, error) {
	var text, lang string
	switch v := in.(type) {
	case xmedia.Transcript:
		text, lang = v.Text, v.Language
	case xmedia.GeneratedText:
		text = v.Text
	default:
		return nil, xerror.Adaptation("%s: expect transcript or text input, got %s", a.Name(), xmedia.KindOf(in))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, xerror.Adaptation("%s: text is empty", a.Name())
	}

	code, name := DetectLanguage(text)
	if lang == "" {
		lang = code
	}
	rendered := strings.NewReplacer(TextPlaceholder, text, LanguagePlaceholder, name).Replace(a.template)
	return xmedia.Prompt{Text: rendered, Language: lang}, nil
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// 只加载常见语言的模型，全部语言的模型占用内存过大
var detectLanguages = []lingua.Language{
	lingua.English, lingua.Chinese, lingua.Spanish, lingua.French,
	lingua.German, lingua.Japanese, lingua.Portuguese, lingua.Russian,
}

// DetectLanguage 返回 ISO 639-1 小写代码与英文语言名，无法判断时返回 "", "unknown"
func DetectLanguage(text string) (code string, name string) {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectLanguages...).
			Build()
	})
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return "", "unknown"
	}
	return strings.ToLower(lang.IsoCode639_1().String()), strings.ToLower(lang.String())
}
