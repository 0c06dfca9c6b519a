package xmedia

// Prompt 由上游结果按模板确定性生成的文本
type Prompt struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func (Prompt) Kind() Kind { return KindPrompt }

// Transcript 语音识别结果
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

func (Transcript) Kind() Kind { return KindTranscript }

// GeneratedText 生成模型的最终输出，流水线的终值
type GeneratedText struct {
	Text         string `json:"text"`
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

func (GeneratedText) Kind() Kind { return KindText }
