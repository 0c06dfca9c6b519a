package xmedia

import (
	"cmp"
	"slices"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
)

// Label 一个分类结果
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// NewLabel confidence 必须在 [0,1]
func NewLabel(name string, confidence float64) (Label, error) {
	if confidence < 0 || confidence > 1 || confidence != confidence {
		return Label{}, xerror.Newf("xmedia", "NewLabel", "confidence %v of [%s] out of [0,1]", confidence, name)
	}
	return Label{Name: name, Confidence: confidence}, nil
}

// LabelSet 按置信度降序排列的 top-k 结果，置信度相同时保持原始顺序
type LabelSet struct {
	labels []Label
}

// NewLabelSet 稳定排序后构造
func NewLabelSet(labels ...Label) LabelSet {
	cp := slices.Clone(labels)
	slices.SortStableFunc(cp, func(a, b Label) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return LabelSet{labels: cp}
}

// TopK 从模型得分中取前 k 个，k<=0 或大于类别数时取全部
// scores 需已是概率(softmax/sigmoid 之后)，超出 [0,1] 的值会被截断
func TopK(scores []float32, classes []string, k int) (LabelSet, error) {
	if len(scores) != len(classes) {
		return LabelSet{}, xerror.Newf("xmedia", "TopK", "got %d scores for %d classes", len(scores), len(classes))
	}
	labels := make([]Label, len(scores))
	for i, s := range scores {
		labels[i] = Label{Name: classes[i], Confidence: clamp01(float64(s))}
	}
	set := NewLabelSet(labels...)
	if k > 0 && k < len(set.labels) {
		set.labels = set.labels[:k]
	}
	return set, nil
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (s LabelSet) Kind() Kind { return KindLabels }

func (s LabelSet) Len() int { return len(s.labels) }

func (s LabelSet) Labels() []Label { return slices.Clone(s.labels) }

// Names 按顺序返回标签名
func (s LabelSet) Names() []string {
	names := make([]string, len(s.labels))
	for i, l := range s.labels {
		names[i] = l.Name
	}
	return names
}

// Top 置信度最高的标签
func (s LabelSet) Top() (Label, bool) {
	if len(s.labels) == 0 {
		return Label{}, false
	}
	return s.labels[0], true
}

func (s LabelSet) String() string {
	return strings.Join(s.Names(), ", ")
}
