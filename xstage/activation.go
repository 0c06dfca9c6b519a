package xstage

import (
	"math"
	"strings"
)

const (
	ActivationSigmoid = "sigmoid"
	ActivationSoftmax = "softmax"
	ActivationNone    = "none"
)

// activate 就地转换 logits
func activate(name string, logits []float32) []float32 {
	switch strings.ToLower(name) {
	case ActivationSigmoid:
		for i, v := range logits {
			logits[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	case ActivationSoftmax:
		if len(logits) == 0 {
			return logits
		}
		maxV := logits[0]
		for _, v := range logits[1:] {
			maxV = max(maxV, v)
		}
		var sum float64
		exp := make([]float64, len(logits))
		for i, v := range logits {
			exp[i] = math.Exp(float64(v - maxV))
			sum += exp[i]
		}
		for i := range logits {
			logits[i] = float32(exp[i] / sum)
		}
	}
	return logits
}

func resolveActivation(configured, fromModel, fallback string) string {
	switch {
	case configured != "":
		return configured
	case fromModel != "":
		return fromModel
	default:
		return fallback
	}
}
