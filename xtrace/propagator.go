package xtrace

import (
	"context"
	"maps"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel/propagation"
)

type forwardHeadersKey struct{}

// HeaderPropagator 透传指定的自定义 Header
type HeaderPropagator struct {
	headers []string
}

func NewHeaderPropagator(headers []string) *HeaderPropagator {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			normalized = append(normalized, http.CanonicalHeaderKey(h))
		}
	}
	return &HeaderPropagator{headers: normalized}
}

func (p *HeaderPropagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	var merged map[string]string
	for _, h := range p.headers {
		v := carrier.Get(h)
		if v == "" {
			continue
		}
		if merged == nil {
			merged = maps.Clone(forwardHeaders(ctx))
			if merged == nil {
				merged = make(map[string]string, len(p.headers))
			}
		}
		merged[h] = v
	}
	if merged == nil {
		return ctx
	}
	return context.WithValue(ctx, forwardHeadersKey{}, merged)
}

func (p *HeaderPropagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	vals := forwardHeaders(ctx)
	for _, h := range p.headers {
		if v := vals[h]; v != "" {
			carrier.Set(h, v)
		}
	}
}

func (p *HeaderPropagator) Fields() []string {
	return append([]string(nil), p.headers...)
}

func forwardHeaders(ctx context.Context) map[string]string {
	m, _ := ctx.Value(forwardHeadersKey{}).(map[string]string)
	return m
}

// ForwardHeaderFromContext 获取透传的 Header 值，key 大小写不敏感
func ForwardHeaderFromContext(ctx context.Context, key string) string {
	return forwardHeaders(ctx)[http.CanonicalHeaderKey(key)]
}

// buildPropagator 按名称组合 propagator，未知名称忽略
func buildPropagator(names []string, forward []string) propagation.TextMapPropagator {
	ps := make([]propagation.TextMapPropagator, 0, len(names)+1)
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "tracecontext":
			ps = append(ps, propagation.TraceContext{})
		case "baggage":
			ps = append(ps, propagation.Baggage{})
		case "b3":
			ps = append(ps, b3.New(b3.WithInjectEncoding(b3.B3SingleHeader)))
		case "b3multi":
			ps = append(ps, b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)))
		}
	}
	if len(forward) > 0 {
		ps = append(ps, NewHeaderPropagator(forward))
	}
	return propagation.NewCompositeTextMapPropagator(ps...)
}
