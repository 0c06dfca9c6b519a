// Package xhttp 提供全局 resty 客户端，用于模型权重下载与远程推理调用
package xhttp

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xtrace"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	mu         sync.RWMutex
	client     = resty.New()
	httpClient = http.DefaultClient
)

func init() {
	xhook.BeforeStart(initXHttp, xhook.Order(4))
}

// C 获取 resty client，推荐使用 RWithCtx 以透传 trace
func C() *resty.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// RawC 底层 *http.Client，供需要原生 client 的 SDK 使用
func RawC() *http.Client {
	mu.RLock()
	defer mu.RUnlock()
	return httpClient
}

func RWithCtx(ctx context.Context) *resty.Request {
	return C().R().SetContext(ctx)
}

func initXHttp() error {
	c, err := getConfig()
	if err != nil {
		return xerror.Newf("xhttp", "init", "getConfig failed, err=[%v]", err)
	}
	xutil.InfoIfEnableDebug("XInfer initXHttp got config: %s", xutil.ToJsonString(c))

	rc, hc := newClient(c, xtrace.EnableTrace())
	mu.Lock()
	client, httpClient = rc, hc
	mu.Unlock()
	return nil
}

func newClient(c *Config, trace bool) (*resty.Client, *http.Client) {
	var transport http.RoundTripper = http.DefaultTransport
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		t.MaxIdleConnsPerHost = c.MaxIdleConnsPerHost
		t.IdleConnTimeout = xutil.ToDuration(c.IdleConnTimeout)
		t.DialContext = (&net.Dialer{Timeout: xutil.ToDuration(c.DialTimeout)}).DialContext
		transport = t
	}
	if trace {
		transport = otelhttp.NewTransport(transport, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Host
		}))
	}

	hc := &http.Client{Transport: transport, Timeout: xutil.ToDuration(c.Timeout)}
	rc := resty.NewWithClient(hc).
		SetHeader("User-Agent", xutil.GetOrDefault(c.UserAgent, "xinfer/"+xconfig.GetServerVersion())).
		SetRetryCount(*c.RetryCount).
		SetRetryWaitTime(xutil.ToDuration(c.RetryWaitTime)).
		SetRetryMaxWaitTime(xutil.ToDuration(c.RetryMaxWaitTime)).
		AddRetryCondition(shouldRetry)
	return rc, hc
}

func shouldRetry(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func getConfig() (*Config, error) {
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XHttpConfigKey, c); err != nil {
		return nil, err
	}
	return configMergeDefault(c), nil
}
