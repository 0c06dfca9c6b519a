package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xiaoshicae/xinfer/xlog"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/gin-gonic/gin"
)

const (
	FilteredValue = "***FILTERED***"

	maxRequestBodySize     = 64 * 1024
	maxResponseBodyCapture = 4 * 1024
)

var sensitiveFields = []string{"password", "token", "secret", "authorization", "api_key", "apikey"}

var sensitiveHeaders = []string{"Authorization", "X-Api-Key", "X-Auth-Token", "Cookie"}

// LogOptions 日志中间件配置
type LogOptions struct {
	SkipPaths []string
}

type LogOption func(*LogOptions)

// WithSkipPaths 忽略日志记录的路由，以 / 结尾为前缀匹配，否则精确匹配
func WithSkipPaths(paths ...string) LogOption {
	return func(o *LogOptions) {
		o.SkipPaths = append(o.SkipPaths, paths...)
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	if w.body.Len()+len(b) <= maxResponseBodyCapture {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// LogMiddleware 请求日志中间件，媒体上传的 body 不落日志
func LogMiddleware(opts ...LogOption) gin.HandlerFunc {
	o := &LogOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		if shouldSkipLog(c.Request.URL.Path, o.SkipPaths) {
			c.Next()
			return
		}

		begin := time.Now()
		body := getBodySnapshot(c.Request)
		rbw := &responseBodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rbw

		c.Next()

		elapsed := time.Since(begin)
		fields := parseRequestInfo(c.Request, body)
		fields["process_latency"] = elapsed.Milliseconds()
		fields["response_status"] = c.Writer.Status()
		if isTextContentType(c.Writer.Header().Get("Content-Type")) && rbw.body.Len() > 0 {
			fields["response_body"] = rbw.body.String()
		}

		if runID := RunId(c); runID != "" {
			fields[xlog.FieldPipeline] = c.GetString(xlog.FieldPipeline)
			fields[xlog.FieldRunID] = runID
			if kind := c.GetString(FieldErrorKind); kind != "" {
				fields[FieldErrorKind] = kind
			}
		}
		xlog.Info(c.Request.Context(), "[XGin-LogMiddleware] %s %s processed in %s", c.Request.Method, routeOf(c), elapsed, xlog.KVMap(fields))
	}
}

func shouldSkipLog(path string, skipPaths []string) bool {
	for _, skip := range skipPaths {
		if strings.HasSuffix(skip, "/") {
			if strings.HasPrefix(path, skip) {
				return true
			}
		} else if path == skip {
			return true
		}
	}
	return false
}

func parseRequestInfo(req *http.Request, body []byte) map[string]any {
	contentType := req.Header.Get("Content-Type")
	b := strings.NewReplacer("\r\n", "", "\r", "", "\n", "").Replace(string(body))
	if strings.Contains(contentType, "application/json") {
		b = filterJSONBody(b)
	}
	return map[string]any{
		"request_method":      req.Method,
		"request_uri":         req.RequestURI,
		"request_contentType": contentType,
		"request_body":        b,
		"request_header":      xutil.ToJsonString(filterSensitiveHeaders(req.Header)),
		"request_clientIP":    ParseClientIP(req),
	}
}

// getBodySnapshot 读取 body 快照并重新包装 req.Body 供后续 handler 使用
func getBodySnapshot(req *http.Request) []byte {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	contentType := req.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		return []byte("[multipart/form-data body omitted]")
	}
	if !isTextContentType(contentType) {
		return []byte("[binary body omitted]")
	}

	b, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodySize))
	if err != nil {
		return nil
	}
	// 超出上限的部分需要拼回去
	req.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(b), req.Body), req.Body}
	return b
}

func isTextContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") ||
		strings.Contains(ct, "text/") ||
		strings.Contains(ct, "x-www-form-urlencoded")
}

func filterSensitiveHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range sensitiveHeaders {
		if out.Get(k) != "" {
			out.Set(k, FilteredValue)
		}
	}
	return out
}

func filterJSONBody(body string) string {
	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return body
	}
	b, err := json.Marshal(filterValue(data))
	if err != nil {
		return body
	}
	return string(b)
}

func filterValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			if isSensitiveField(k) {
				t[k] = FilteredValue
				continue
			}
			t[k] = filterValue(vv)
		}
	case []any:
		for i := range t {
			t[i] = filterValue(t[i])
		}
	}
	return v
}

func isSensitiveField(k string) bool {
	k = strings.ToLower(k)
	for _, f := range sensitiveFields {
		if k == f {
			return true
		}
	}
	return false
}

// ParseClientIP 依次取 X-Forwarded-For、X-Real-IP、RemoteAddr
func ParseClientIP(req *http.Request) string {
	if ip := strings.TrimSpace(strings.Split(req.Header.Get("X-Forwarded-For"), ",")[0]); net.ParseIP(ip) != nil {
		return ip
	}
	if ip := req.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}
