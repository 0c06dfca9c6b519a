package options

import "time"

// DefaultMaxUploadBytes 默认请求体上限 32MiB
const DefaultMaxUploadBytes int64 = 32 << 20

func EnableLogMiddleware(enableLogMiddleware bool) Option {
	return func(o *Options) {
		o.EnableLogMiddleware = enableLogMiddleware
	}
}

// LogSkipPaths 日志中间件忽略的路由，以 / 结尾为前缀匹配，否则精确匹配
func LogSkipPaths(paths ...string) Option {
	return func(o *Options) {
		o.LogSkipPaths = append(o.LogSkipPaths, paths...)
	}
}

func EnableTraceMiddleware(enableTraceMiddleware bool) Option {
	return func(o *Options) {
		o.EnableTraceMiddleware = enableTraceMiddleware
	}
}

func EnableZHTranslations(enableZHTranslations bool) Option {
	return func(o *Options) {
		o.EnableZHTranslations = enableZHTranslations
	}
}

// MaxUploadBytes 请求体与 multipart 内存上限，<=0 不限制
func MaxUploadBytes(n int64) Option {
	return func(o *Options) {
		o.MaxUploadBytes = n
	}
}

// WriteTimeout http.Server 的写超时，需大于单次运行的超时，<=0 不限制
func WriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

// MaxInflight 以 pathPrefixes 为前缀的路由最多同时处理 n 个请求，超出直接返回 503
func MaxInflight(n int, pathPrefixes ...string) Option {
	return func(o *Options) {
		o.MaxInflight = n
		o.InflightPaths = pathPrefixes
	}
}

type Option func(*Options)

type Options struct {
	EnableLogMiddleware   bool
	EnableTraceMiddleware bool
	EnableZHTranslations  bool
	LogSkipPaths          []string

	MaxUploadBytes int64
	WriteTimeout   time.Duration
	MaxInflight    int
	InflightPaths  []string
}

func DefaultOptions() *Options {
	return &Options{
		EnableLogMiddleware:   true,
		EnableTraceMiddleware: true,
		EnableZHTranslations:  false,
		LogSkipPaths:          []string{"/health"},
		MaxUploadBytes:        DefaultMaxUploadBytes,
	}
}

// WithSwaggerUrlPrefix swagger 路由前缀，如 "/api" 对应 "/api/swagger/*any"
func WithSwaggerUrlPrefix(urlPrefix string) SwaggerOption {
	return func(o *SwaggerOptions) {
		o.UrlPrefix = urlPrefix
	}
}

type SwaggerOption func(*SwaggerOptions)

type SwaggerOptions struct {
	UrlPrefix string
}

func DefaultSwaggerOptions() *SwaggerOptions {
	return &SwaggerOptions{}
}
