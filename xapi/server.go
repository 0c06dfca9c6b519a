package xapi

import (
	"github.com/xiaoshicae/xinfer/xapi/docs"
	"github.com/xiaoshicae/xinfer/xgin"
	"github.com/xiaoshicae/xinfer/xgin/options"
)

// NewServer 注册全部路由与 swagger 的 http 服务，请求体、写超时与并发上限取自 XApi 配置，opts 可覆盖
func NewServer(opts ...options.Option) *xgin.XGin {
	base := append([]options.Option{options.EnableZHTranslations(true)}, GetConfig().ServeOptions()...)
	opts = append(base, opts...)
	return xgin.New(opts...).
		WithRouteRegister(Register).
		WithSwagger(docs.SwaggerInfo)
}
