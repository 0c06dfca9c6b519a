// Package xgin 基于 gin 的 http 服务构建器
//
// 中间件顺序固定为 session、trace、recover、log、请求体上限、并发上限，之后才是调用方追加的中间件。
// 监听地址、h2c、TLS 与退出等待时间来自 XGin 配置，请求体上限、写超时与并发上限由调用方通过 options 传入，
// XGin 实现 xserver.Server，交由 xserver 统一处理启动、退出信号与 hook
package xgin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xgin/middleware"
	"github.com/xiaoshicae/xinfer/xgin/options"
	"github.com/xiaoshicae/xinfer/xgin/trans"
	"github.com/xiaoshicae/xinfer/xserver"
	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// SwaggerUrl swagger 页面路由
const SwaggerUrl = "/swagger/*any"

// New 创建 XGin builder
func New(opts ...options.Option) *XGin {
	setGinMode()
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	o := options.DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &XGin{engine: engine, options: o}
}

// XGin gin 服务构建器
type XGin struct {
	engine          *gin.Engine
	options         *options.Options
	routerRegisters []func(*gin.Engine)
	middlewares     []gin.HandlerFunc
	recoveryFunc    gin.RecoveryFunc
	swaggerInfo     *swag.Spec
	swaggerOpts     []options.SwaggerOption

	srvMu sync.Mutex
	srv   *http.Server
	build bool
}

func (g *XGin) WithRouteRegister(f ...func(*gin.Engine)) *XGin {
	g.routerRegisters = append(g.routerRegisters, f...)
	return g
}

func (g *XGin) WithMiddleware(m ...gin.HandlerFunc) *XGin {
	g.middlewares = append(g.middlewares, m...)
	return g
}

func (g *XGin) WithSwagger(swaggerInfo *swag.Spec, opts ...options.SwaggerOption) *XGin {
	g.swaggerInfo = swaggerInfo
	g.swaggerOpts = opts
	return g
}

func (g *XGin) WithRecoverFunc(recoveryFunc gin.RecoveryFunc) *XGin {
	g.recoveryFunc = recoveryFunc
	return g
}

// Build 注册中间件与路由，重复调用无副作用
func (g *XGin) Build() *XGin {
	if g.build {
		return g
	}

	g.engine.MaxMultipartMemory = g.options.MaxUploadBytes
	g.useMiddleware()
	for _, register := range g.routerRegisters {
		register(g.engine)
	}
	if g.swaggerInfo != nil {
		injectSwaggerInfo(g.swaggerInfo, g.engine, g.swaggerOpts...)
	}
	if g.options.EnableZHTranslations {
		if err := trans.RegisterZHTranslations(); err != nil {
			xutil.WarnIfEnableDebug("XInfer register zh translations failed, err=[%v]", err)
		}
	}

	g.build = true
	return g
}

func (g *XGin) Engine() *gin.Engine {
	return g.Build().engine
}

// Options 生效的构建参数
func (g *XGin) Options() options.Options {
	return *g.options
}

// Start 以 xserver 方式阻塞启动
func (g *XGin) Start() error {
	return xserver.Run(g)
}

// Run 实现 xserver.Server 接口
func (g *XGin) Run() error {
	c := GetConfig()
	if (c.CertFile == "") != (c.KeyFile == "") {
		return xerror.Newf("xgin", "run", "TLS config incomplete: CertFile and KeyFile must be both set or both empty")
	}
	g.Build()
	if g.swaggerInfo != nil {
		setGinSwaggerInfo(g.swaggerInfo)
	}

	srv := g.newServer(c)
	g.srvMu.Lock()
	g.srv = srv
	g.srvMu.Unlock()

	PrintBanner()
	xutil.InfoIfEnableDebug("XInfer http server listen on: %s, max_upload=%d write_timeout=%s max_inflight=%d",
		srv.Addr, g.options.MaxUploadBytes, g.options.WriteTimeout, g.options.MaxInflight)

	var err error
	if c.CertFile != "" {
		xutil.InfoIfEnableDebug("XInfer http server use TLS, cert=[%s], key=[%s]", c.CertFile, c.KeyFile)
		err = srv.ListenAndServeTLS(c.CertFile, c.KeyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (g *XGin) newServer(c *Config) *http.Server {
	handler := g.engine.Handler()
	if c.UseH2C && c.CertFile == "" {
		handler = h2c.NewHandler(handler, &http2.Server{})
		xutil.InfoIfEnableDebug("XInfer http server use h2c")
	}
	return &http.Server{
		Addr:              net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Handler:           handler,
		ReadHeaderTimeout: c.readHeaderTimeout(),
		WriteTimeout:      g.options.WriteTimeout,
	}
}

// Stop 实现 xserver.Server 接口，等待在途运行结束，最多等待 XGin.ShutdownTimeout
func (g *XGin) Stop() error {
	g.srvMu.Lock()
	srv := g.srv
	g.srvMu.Unlock()

	if srv == nil {
		// 信号可能在 srv 赋值前到达
		xutil.WarnIfEnableDebug("XInfer Stop called but http server not started yet, skip")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), GetConfig().shutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		xutil.ErrorIfEnableDebug("XInfer http server stop failed, err=[%v]", err)
		return err
	}
	return nil
}

func (g *XGin) useMiddleware() {
	o := g.options
	g.engine.Use(middleware.GinXSessionMiddleware())

	// trace 需要靠前，保证后续中间件与 handler 能拿到 trace id
	if o.EnableTraceMiddleware {
		g.engine.Use(middleware.GinXTraceMiddleware())
	}
	g.engine.Use(middleware.GinXRecoverMiddleware(g.recoveryFunc))
	if o.EnableLogMiddleware {
		g.engine.Use(middleware.LogMiddleware(middleware.WithSkipPaths(o.LogSkipPaths...)))
	}

	// 在 log 之后，413 与 503 也会落日志
	g.engine.Use(middleware.BodyLimitMiddleware(o.MaxUploadBytes))
	g.engine.Use(middleware.InflightMiddleware(o.MaxInflight, o.InflightPaths...))

	g.engine.Use(g.middlewares...)
}

func setGinMode() {
	if strings.TrimSpace(os.Getenv(gin.EnvGinMode)) != "" {
		return
	}
	if xutil.EnableDebug() {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

func injectSwaggerInfo(swaggerInfo *swag.Spec, engine *gin.Engine, opts ...options.SwaggerOption) {
	if swaggerInfo == nil || engine == nil {
		return
	}

	dso := options.DefaultSwaggerOptions()
	for _, opt := range opts {
		opt(dso)
	}

	engine.GET(dso.UrlPrefix+SwaggerUrl, ginSwagger.WrapHandler(swaggerfiles.Handler))
}

// setGinSwaggerInfo 服务版本号取自 xconfig，其余取自 XGin.Swagger
func setGinSwaggerInfo(swaggerInfo *swag.Spec) {
	c := GetSwaggerConfig()
	swaggerInfo.Version = xconfig.GetServerVersion()
	swaggerInfo.Host = c.Host
	swaggerInfo.BasePath = c.BasePath
	swaggerInfo.Title = c.Title
	swaggerInfo.Description = c.Description
	swaggerInfo.Schemes = c.Schemes
}
