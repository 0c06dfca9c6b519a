// Package xgorm 全局 gorm 客户端，用于持久化流水线运行记录
package xgorm

import (
	"context"
	"sync"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xhook"
	"github.com/xiaoshicae/xinfer/xtrace"
	"github.com/xiaoshicae/xinfer/xutil"

	stdmysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

var (
	mu     sync.RWMutex
	client *gorm.DB
	models []any
)

func init() {
	xhook.BeforeStart(initXGorm, xhook.Order(6), xhook.Timeout(15*time.Second))
	xhook.BeforeStop(closeXGorm)
}

// C 获取 gorm client，未配置 XGorm 时为 nil
func C() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// CWithCtx 带 ctx 的 session，trace 能透传到 sql span
func CWithCtx(ctx context.Context) *gorm.DB {
	c := C()
	if c == nil {
		return nil
	}
	return c.WithContext(ctx)
}

// RegisterModel 注册需要自动建表的模型，需在 BeforeStart 之前调用(一般在 init 中)
func RegisterModel(m ...any) {
	mu.Lock()
	defer mu.Unlock()
	models = append(models, m...)
}

func initXGorm() error {
	if !xconfig.ContainKey(XGormConfigKey) {
		xutil.InfoIfEnableDebug("XInfer xgorm not configured, skip")
		return nil
	}
	c := &Config{}
	if err := xconfig.UnmarshalConfig(XGormConfigKey, c); err != nil {
		return xerror.Newf("xgorm", "init", "getConfig failed, err=[%v]", err)
	}
	c = configMergeDefault(c)
	if c.DSN == "" {
		return xerror.Newf("xgorm", "init", "config XGorm.DSN can not be empty")
	}

	db, err := newClient(c)
	if err != nil {
		return err
	}

	mu.Lock()
	client = db
	toMigrate := append([]any(nil), models...)
	mu.Unlock()

	if *c.AutoMigrate && len(toMigrate) > 0 {
		if err := db.AutoMigrate(toMigrate...); err != nil {
			return xerror.New("xgorm", "AutoMigrate", err)
		}
	}
	return nil
}

func newClient(c *Config) (*gorm.DB, error) {
	dialector, err := resolveDialector(c)
	if err != nil {
		return nil, err
	}

	gc := &gorm.Config{}
	if c.EnableLog {
		gc.Logger = newGormLogger(c)
	}
	db, err := gorm.Open(dialector, gc)
	if err != nil {
		return nil, xerror.New("xgorm", "gorm.Open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerror.New("xgorm", "DB", err)
	}
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(xutil.ToDuration(c.MaxLifetime))

	if err := xutil.Retry(func() error { return sqlDB.PingContext(context.Background()) }, 3, time.Second); err != nil {
		_ = sqlDB.Close()
		return nil, xerror.Newf("xgorm", "newClient", "ping failed, err=[%v]", err)
	}

	if xtrace.EnableTrace() {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, xerror.New("xgorm", "tracing.NewPlugin", err)
		}
	}
	return db, nil
}

func resolveDialector(c *Config) (gorm.Dialector, error) {
	if c == nil || c.DSN == "" {
		return nil, xerror.Newf("xgorm", "resolveDialector", "dsn can't be empty")
	}
	switch Driver(c.Driver) {
	case DriverMySQL:
		dsn, err := resolveMySQLDSN(c)
		if err != nil {
			return nil, xerror.Newf("xgorm", "resolveDialector", "resolve mysql dsn failed, err=[%v]", err)
		}
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(c.DSN), nil
	default:
		return nil, xerror.Newf("xgorm", "resolveDialector", "unsupported driver: %s, supported: mysql, postgres", c.Driver)
	}
}

// resolveMySQLDSN DSN 中未指定的超时使用配置值，并强制 parseTime
func resolveMySQLDSN(c *Config) (string, error) {
	mc, err := stdmysql.ParseDSN(c.DSN)
	if err != nil {
		return "", err
	}
	if mc.Timeout == 0 {
		mc.Timeout = xutil.ToDuration(c.DialTimeout)
	}
	if mc.ReadTimeout == 0 {
		mc.ReadTimeout = xutil.ToDuration(c.ReadTimeout)
	}
	if mc.WriteTimeout == 0 {
		mc.WriteTimeout = xutil.ToDuration(c.WriteTimeout)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

func closeXGorm() error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	sqlDB, err := client.DB()
	client = nil
	if err != nil {
		return xerror.New("xgorm", "close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return xerror.New("xgorm", "close", err)
	}
	return nil
}
