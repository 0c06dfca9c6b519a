package xgorm

const XGormConfigKey = "XGorm"

// Driver 数据库驱动类型
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

type Config struct {
	// Driver 数据库驱动类型，postgres 或 mysql
	// optional default "postgres"
	Driver string `mapstructure:"Driver"`

	// DSN 数据库连接串
	// required
	DSN string `mapstructure:"DSN"`

	// DialTimeout 建连超时时间(仅 mysql 有效，postgres 请写在 DSN 的 connect_timeout 中)
	// optional default "1s"
	DialTimeout string `mapstructure:"DialTimeout"`

	// ReadTimeout 读超时时间(仅 mysql 有效)
	// optional default "3s"
	ReadTimeout string `mapstructure:"ReadTimeout"`

	// WriteTimeout 写超时时间(仅 mysql 有效)
	// optional default "5s"
	WriteTimeout string `mapstructure:"WriteTimeout"`

	// MaxOpenConns 最大连接数
	// optional default 10
	MaxOpenConns int `mapstructure:"MaxOpenConns"`

	// MaxLifetime 连接的最长存活时间
	// optional default "5m"
	MaxLifetime string `mapstructure:"MaxLifetime"`

	// SlowThreshold 慢查询阈值
	// optional default "1s"
	SlowThreshold string `mapstructure:"SlowThreshold"`

	// EnableLog gorm 日志是否写入应用日志
	// optional default false
	EnableLog bool `mapstructure:"EnableLog"`

	// AutoMigrate 启动时是否自动建表(运行记录表)
	// optional default true
	AutoMigrate *bool `mapstructure:"AutoMigrate"`
}

func configMergeDefault(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	if c.Driver == "" {
		c.Driver = string(DriverPostgres)
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "1s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "5s"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxLifetime == "" {
		c.MaxLifetime = "5m"
	}
	if c.SlowThreshold == "" {
		c.SlowThreshold = "1s"
	}
	if c.AutoMigrate == nil {
		t := true
		c.AutoMigrate = &t
	}
	return c
}
