// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 市场环境参数
	Market MarketConfig `mapstructure:"market"`
	// 校准任务配置
	Calibration CalibrationConfig `mapstructure:"calibration"`
	// 波动率曲面配置
	Surface SurfaceConfig `mapstructure:"surface"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver" default:"mysql"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns" default:"25"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns" default:"5"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime" default:"300"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled" default:"false"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold" default:"1000"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string `mapstructure:"host" default:"localhost"`
	Port         int    `mapstructure:"port" default:"6379"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db" default:"0"`
	MaxPoolSize  int    `mapstructure:"max_pool_size" default:"10"`
	ConnTimeout  int    `mapstructure:"conn_timeout" default:"5"`
	ReadTimeout  int    `mapstructure:"read_timeout" default:"3"`
	WriteTimeout int    `mapstructure:"write_timeout" default:"3"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 重试次数
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff" default:"100"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json"`
	Output     string `mapstructure:"output" default:"stdout"`
	FilePath   string `mapstructure:"file_path" default:"logs/app.log"`
	MaxSize    int    `mapstructure:"max_size" default:"100"`
	MaxBackups int    `mapstructure:"max_backups" default:"10"`
	MaxAge     int    `mapstructure:"max_age" default:"30"`
	Compress   bool   `mapstructure:"compress" default:"true"`
	WithCaller bool   `mapstructure:"with_caller" default:"true"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" default:"true"`
	Port    int    `mapstructure:"port" default:"9090"`
	Path    string `mapstructure:"path" default:"/metrics"`
}

// MarketConfig holds the externally supplied rate environment. Rates come
// from the economic-data collaborators; this service only consumes them.
type MarketConfig struct {
	// 无风险利率
	RiskFreeRate float64 `mapstructure:"risk_free_rate" default:"0.03"`
	// 股息收益率
	DividendYield float64 `mapstructure:"dividend_yield" default:"0.0"`
}

// CalibrationConfig 校准任务配置
type CalibrationConfig struct {
	// 需要校准的标的列表
	Symbols []string `mapstructure:"symbols"`
	// 滚动已实现方差窗口（交易日）
	Window int `mapstructure:"window" default:"21"`
	// 历史回看天数
	LookbackDays int `mapstructure:"lookback_days" default:"756"`
	// 重新校准间隔（秒）
	IntervalSeconds int `mapstructure:"interval_seconds" default:"3600"`
	// kappa 裁剪范围
	KappaMin float64 `mapstructure:"kappa_min" default:"0.5"`
	KappaMax float64 `mapstructure:"kappa_max" default:"20.0"`
	// sigma_v 裁剪范围
	SigmaVMin float64 `mapstructure:"sigma_v_min" default:"0.1"`
	SigmaVMax float64 `mapstructure:"sigma_v_max" default:"3.0"`
	// Redis 缓存 TTL（秒）
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"86400"`
}

// SurfaceConfig 波动率曲面配置
type SurfaceConfig struct {
	// 行权价（占现货百分比）
	StrikesPct []float64 `mapstructure:"strikes_pct"`
	// 到期（年）
	Expiries []float64 `mapstructure:"expiries"`
	// 每个网格单元的模拟路径数
	NumPaths int `mapstructure:"num_paths" default:"20000"`
	// 并行 worker 数（0 表示 GOMAXPROCS）
	Workers int `mapstructure:"workers" default:"0"`
	// 基础随机种子
	Seed int64 `mapstructure:"seed" default:"42"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.Calibration.Window < 2 {
		return fmt.Errorf("calibration window must be at least 2 trading days, got %d", c.Calibration.Window)
	}
	if c.Calibration.KappaMin <= 0 || c.Calibration.KappaMax <= c.Calibration.KappaMin {
		return fmt.Errorf("invalid kappa clip bounds [%v, %v]", c.Calibration.KappaMin, c.Calibration.KappaMax)
	}
	if c.Calibration.SigmaVMin <= 0 || c.Calibration.SigmaVMax <= c.Calibration.SigmaVMin {
		return fmt.Errorf("invalid sigma_v clip bounds [%v, %v]", c.Calibration.SigmaVMin, c.Calibration.SigmaVMax)
	}
	if c.Surface.NumPaths < 1 {
		return fmt.Errorf("surface num_paths must be positive, got %d", c.Surface.NumPaths)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("market.risk_free_rate", 0.03)
	v.SetDefault("market.dividend_yield", 0.0)

	v.SetDefault("calibration.window", 21)
	v.SetDefault("calibration.lookback_days", 756)
	v.SetDefault("calibration.interval_seconds", 3600)
	v.SetDefault("calibration.kappa_min", 0.5)
	v.SetDefault("calibration.kappa_max", 20.0)
	v.SetDefault("calibration.sigma_v_min", 0.1)
	v.SetDefault("calibration.sigma_v_max", 3.0)
	v.SetDefault("calibration.cache_ttl_seconds", 86400)

	v.SetDefault("surface.strikes_pct", []float64{80, 90, 100, 110, 120})
	v.SetDefault("surface.expiries", []float64{0.25, 0.5, 1.0, 2.0})
	v.SetDefault("surface.num_paths", 20000)
	v.SetDefault("surface.workers", 0)
	v.SetDefault("surface.seed", 42)
}
