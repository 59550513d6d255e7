package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（与 config/config.yaml 对应）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // HTTP 查询服务配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL 配置
	Loader   LoaderConfig   `mapstructure:"loader"`   // 入库任务配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 完整 DSN，非空时优先于下面的分项
	Host            string        `mapstructure:"host"`              // 主机
	Port            int           `mapstructure:"port"`              // 端口
	DBName          string        `mapstructure:"dbname"`            // 库名
	User            string        `mapstructure:"user"`              // 用户
	Password        string        `mapstructure:"password"`          // 密码（建议放 .env）
	SSLMode         string        `mapstructure:"sslmode"`           // disable/require/...
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`   // 建连超时
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// LoaderConfig 入库任务配置
type LoaderConfig struct {
	SourceDir            string        `mapstructure:"source_dir"`             // 爬虫输出目录
	ArchiveDir           string        `mapstructure:"archive_dir"`            // 处理完成后的归档目录，空则不移动
	Timezone             string        `mapstructure:"timezone"`               // match_date 所在时区
	MaxRetries           int           `mapstructure:"max_retries"`            // 瞬时错误最大重试次数
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"` // 首次退避间隔
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`     // 最大退避间隔
	MaxReportedErrors    int           `mapstructure:"max_reported_errors"`    // 汇总中展示的错误条数
}

// LogConfig 日志配置
type LogConfig struct {
	Level         string        `mapstructure:"level"`          // debug/info/warn/error
	Format        string        `mapstructure:"format"`         // text/json
	Dir           string        `mapstructure:"dir"`            // 日志文件目录，空则只输出到控制台
	MaxSizeMB     int           `mapstructure:"max_size_mb"`    // 单文件大小上限
	MaxBackups    int           `mapstructure:"max_backups"`    // 保留文件数
	MaxAgeDays    int           `mapstructure:"max_age_days"`   // 保留天数
	GormLevel     string        `mapstructure:"gorm_level"`     // silent/error/warn/info
	SlowThreshold time.Duration `mapstructure:"slow_threshold"` // 慢 SQL 阈值
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.host", "db")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.dbname", "speedway_db")
	v.SetDefault("postgres.user", "speedway_user")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.connect_timeout", 10*time.Second)
	v.SetDefault("postgres.max_open_conns", 1)
	v.SetDefault("postgres.max_idle_conns", 1)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("loader.source_dir", "output")
	v.SetDefault("loader.timezone", "Europe/Warsaw")
	v.SetDefault("loader.max_retries", 3)
	v.SetDefault("loader.retry_initial_interval", 200*time.Millisecond)
	v.SetDefault("loader.retry_max_interval", 5*time.Second)
	v.SetDefault("loader.max_reported_errors", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.gorm_level", "warn")
	v.SetDefault("log.slow_threshold", time.Second)
}

// LoadConfig 加载配置文件（默认 ./config/config.yaml），敏感项从 .env / 环境变量覆盖。
// 配置文件不存在时只使用默认值 + 环境变量。
func LoadConfig(path string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load()

	// 2. 读取 yaml
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 环境变量覆盖（优先级 env > yaml）
	if err := overrideFromEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖配置，变量名沿用爬虫容器里的约定
func overrideFromEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POSTGRES_PORT 不是合法端口: %q", v)
		}
		cfg.Postgres.Port = port
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Postgres.DBName = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SCRAPE_OUTPUT_DIR"); v != "" {
		cfg.Loader.SourceDir = v
	}
	if v := os.Getenv("SCRAPE_ARCHIVE_DIR"); v != "" {
		cfg.Loader.ArchiveDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT 不是合法端口: %q", v)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate 启动前校验，失败直接退出
func (c *Config) Validate() error {
	if c.Loader.SourceDir == "" {
		return errors.New("loader.source_dir 不能为空")
	}
	if _, err := time.LoadLocation(c.Loader.Timezone); err != nil {
		return fmt.Errorf("loader.timezone 无效: %w", err)
	}
	if c.Loader.MaxRetries < 0 {
		return fmt.Errorf("loader.max_retries 不能为负数: %d", c.Loader.MaxRetries)
	}
	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.DBName == "") {
		return errors.New("未配置 DATABASE_URL 时 postgres.host 与 postgres.dbname 必填")
	}
	return nil
}

// Location 返回 match_date 解析所用的时区（Validate 已保证可加载）
func (l *LoaderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDSN 拼装 PostgreSQL 连接串（URL 形式）
func (p *PostgresConfig) GetDSN() string {
	if p.DSN != "" {
		return p.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DBName,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(p.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
