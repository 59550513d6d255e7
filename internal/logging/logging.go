package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"SpeedwaySync/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm/logger"
)

// New 按配置初始化 logrus：控制台 + （可选）按大小滚动的日志文件。
// 文件名带启动时间戳，每次运行一个文件。
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return nil, nil, fmt.Errorf("日志级别无效: %w", err)
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	if cfg.Dir == "" {
		l.SetOutput(os.Stdout)
		return l, nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, fmt.Sprintf("speedway_sync_%s.log", time.Now().Format("20060102_150405"))),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	l.SetOutput(io.MultiWriter(os.Stdout, file))
	return l, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewGormLogger GORM 日志转发到 logrus，慢 SQL 按阈值告警
func NewGormLogger(l *logrus.Logger, level string, slow time.Duration) logger.Interface {
	return logger.New(gormWriter{l}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  ParseGormLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// ParseGormLevel silent/error/warn/info，其他值按 warn 处理
func ParseGormLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

type gormWriter struct {
	l *logrus.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.l.WithField("component", "gorm").Infof(format, args...)
}
