package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SpeedwaySync/internal/config"
	"SpeedwaySync/internal/logging"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// invalid_catalog_name：目标库不存在
const pgCodeInvalidCatalog = "3D000"

// ErrDatabaseMissing 目标库不存在。库和表结构由外部预先建好，这里只报错不创建。
var ErrDatabaseMissing = errors.New("目标数据库不存在")

// Open 连接已存在的 PostgreSQL 库，配置连接池并校验连通性。
// 不建库、不迁移：任何连接失败（包括库不存在）都原样返回给调用方。
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	sqlDB, err := connect(ctx, cfg.Postgres.GetDSN(), cfg.Postgres)
	if err != nil {
		return nil, connectError(err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logging.NewGormLogger(logger, cfg.Log.GormLevel, cfg.Log.SlowThreshold),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("初始化GORM失败: %w", err)
	}
	logger.WithField("host", cfg.Postgres.Host).Info("PostgreSQL连接成功")
	return db, nil
}

func connect(ctx context.Context, dsn string, pg config.PostgresConfig) (*sql.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pg.ConnMaxLifetime)

	timeout := pg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// connectError 库不存在时挂上 ErrDatabaseMissing，其余错误统一包装
func connectError(err error) error {
	if isMissingDatabase(err) {
		return fmt.Errorf("连接PostgreSQL失败: %w（需预先建库建表）: %v", ErrDatabaseMissing, err)
	}
	return fmt.Errorf("连接PostgreSQL失败: %w", err)
}

func isMissingDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeInvalidCatalog
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
