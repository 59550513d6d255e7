package testutil

import (
	"io"
	"testing"

	"SpeedwaySync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewLogger 测试用 logger，不输出
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetupDB 内存 SQLite + 按 model 建表。只用一个连接，保证所有查询看到同一个内存库。
func SetupDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.AllTables()...); err != nil {
		t.Fatal(err)
	}
	return db
}

// Count 统计表行数
func Count(t testing.TB, db *gorm.DB, table interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(table).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}
