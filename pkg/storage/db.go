package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KodaTao/taskter/pkg/observability"
)

// openDB 打开 sqlite 数据库连接
// path 为 ":memory:" 时使用内存数据库
func openDB(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		// 确保目录存在
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, &DBError{Message: "failed to open database", Err: err}
	}

	// sqlite 单写者，限制连接数避免 database is locked
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	observability.Info("Database initialized", "path", path)
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	if db == nil {
		return ErrDBNotInitialized
	}
	return db.AutoMigrate(
		&agentRecord{},
		&taskRecord{},
		&okrRecord{},
		&runningRecord{},
		&Execution{},
	)
}

// closeDB 关闭数据库连接
func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
