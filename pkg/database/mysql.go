package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"paper-search-go/internal/model"
	"paper-search-go/pkg/log"
)

// InitMySQL 初始化 MySQL 数据库连接，并迁移入库进度表。
func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("MySQL database connected successfully")
	return db, nil
}

// Migrate 创建或更新 paper_ingest 表结构。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.PaperIngest{}); err != nil {
		return fmt.Errorf("failed to migrate paper_ingest: %w", err)
	}
	return nil
}
