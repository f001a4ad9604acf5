package db

import (
	"database/sql"
	"fmt"

	"kgicweb/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB 是 GORM 数据库连接实例
// 与 DB (*sql.DB) 共享同一个连接池，只用于管理员账号
var GormDB *gorm.DB

// ConnectGormDB 在已有的 *sql.DB 上建立 GORM 连接
func ConnectGormDB(conn *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: conn}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// 禁用外键约束
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	GormDB = gdb
	logger.Info("Successfully connected to the database with GORM")
	return gdb, nil
}

// AutoMigrateModels 自动迁移指定的模型
func AutoMigrateModels(gdb *gorm.DB, models ...interface{}) error {
	if gdb == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}

	logger.Info("Models migrated successfully with GORM", logger.Int("models", len(models)))
	return nil
}
