package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kgicweb/config"
	"kgicweb/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(50)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	DB = conn
	logger.Info("Successfully connected to the database",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return conn, nil
}

// 建表语句需要同时兼容 MySQL 和 SQLite（测试使用）
var schema = []struct {
	table string
	ddl   string
}{
	{"prayers", `
	CREATE TABLE IF NOT EXISTS prayers (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		author VARCHAR(255),
		excerpt VARCHAR(500),
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		scheduled_for DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
	{"podcasts", `
	CREATE TABLE IF NOT EXISTS podcasts (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		artist VARCHAR(255),
		audio_url VARCHAR(1024) NOT NULL,
		duration_seconds INTEGER,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		published_at DATETIME,
		image_url VARCHAR(1024),
		play_count BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
	{"books", `
	CREATE TABLE IF NOT EXISTS books (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		price DECIMAL(10,2) NOT NULL DEFAULT 0,
		description TEXT,
		cover_url VARCHAR(1024),
		rating DECIMAL(3,1) NOT NULL DEFAULT 0,
		reading_time VARCHAR(64),
		category VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'published',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
	{"announcements", `
	CREATE TABLE IF NOT EXISTS announcements (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		body TEXT,
		link_url VARCHAR(1024),
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		starts_at DATETIME,
		ends_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
	{"ministries", `
	CREATE TABLE IF NOT EXISTS ministries (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		short_desc VARCHAR(500),
		contact_link VARCHAR(500),
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
	{"small_groups", `
	CREATE TABLE IF NOT EXISTS small_groups (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		schedule VARCHAR(255),
		contact_link VARCHAR(500),
		location VARCHAR(255),
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`},
}

// InitSchema creates the content tables if they don't exist.
func InitSchema(ctx context.Context, conn *sql.DB) error {
	for _, s := range schema {
		if _, err := conn.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
		logger.Debug("Table initialized", logger.String("table", s.table))
	}
	logger.Info("Database schema initialization completed", logger.Int("tables", len(schema)))
	return nil
}
