package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"` // used to build public object URLs
	WebAppDir     string `mapstructure:"WEB_APP_DIR"`     // static site + admin pages

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	// Redis配置
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// MinIO配置
	MinioEndpoint     string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey    string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey    string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioUseSSL       bool          `mapstructure:"MINIO_USE_SSL"`
	MinioRegion       string        `mapstructure:"MINIO_REGION"`
	MinioBucket       string        `mapstructure:"MINIO_BUCKET"`
	StoragePublicRead bool          `mapstructure:"STORAGE_PUBLIC_READ"`
	SignedURLExpiry   time.Duration `mapstructure:"SIGNED_URL_EXPIRY"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`

	FFprobePath string `mapstructure:"FFPROBE_PATH"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSize    int    `mapstructure:"LOG_MAX_SIZE"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAge     int    `mapstructure:"LOG_MAX_AGE"`

	// listen 命令使用
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	MPVPath    string `mapstructure:"MPV_PATH"`

	// migrate 命令初始化管理员账号
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	v *viper.Viper
}

var defaults = map[string]interface{}{
	"HTTP_ADDR":           ":8080",
	"PUBLIC_BASE_URL":     "http://localhost:8080",
	"WEB_APP_DIR":         filepath.Join("web", "ui"),
	"DB_HOST":             "127.0.0.1",
	"DB_PORT":             "3306",
	"DB_USER":             "root",
	"DB_PASSWORD":         "",
	"DB_NAME":             "kgic",
	"REDIS_HOST":          "127.0.0.1",
	"REDIS_PORT":          "6379",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"MINIO_ENDPOINT":      "",
	"MINIO_ACCESS_KEY":    "",
	"MINIO_SECRET_KEY":    "",
	"MINIO_USE_SSL":       false,
	"MINIO_REGION":        "us-east-1",
	"MINIO_BUCKET":        "podcasts",
	"STORAGE_PUBLIC_READ": true,
	"SIGNED_URL_EXPIRY":   "12h",
	"JWT_SECRET":          "",
	"SESSION_TTL":         "24h",
	"FFPROBE_PATH":        "ffprobe",
	"LOG_LEVEL":           "info",
	"LOG_FILE":            "",
	"LOG_MAX_SIZE":        100,
	"LOG_MAX_BACKUPS":     5,
	"LOG_MAX_AGE":         30,
	"API_BASE_URL":        "http://localhost:8080",
	"MPV_PATH":            "mpv",
	"ADMIN_EMAIL":         "",
	"ADMIN_PASSWORD":      "",
}

// Load builds the configuration from defaults, the environment (a .env file in the
// working directory is loaded first and never overrides real variables) and, when
// path is not empty, a config file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return cfg, nil
}

// Watch re-reads the config file on change and hands the fresh values to onChange.
// It is a no-op when the configuration did not come from a file.
func (c *Config) Watch(onChange func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next := &Config{v: c.v}
		if err := c.v.Unmarshal(next); err != nil {
			log.Printf("config reload failed: %v", err)
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()
}

// DSN returns the MySQL data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// StorageConfigured reports whether object storage credentials are present.
func (c *Config) StorageConfigured() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}
