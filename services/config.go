package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Share     ShareConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL          string
	Migrate      bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type StorageConfig struct {
	UploadDir      string
	InvoiceDir     string
	KeysDir        string
	MaxUploadBytes int64
}

type ShareConfig struct {
	Secret string
	TTL    time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("database.url", "mipyme.db")
	viper.SetDefault("database.migrate", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("storage.upload_dir", "uploads")
	viper.SetDefault("storage.invoice_dir", "invoices")
	viper.SetDefault("storage.keys_dir", "digital_keys")
	viper.SetDefault("storage.max_upload_bytes", 16*1024*1024) // 16MB max
	viper.SetDefault("share.secret", "")
	viper.SetDefault("share.ttl_minutes", "60")
	viper.SetDefault("websocket.allowed_origins", "")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.migrate", "DATABASE_MIGRATE")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	viper.BindEnv("storage.invoice_dir", "INVOICE_DIR")
	viper.BindEnv("storage.keys_dir", "KEYS_DIR")
	viper.BindEnv("storage.max_upload_bytes", "MAX_UPLOAD_BYTES")
	viper.BindEnv("share.secret", "SHARE_SECRET")
	viper.BindEnv("share.ttl_minutes", "SHARE_TTL_MINUTES")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Migrate:      viper.GetBool("database.migrate"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Storage: StorageConfig{
			UploadDir:      viper.GetString("storage.upload_dir"),
			InvoiceDir:     viper.GetString("storage.invoice_dir"),
			KeysDir:        viper.GetString("storage.keys_dir"),
			MaxUploadBytes: viper.GetInt64("storage.max_upload_bytes"),
		},
		Share: ShareConfig{
			Secret: viper.GetString("share.secret"),
			TTL:    time.Duration(viper.GetInt("share.ttl_minutes")) * time.Minute,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
