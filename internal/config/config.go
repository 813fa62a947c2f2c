package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Index     IndexConfig
	Extract   ExtractConfig
	Upload    UploadConfig
	Purge     PurgeConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port           string
	Host           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// MongoDBConfig configures the metadata store. An empty URI selects the
// in-memory repository.
type MongoDBConfig struct {
	URI             string
	Database        string
	Collection      string
	Timeout         time.Duration
	ConnectAttempts int
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	UploadLogKey string
	LockTTL      time.Duration
}

// MinIOConfig holds MinIO connection configuration. An empty endpoint keeps
// uploads on the local temp directory only.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type StorageConfig struct {
	TempDir string
}

// IndexConfig configures the search index. An empty Path keeps the index in memory.
type IndexConfig struct {
	Path    string
	MaxHits int
}

type ExtractConfig struct {
	PDFToTextBin           string
	LibreOfficeBin         string
	CommandTimeout         time.Duration
	SpreadsheetMemoryLimit int64
}

type UploadConfig struct {
	Workers int
	LogPath string
}

type PurgeConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// RateLimitConfig throttles the document routes per client IP. UseRedis
// switches to the fixed-window limiter shared across replicas.
type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("SERVER_MAX_UPLOAD_MB", 256)
	viper.SetDefault("MONGODB_DATABASE", "docindex")
	viper.SetDefault("MONGODB_COLLECTION", "file_documents")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("MONGODB_CONNECT_ATTEMPTS", 5)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_UPLOAD_LOG_KEY", "docindex:upload-log")
	viper.SetDefault("REDIS_LOCK_TTL", 600)
	viper.SetDefault("MINIO_BUCKET", "docindex-uploads")
	viper.SetDefault("INDEX_PATH", "storage/index.bleve")
	viper.SetDefault("INDEX_MAX_HITS", 1000)
	viper.SetDefault("EXTRACT_PDFTOTEXT_BIN", "pdftotext")
	viper.SetDefault("EXTRACT_LIBREOFFICE_BIN", "libreoffice")
	viper.SetDefault("EXTRACT_COMMAND_TIMEOUT", 120)
	viper.SetDefault("EXTRACT_SPREADSHEET_MEMORY_MB", 512)
	viper.SetDefault("UPLOAD_WORKERS", 4)
	viper.SetDefault("UPLOAD_LOG_PATH", "storage/metadata.json")
	viper.SetDefault("PURGE_BATCH_SIZE", 50)
	viper.SetDefault("PURGE_BATCH_DELAY_MS", 100)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Host:           viper.GetString("SERVER_HOST"),
			Environment:    viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:    5 * time.Minute,
			WriteTimeout:   10 * time.Minute,
			MaxUploadBytes: viper.GetInt64("SERVER_MAX_UPLOAD_MB") << 20,
		},
		MongoDB: MongoDBConfig{
			URI:             viper.GetString("MONGODB_URI"),
			Database:        viper.GetString("MONGODB_DATABASE"),
			Collection:      viper.GetString("MONGODB_COLLECTION"),
			Timeout:         time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
			ConnectAttempts: viper.GetInt("MONGODB_CONNECT_ATTEMPTS"),
		},
		Redis: RedisConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetString("REDIS_PORT"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			UploadLogKey: viper.GetString("REDIS_UPLOAD_LOG_KEY"),
			LockTTL:      time.Duration(viper.GetInt("REDIS_LOCK_TTL")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Storage: StorageConfig{
			TempDir: viper.GetString("STORAGE_TEMP_DIR"),
		},
		Index: IndexConfig{
			Path:    viper.GetString("INDEX_PATH"),
			MaxHits: viper.GetInt("INDEX_MAX_HITS"),
		},
		Extract: ExtractConfig{
			PDFToTextBin:           viper.GetString("EXTRACT_PDFTOTEXT_BIN"),
			LibreOfficeBin:         viper.GetString("EXTRACT_LIBREOFFICE_BIN"),
			CommandTimeout:         time.Duration(viper.GetInt("EXTRACT_COMMAND_TIMEOUT")) * time.Second,
			SpreadsheetMemoryLimit: viper.GetInt64("EXTRACT_SPREADSHEET_MEMORY_MB") << 20,
		},
		Upload: UploadConfig{
			Workers: viper.GetInt("UPLOAD_WORKERS"),
			LogPath: viper.GetString("UPLOAD_LOG_PATH"),
		},
		Purge: PurgeConfig{
			BatchSize:  viper.GetInt("PURGE_BATCH_SIZE"),
			BatchDelay: time.Duration(viper.GetInt("PURGE_BATCH_DELAY_MS")) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis: viper.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	positives := map[string]int64{
		"INDEX_MAX_HITS":                int64(c.Index.MaxHits),
		"UPLOAD_WORKERS":                int64(c.Upload.Workers),
		"PURGE_BATCH_SIZE":              int64(c.Purge.BatchSize),
		"EXTRACT_SPREADSHEET_MEMORY_MB": c.Extract.SpreadsheetMemoryLimit,
		"EXTRACT_COMMAND_TIMEOUT":       int64(c.Extract.CommandTimeout),
	}
	for key, v := range positives {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive", key)
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	if c.Purge.BatchDelay < 0 {
		return fmt.Errorf("config: PURGE_BATCH_DELAY_MS must not be negative")
	}
	return nil
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return c.Redis.Host + ":" + c.Redis.Port
}
