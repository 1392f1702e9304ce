package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Drive    DriveConfig
	Gemini   GeminiConfig
	Limits   LimitsConfig
	Workers  WorkersConfig
}

type AppConfig struct {
	Name string
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL      string // Full DSN; overrides the individual fields when set
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type DriveConfig struct {
	APIKey string // Service key for public-folder access
}

type GeminiConfig struct {
	APIKey       string
	Model        string // Captioning model (e.g. gemini-2.0-flash)
	EmbedModel   string // Embedding model (e.g. text-embedding-004)
	EmbeddingDim int    // Vector dimension; must match the vector column
}

type LimitsConfig struct {
	MaxImagesPerFolder  int // 0 = unlimited
	CaptionRateMax      int
	CaptionRateWindowMs int
	CaptionBurstMax     int
	CaptionBurstWindowMs int
	DriveRateMax        int
	DriveRateWindowMs   int
}

type WorkersConfig struct {
	ImageConcurrency  int
	FolderConcurrency int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists (optional for production)
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	config := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "v0-drive"),
			Port: getEnv("APP_PORT", "3000"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "v0drive"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Drive: DriveConfig{
			APIKey: getEnv("GOOGLE_DRIVE_API_KEY", ""),
		},
		Gemini: GeminiConfig{
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			EmbedModel:   getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
			EmbeddingDim: getEnvInt("EMBEDDING_DIM", 768),
		},
		Limits: LimitsConfig{
			MaxImagesPerFolder:   getEnvInt("MAX_IMAGES_PER_FOLDER", 0),
			CaptionRateMax:       getEnvInt("CAPTION_RATE_MAX", 15),
			CaptionRateWindowMs:  getEnvInt("CAPTION_RATE_WINDOW_MS", 60000),
			CaptionBurstMax:      getEnvInt("CAPTION_BURST_MAX", 5),
			CaptionBurstWindowMs: getEnvInt("CAPTION_BURST_WINDOW_MS", 1000),
			DriveRateMax:         getEnvInt("DRIVE_RATE_MAX", 10000),
			DriveRateWindowMs:    getEnvInt("DRIVE_RATE_WINDOW_MS", 60000),
		},
		Workers: WorkersConfig{
			ImageConcurrency:  getEnvInt("IMAGE_WORKER_CONCURRENCY", 5),
			FolderConcurrency: getEnvInt("FOLDER_WORKER_CONCURRENCY", 5),
		},
	}

	return config, nil
}

// Validate checks the required keys are present.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Gemini.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	return nil
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
