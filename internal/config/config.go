package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"expdash/internal/engine"
	"expdash/internal/records"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Records records.Config
	Engine  engine.Config

	ListenAddr   string
	DashboardURL string

	DataPath string
	LogDir   string
	CacheDir string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for deployed binaries)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")

	// Ensure directories exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	delayMillis, _ := strconv.Atoi(getEnv("RECORDS_REQUEST_DELAY_MS", "200"))
	engineTimeout, _ := strconv.Atoi(getEnv("ENGINE_TIMEOUT_SECONDS", "90"))

	listen := getEnv("LISTEN_ADDR", ":8080")
	dashURL := getEnv("DASHBOARD_URL", "http://localhost"+listen)

	cfg := &AppConfig{
		Records: records.Config{
			BaseURL:      getEnv("RECORDS_URL", ""),
			APIKey:       getEnv("RECORDS_API_KEY", ""),
			Workspace:    getEnv("RECORDS_WORKSPACE", ""),
			RequestDelay: time.Duration(delayMillis) * time.Millisecond,
		},
		Engine: engine.Config{
			BaseURL: getEnv("ENGINE_URL", ""),
			Token:   getEnv("ENGINE_TOKEN", ""),
			Timeout: time.Duration(engineTimeout) * time.Second,
		},
		ListenAddr:   listen,
		DashboardURL: dashURL,
		DataPath:     dataPath,
		LogDir:       logDir,
		CacheDir:     cacheDir,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
