package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ListenAddr string

	// External tools used by the downloader.
	YtDlpPath  string
	FFmpegPath string
	MP3Bitrate string // e.g., "320k"

	// DataDir is the base directory for everything the server persists:
	// downloaded playlists, the artifact cache and upstream credentials.
	DataDir        string
	CacheDir       string // DataDir/_cache unless overridden
	CredentialFile string // DataDir/userdata/browser.json unless overridden

	// Artifact cache tuning.
	CacheCapacityBytes int64
	CacheRetentionDays int
	EvictionInterval   time.Duration
	FetchTimeout       time.Duration

	// Upstream YouTube Music API.
	YTMusicBaseURL string
	UpstreamRPS    float64 // request budget per second against the upstream API

	// JWT secret for app-level accounts. AuthRequired puts the library,
	// local-file and cache-admin endpoints behind account tokens.
	JWTSecret    string
	AuthRequired bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Optional S3-compatible mirror for server-side playlist downloads.
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogLevel  string
	LogPath   string
	LogMaxMB  int
	LogMaxAge int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		YtDlpPath:  getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),
		MP3Bitrate: getEnv("MP3_BITRATE", "320k"),

		DataDir:        dataDir,
		CacheDir:       getEnv("CACHE_DIR", filepath.Join(dataDir, "_cache")),
		CredentialFile: getEnv("CREDENTIAL_FILE", filepath.Join(dataDir, "userdata", "browser.json")),

		CacheCapacityBytes: getEnvInt64("CACHE_CAPACITY_BYTES", 2<<30), // 2 GiB
		CacheRetentionDays: getEnvInt("CACHE_RETENTION_DAYS", 10),
		EvictionInterval:   getEnvDuration("CACHE_EVICTION_INTERVAL", 5*time.Minute),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 5*time.Minute),

		YTMusicBaseURL: getEnv("YTMUSIC_BASE_URL", "https://music.youtube.com"),
		UpstreamRPS:    getEnvFloat("UPSTREAM_RPS", 5),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "echofm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "echofm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPath:   getEnv("LOG_PATH", ""),
		LogMaxMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxAge: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}
