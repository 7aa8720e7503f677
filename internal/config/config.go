package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Host string
	Env  string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPath     string

	// Storage configuration
	StorageBackend string // "disk", "memory", "s3"
	StorageRoot    string // Root directory for the disk backend
	S3Endpoint     string // Custom endpoint for S3-compatible services
	S3Region       string
	S3Bucket       string // S3 bucket name (required for s3 backend)
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool // Use path-style addressing (required for MinIO/rustfs)

	SessionSecret   string
	SessionDuration string
	BcryptCost      int
	CSRFEnabled     bool

	EnableRegistration bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Host:               getEnv("HOST", "0.0.0.0"),
		Env:                getEnv("ENV", "development"),
		DBType:             getEnv("DB_TYPE", "sqlite"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBName:             getEnv("DB_NAME", "stash"),
		DBUser:             getEnv("DB_USER", "stash"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBPath:             getEnv("DB_PATH", "./data/stash.db"),
		StorageBackend:     getEnv("STORAGE_BACKEND", "disk"),
		StorageRoot:        getEnv("STORAGE_ROOT", "./data/files"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle:     getEnvBool("S3_USE_PATH_STYLE", false),
		SessionSecret:      getEnv("SESSION_SECRET", "change_me_in_production"),
		SessionDuration:    getEnv("SESSION_DURATION", "168h"),
		BcryptCost:         getEnvInt("BCRYPT_COST", 10),
		CSRFEnabled:        getEnvBool("CSRF_ENABLED", true),
		EnableRegistration: getEnvBool("ENABLE_REGISTRATION", true),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
