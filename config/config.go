package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config carries everything the server reads from the environment.
type Config struct {
	Addr           string
	DatabaseDSN    string
	JWTSecret      string
	UploadDir      string
	UploadMaxBytes int64
	BaseURL        string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:           getEnv("ADDR", ":8082"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		JWTSecret:      getEnv("JWT_SECRET", "medilink-dev-secret"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		UploadMaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", 10<<20),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8082"),
	}
}

// OpenDB connects to MySQL when a DSN is configured. Without one it falls
// back to a local sqlite file so the server can run standalone.
func OpenDB(cfg Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		log.Println("DATABASE_DSN not set, using local sqlite database medilink.db")
		return gorm.Open(sqlite.Open("medilink.db"), &gorm.Config{})
	}
	return gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
