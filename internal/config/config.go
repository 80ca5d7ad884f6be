package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
)

// Config - настройки сервера комментариев и клиентского движка.
type Config struct {
	Port           string
	Storage        string
	DatabaseURL    string
	ServerURL      string
	LogLevel       string
	RequestTimeout time.Duration
	PageSize       int
	ReplyPageSize  int
}

// Validate проверяет согласованность настроек хранилища.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageInMemory:
		return nil
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
		return nil
	}
	return fmt.Errorf("unknown storage %q: must be %s or %s", c.Storage, StorageInMemory, StoragePostgres)
}

// Load читает конфигурацию из окружения, подставляя значения по умолчанию.
func Load() Config {
	return Config{
		Port:           getenv("PORT", "8080"),
		Storage:        getenv("STORAGE", StorageInMemory),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		ServerURL:      getenv("COMMENTS_SERVER_URL", "http://localhost:8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		RequestTimeout: time.Duration(getenvInt("REQUEST_TIMEOUT_MS", 10000)) * time.Millisecond,
		PageSize:       getenvInt("PAGE_SIZE", 20),
		ReplyPageSize:  getenvInt("REPLY_PAGE_SIZE", 10),
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
