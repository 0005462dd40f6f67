// Пакет config — загрузка и валидация конфигурации filehub
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации filehub.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// DSN хранилища метаданных: postgres://, mongodb:// или memory://
	DatabaseURL string
	// Директория загруженных файлов
	UploadDir string
	// Директория журнала загрузок
	JournalDir string
	// Базовый URL File API для UI-клиента
	APIURL string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера. ReadTimeout и WriteTimeout покрывают тело
	// запроса целиком, поэтому по умолчанию выключены (0)
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Размер LRU-кэша метаданных (0 — кэш выключен)
	CacheSize int
	// TTL записей кэша
	CacheTTL time.Duration

	// Разрешённые CORS origins
	CORSOrigins []string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FH_PORT — порт HTTP-сервера (по умолчанию 8000)
	port, err := getEnvInt("FH_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("FH_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FH_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FH_DATABASE_URL — обязательный. Без хранилища метаданных сервис не стартует.
	cfg.DatabaseURL, err = getEnvRequired("FH_DATABASE_URL")
	if err != nil {
		return nil, err
	}
	if err := validateDatabaseURL(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("FH_DATABASE_URL: %w", err)
	}

	// FH_UPLOAD_DIR — директория загрузок (по умолчанию ./uploads)
	cfg.UploadDir = getEnvDefault("FH_UPLOAD_DIR", "./uploads")

	// FH_JOURNAL_DIR — директория журнала (по умолчанию {FH_UPLOAD_DIR}/.journal)
	cfg.JournalDir = getEnvDefault("FH_JOURNAL_DIR", filepath.Join(cfg.UploadDir, ".journal"))

	// FH_API_URL — базовый URL File API для UI
	cfg.APIURL = strings.TrimRight(getEnvDefault("FH_API_URL", "http://localhost:8000/api"), "/")
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("FH_API_URL: некорректный URL %q", cfg.APIURL)
	}

	// FH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FH_LOG_LEVEL: %w", err)
	}

	// FH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// Таймауты HTTP-сервера. Загрузка 10 MiB по медленному каналу
	// не должна обрываться, ограничивается только чтение заголовков.
	if cfg.ReadHeaderTimeout, err = getEnvDuration("FH_HTTP_READ_HEADER_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("FH_HTTP_READ_HEADER_TIMEOUT: %w", err)
	}
	if cfg.ReadTimeout, err = getEnvDuration("FH_HTTP_READ_TIMEOUT", 0); err != nil {
		return nil, fmt.Errorf("FH_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getEnvDuration("FH_HTTP_WRITE_TIMEOUT", 0); err != nil {
		return nil, fmt.Errorf("FH_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getEnvDuration("FH_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("FH_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// FH_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_SHUTDOWN_TIMEOUT: %w", err)
	}

	// FH_CACHE_SIZE — размер кэша метаданных (по умолчанию 1000, 0 — выключен)
	cfg.CacheSize, err = getEnvInt("FH_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FH_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("FH_CACHE_SIZE: значение не может быть отрицательным")
	}

	// FH_CACHE_TTL — TTL записей кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("FH_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FH_CACHE_TTL: %w", err)
	}

	// FH_CORS_ORIGINS — список origins через запятую (по умолчанию *)
	cfg.CORSOrigins = splitList(getEnvDefault("FH_CORS_ORIGINS", "*"))

	// FH_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FH_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FH_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// FH_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("FH_DEPHEALTH_GROUP", "filehub")

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// validateDatabaseURL проверяет схему DSN.
func validateDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "mongodb", "mongodb+srv", "memory":
		return nil
	default:
		return fmt.Errorf("неподдерживаемая схема %q, допустимые: postgres, mongodb, memory", u.Scheme)
	}
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// splitList разбивает строку по запятым, отбрасывая пустые элементы.
func splitList(val string) []string {
	var result []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
