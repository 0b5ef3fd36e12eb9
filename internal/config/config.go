// Пакет config — загрузка и валидация конфигурации сервера
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// DefaultAllowedExtensions — расширения, разрешённые к загрузке
// по умолчанию.
var DefaultAllowedExtensions = []string{
	"txt", "md", "pdf", "doc", "docx", "xls", "xlsx", "csv", "json",
	"png", "jpg", "jpeg", "gif", "webp", "svg",
	"mp3", "wav", "mp4", "avi", "mkv",
	"zip", "tar", "gz",
}

// Config содержит все параметры конфигурации сервера.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения файлов
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Разрешённые расширения файлов (нижний регистр, без точки)
	AllowedExtensions map[string]struct{}
	// Срок восстановления файлов из корзины
	TrashRetention time.Duration
	// Размер LRU-кэша предпросмотров
	PreviewCacheSize int
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// LS_PORT — порт HTTP-сервера (по умолчанию 8000)
	port, err := getEnvInt("LS_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("LS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("LS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// LS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("LS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// LS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 500 MiB)
	maxFileSize, err := getEnvInt64("LS_MAX_FILE_SIZE", 500*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// LS_ALLOWED_EXTENSIONS — список расширений через запятую
	cfg.AllowedExtensions = parseExtensions(getEnvDefault("LS_ALLOWED_EXTENSIONS", ""))

	// LS_TRASH_RETENTION — срок восстановления из корзины (по умолчанию 24h)
	cfg.TrashRetention, err = getEnvDuration("LS_TRASH_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LS_TRASH_RETENTION: %w", err)
	}
	if cfg.TrashRetention <= 0 {
		return nil, fmt.Errorf("LS_TRASH_RETENTION: значение должно быть положительным")
	}

	// LS_PREVIEW_CACHE_SIZE — размер кэша предпросмотров (по умолчанию 128)
	previewCacheSize, err := getEnvInt("LS_PREVIEW_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("LS_PREVIEW_CACHE_SIZE: %w", err)
	}
	if previewCacheSize < 1 {
		return nil, fmt.Errorf("LS_PREVIEW_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.PreviewCacheSize = previewCacheSize

	// LS_TLS_CERT / LS_TLS_KEY — опциональны, но только парой
	cfg.TLSCert = getEnvDefault("LS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("LS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("LS_TLS_CERT и LS_TLS_KEY должны быть заданы вместе")
	}

	// LS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LS_LOG_LEVEL: %w", err)
	}

	// LS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// LS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("LS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// ExtensionAllowed проверяет, разрешено ли расширение имени файла.
func (c *Config) ExtensionAllowed(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	_, ok := c.AllowedExtensions[ext]
	return ok
}

// parseExtensions разбирает список расширений через запятую.
// Пустая строка — набор по умолчанию.
func parseExtensions(raw string) map[string]struct{} {
	exts := DefaultAllowedExtensions
	if raw != "" {
		exts = strings.Split(raw, ",")
	}

	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
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

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 24h)", val)
	}
	return d, nil
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
