// Пакет config — загрузка и валидация конфигурации Media Server
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "1.0.0"

// Config содержит все параметры конфигурации Media Server.
// Структура неизменяема после Load: обработчики получают её при
// создании и не модифицируют.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения медиафайлов
	MediaDir string
	// Базовый URL для публичных ссылок на файлы (опционально).
	// Пустое значение — URL строится из адреса входящего запроса.
	PublicBaseURL string
	// Требовать подписанный токен для операций записи (upload, delete)
	RequireAuthForWrites bool
	// Общий секрет для HMAC-подписи токенов.
	// Обязателен, если RequireAuthForWrites = true.
	TokenSecret string
	// Окно действия токена с момента его выпуска
	TokenExpiry time.Duration
	// Лимит операций записи на клиента в минуту (0 — без лимита)
	RateLimitPerMinute int
	// Разрешённые CORS origin'ы
	CORSAllowedOrigins []string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Файл .env, если он есть в рабочей директории, подхватывается
// до чтения переменных; его отсутствие не является ошибкой.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// MS_PORT — порт HTTP-сервера (по умолчанию 8000)
	port, err := getEnvInt("MS_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("MS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("MS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// MS_MEDIA_DIR — директория хранения (по умолчанию "media")
	cfg.MediaDir = getEnvDefault("MS_MEDIA_DIR", "media")

	// MS_PUBLIC_BASE_URL — базовый URL для ссылок (опционально)
	cfg.PublicBaseURL = strings.TrimRight(getEnvDefault("MS_PUBLIC_BASE_URL", ""), "/")
	if cfg.PublicBaseURL != "" {
		u, parseErr := url.Parse(cfg.PublicBaseURL)
		if parseErr != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("MS_PUBLIC_BASE_URL: некорректный абсолютный URL: %q", cfg.PublicBaseURL)
		}
	}

	// MS_REQUIRE_AUTH_FOR_WRITES — требовать токен для записи (по умолчанию true)
	cfg.RequireAuthForWrites, err = getEnvBool("MS_REQUIRE_AUTH_FOR_WRITES", true)
	if err != nil {
		return nil, fmt.Errorf("MS_REQUIRE_AUTH_FOR_WRITES: %w", err)
	}

	// MS_TOKEN_SECRET — общий секрет HMAC.
	// Обязателен при включённой аутентификации: сервис не стартует без него.
	if cfg.RequireAuthForWrites {
		cfg.TokenSecret, err = getEnvRequired("MS_TOKEN_SECRET")
		if err != nil {
			return nil, err
		}
	} else {
		cfg.TokenSecret = getEnvDefault("MS_TOKEN_SECRET", "")
	}

	// MS_TOKEN_EXPIRY — окно действия токена (по умолчанию 15m = 900s)
	cfg.TokenExpiry, err = getEnvDuration("MS_TOKEN_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MS_TOKEN_EXPIRY: %w", err)
	}
	if cfg.TokenExpiry <= 0 {
		return nil, fmt.Errorf("MS_TOKEN_EXPIRY: значение должно быть положительным, получено %v", cfg.TokenExpiry)
	}

	// MS_RATE_LIMIT_PER_MINUTE — лимит операций записи на клиента (0 — выключен)
	cfg.RateLimitPerMinute, err = getEnvInt("MS_RATE_LIMIT_PER_MINUTE", 0)
	if err != nil {
		return nil, fmt.Errorf("MS_RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("MS_RATE_LIMIT_PER_MINUTE: значение не может быть отрицательным, получено %d", cfg.RateLimitPerMinute)
	}

	// MS_CORS_ALLOWED_ORIGINS — список origin'ов через запятую (по умолчанию "*")
	cfg.CORSAllowedOrigins = splitAndTrim(getEnvDefault("MS_CORS_ALLOWED_ORIGINS", "*"))
	if len(cfg.CORSAllowedOrigins) == 0 {
		return nil, fmt.Errorf("MS_CORS_ALLOWED_ORIGINS: список origin'ов пуст")
	}

	// MS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MS_LOG_LEVEL: %w", err)
	}

	// MS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MS_HTTP_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvPositiveDuration("MS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	// MS_HTTP_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvPositiveDuration("MS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// MS_HTTP_IDLE_TIMEOUT — таймаут keep-alive соединений (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvPositiveDuration("MS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}

	// MS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 30s)
	cfg.ShutdownTimeout, err = getEnvPositiveDuration("MS_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

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

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
// Принимаются значения strconv.ParseBool: 1, 0, t, f, true, false и т.д.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 15m, 1h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — как getEnvDuration, но значение должно быть строго положительным.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %v", key, d)
	}
	return d, nil
}

// splitAndTrim разбивает строку по запятым и убирает пробелы вокруг элементов.
// Пустые элементы отбрасываются.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
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
