// Пакет config — загрузка и валидация конфигурации rtf-converter
// из переменных окружения (и файла .env, если он есть).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// PurgeDisabled — значение RC_PURGE_SCHEDULE, отключающее очистку.
const PurgeDisabled = "off"

// Config содержит все параметры конфигурации rtf-converter.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Максимальный размер тела multipart-запроса в байтах
	MaxUploadSize int64

	// --- Хранилище ---

	// Драйвер: postgres или sqlite
	DBDriver   string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимум соединений в пуле PostgreSQL
	DBMaxConns int32
	// Путь к файлу SQLite (для драйвера sqlite)
	SQLitePath string

	// --- Фоновые задачи ---

	// Расписание очистки просроченных шаблонов (cron), пустое — отключено
	PurgeSchedule string
	// Группа и интервал проверки зависимостей topologymetrics
	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// environ — сырые значения переменных окружения.
// Длительности и размеры разбираются отдельно, чтобы ошибки называли переменную.
type environ struct {
	Port                   int    `env:"RC_PORT,default=8040"`
	LogLevel               string `env:"RC_LOG_LEVEL,default=info"`
	LogFormat              string `env:"RC_LOG_FORMAT,default=json"`
	ReadTimeout            string `env:"RC_HTTP_READ_TIMEOUT,default=30s"`
	WriteTimeout           string `env:"RC_HTTP_WRITE_TIMEOUT,default=60s"`
	IdleTimeout            string `env:"RC_HTTP_IDLE_TIMEOUT,default=120s"`
	ShutdownTimeout        string `env:"RC_SHUTDOWN_TIMEOUT,default=10s"`
	MaxUploadSize          string `env:"RC_MAX_UPLOAD_SIZE,default=32MiB"`
	DBDriver               string `env:"RC_DB_DRIVER,default=postgres"`
	DBHost                 string `env:"RC_DB_HOST"`
	DBPort                 int    `env:"RC_DB_PORT,default=5432"`
	DBName                 string `env:"RC_DB_NAME"`
	DBUser                 string `env:"RC_DB_USER"`
	DBPassword             string `env:"RC_DB_PASSWORD"`
	DBSSLMode              string `env:"RC_DB_SSL_MODE,default=disable"`
	DBMaxConns             int    `env:"RC_DB_MAX_CONNS,default=50"`
	SQLitePath             string `env:"RC_SQLITE_PATH,default=rtf-converter.db"`
	PurgeSchedule          string `env:"RC_PURGE_SCHEDULE,default=@every 1h"`
	DephealthGroup         string `env:"RC_DEPHEALTH_GROUP,default=rtf-converter"`
	DephealthCheckInterval string `env:"RC_DEPHEALTH_CHECK_INTERVAL,default=15s"`
}

// Load загружает конфигурацию: сначала .env (если файл есть), затем
// переменные окружения RC_*. Валидирует значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	// Переменные окружения имеют приоритет над .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ошибка чтения .env: %w", err)
	}

	var raw environ
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора переменных окружения: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port = raw.Port
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(raw.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("RC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = raw.LogFormat
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.ReadTimeout, err = parseDuration("RC_HTTP_READ_TIMEOUT", raw.ReadTimeout); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = parseDuration("RC_HTTP_WRITE_TIMEOUT", raw.WriteTimeout); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = parseDuration("RC_HTTP_IDLE_TIMEOUT", raw.IdleTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("RC_SHUTDOWN_TIMEOUT", raw.ShutdownTimeout); err != nil {
		return nil, err
	}

	// RC_MAX_UPLOAD_SIZE — человекочитаемый размер: 32MiB, 10MB, 1048576
	size, err := humanize.ParseBytes(raw.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("RC_MAX_UPLOAD_SIZE: некорректный размер %q", raw.MaxUploadSize)
	}
	if size == 0 || size > 1<<40 {
		return nil, fmt.Errorf("RC_MAX_UPLOAD_SIZE: значение %s вне допустимого диапазона", humanize.IBytes(size))
	}
	cfg.MaxUploadSize = int64(size)

	// --- Хранилище ---

	cfg.DBDriver = strings.ToLower(raw.DBDriver)
	switch cfg.DBDriver {
	case DriverPostgres:
		if err := loadPostgres(cfg, &raw); err != nil {
			return nil, err
		}
	case DriverSQLite:
		cfg.SQLitePath = raw.SQLitePath
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("RC_SQLITE_PATH: путь к файлу базы не задан")
		}
	default:
		return nil, fmt.Errorf("RC_DB_DRIVER: недопустимое значение %q, допустимые: postgres, sqlite", raw.DBDriver)
	}

	// --- Фоновые задачи ---

	cfg.PurgeSchedule = strings.TrimSpace(raw.PurgeSchedule)
	if strings.EqualFold(cfg.PurgeSchedule, PurgeDisabled) {
		cfg.PurgeSchedule = ""
	}
	if cfg.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PurgeSchedule); err != nil {
			return nil, fmt.Errorf("RC_PURGE_SCHEDULE: некорректное расписание %q: %w", cfg.PurgeSchedule, err)
		}
	}

	cfg.DephealthGroup = raw.DephealthGroup
	if cfg.DephealthCheckInterval, err = parseDuration("RC_DEPHEALTH_CHECK_INTERVAL", raw.DephealthCheckInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadPostgres проверяет параметры подключения к PostgreSQL.
func loadPostgres(cfg *Config, raw *environ) error {
	required := []struct {
		key string
		val string
		dst *string
	}{
		{"RC_DB_HOST", raw.DBHost, &cfg.DBHost},
		{"RC_DB_NAME", raw.DBName, &cfg.DBName},
		{"RC_DB_USER", raw.DBUser, &cfg.DBUser},
		{"RC_DB_PASSWORD", raw.DBPassword, &cfg.DBPassword},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("%s: обязательная переменная окружения не задана", r.key)
		}
		*r.dst = r.val
	}

	cfg.DBPort = raw.DBPort
	if cfg.DBPort < 1 || cfg.DBPort > 65535 {
		return fmt.Errorf("RC_DB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.DBPort)
	}

	cfg.DBSSLMode = raw.DBSSLMode
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("RC_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	if raw.DBMaxConns < 1 || raw.DBMaxConns > 1000 {
		return fmt.Errorf("RC_DB_MAX_CONNS: значение %d вне допустимого диапазона 1-1000", raw.DBMaxConns)
	}
	cfg.DBMaxConns = int32(raw.DBMaxConns)
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrationURL возвращает URL PostgreSQL в формате golang-migrate (pgx5://).
// SQLite мигрирует по пути файла, без URL.
func (c *Config) MigrationURL() string {
	return c.postgresURL("pgx5")
}

// DatabaseURL возвращает postgres:// URL (лейблы метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return c.postgresURL("postgres")
}

func (c *Config) postgresURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// Формат text — цветной вывод tint для локальной разработки.
func SetupLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.DateTime,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// parseDuration разбирает длительность в формате Go.
func parseDuration(key, val string) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", key, val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: длительность должна быть положительной, получено %s", key, d)
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
