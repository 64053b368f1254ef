// Пакет database — подключение к хранилищу (PostgreSQL через pgxpool
// или SQLite через database/sql), применение миграций (golang-migrate)
// и проверка готовности.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bigkaa/goartstore/rtf-converter/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Connect создаёт пул подключений к PostgreSQL.
// Размер пула ограничен cfg.DBMaxConns; при исчерпании вызывающие ждут соединения.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(cfg.DBMaxConns)),
	)

	return pool, nil
}

// SQLiteDSN возвращает URI-строку открытия файла SQLite.
// Путь экранируется: '?', '#' и '%' в имени файла не ломают параметры.
func SQLiteDSN(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return "file:" + escaped + "?_busy_timeout=5000&_journal_mode=WAL"
}

// OpenSQLite открывает файл SQLite.
// Одно соединение на запись: SQLite сериализует транзакции на уровне файла.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}

	logger.Info("База SQLite открыта", slog.String("path", path))
	return db, nil
}

// Migrate применяет SQL-миграции драйвера cfg.DBDriver из embedded FS.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	if cfg.DBDriver == config.DriverSQLite {
		return MigrateSQLite(cfg.SQLitePath, logger)
	}
	return MigrateURL(cfg.DBDriver, cfg.MigrationURL(), logger)
}

// MigrateURL применяет миграции драйвера к базе по URL golang-migrate.
func MigrateURL(driver, dbURL string, logger *slog.Logger) error {
	src, err := migrationSource(driver)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	return runMigrations(m, driver, logger)
}

// MigrateSQLite применяет миграции к файлу SQLite.
// Файл открывается той же строкой, что и в OpenSQLite, без URL golang-migrate.
func MigrateSQLite(path string, logger *slog.Logger) error {
	src, err := migrationSource(config.DriverSQLite)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	// Close драйвера миграций закрывает и db
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	return runMigrations(m, config.DriverSQLite, logger)
}

func migrationSource(driver string) (source.Driver, error) {
	dir := "migrations/" + driver
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания источника миграций %s: %w", dir, err)
	}
	return src, nil
}

func runMigrations(m *migrate.Migrate, driver string, logger *slog.Logger) error {
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.String("driver", driver),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// ReadinessChecker — проверка готовности хранилища для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{name: "PostgreSQL", ping: pool.Ping}
}

// NewSQLiteReadinessChecker создаёт проверку готовности SQLite.
func NewSQLiteReadinessChecker(db *sql.DB) *ReadinessChecker {
	return &ReadinessChecker{name: "SQLite", ping: db.PingContext}
}

// CheckReady проверяет подключение через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "fail", fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return "ok", "подключение активно"
}
