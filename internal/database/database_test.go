package database

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/rtf-converter/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestMigrateSQLite проверяет миграции и готовность на временном файле SQLite.
func TestMigrateSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtf.db")
	cfg := &config.Config{DBDriver: config.DriverSQLite, SQLitePath: path}
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}
	// Повторный запуск — ErrNoChange, не ошибка
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate() ошибка: %v", err)
	}

	db, err := OpenSQLite(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("OpenSQLite() ошибка: %v", err)
	}
	defer db.Close()

	var count int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'files'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("ошибка проверки таблицы: %v", err)
	}
	if count != 1 {
		t.Errorf("таблица files не создана")
	}

	status, msg := NewSQLiteReadinessChecker(db).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидался ok", status, msg)
	}

	db.Close()
	status, _ = NewSQLiteReadinessChecker(db).CheckReady()
	if status != "fail" {
		t.Errorf("CheckReady() после Close = %q, ожидался fail", status)
	}
}

// TestSQLiteDSN проверяет экранирование пути в URI-строке SQLite.
func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/rtf.db", "file:/tmp/rtf.db?_busy_timeout=5000&_journal_mode=WAL"},
		{"data/rtf.db", "file:data/rtf.db?_busy_timeout=5000&_journal_mode=WAL"},
		{"/tmp/a?b#c%d.db", "file:/tmp/a%3Fb%23c%25d.db?_busy_timeout=5000&_journal_mode=WAL"},
	}
	for _, tt := range tests {
		if got := SQLiteDSN(tt.path); got != tt.want {
			t.Errorf("SQLiteDSN(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

// TestMigrateSQLite_SpecialPath проверяет, что '?' и '#' в пути
// не превращаются в параметры и файл создаётся под своим именем.
func TestMigrateSQLite_SpecialPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtf?mode=ro#1.db")
	logger := testLogger()

	if err := MigrateSQLite(path, logger); err != nil {
		t.Fatalf("MigrateSQLite() ошибка: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("файл базы не создан по пути %q: %v", path, err)
	}

	db, err := OpenSQLite(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("OpenSQLite() ошибка: %v", err)
	}
	defer db.Close()

	var count int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'files'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("ошибка проверки таблицы: %v", err)
	}
	if count != 1 {
		t.Error("таблица files не найдена в файле с экранированным именем")
	}
}

// TestMigrateURL_UnknownDriver проверяет ошибку для неизвестного каталога миграций.
func TestMigrateURL_UnknownDriver(t *testing.T) {
	if err := MigrateURL("mysql", "mysql://localhost/rtf", testLogger()); err == nil {
		t.Error("MigrateURL должен вернуть ошибку для неизвестного драйвера")
	}
}

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("rtf_test"),
		postgres.WithUsername("rtf"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	return &config.Config{
		DBDriver:   config.DriverPostgres,
		DBHost:     host,
		DBPort:     port.Int(),
		DBName:     "rtf_test",
		DBUser:     "rtf",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
		DBMaxConns: 5,
	}
}

// TestConnectAndMigratePostgres проверяет подключение, миграции и готовность.
func TestConnectAndMigratePostgres(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() ошибка: %v", err)
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() ошибка: %v", err)
	}
	defer pool.Close()

	if got := pool.Config().MaxConns; got != 5 {
		t.Errorf("MaxConns = %d, ожидалось 5", got)
	}

	var exists bool
	err = pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'files')",
	).Scan(&exists)
	if err != nil {
		t.Fatalf("ошибка проверки таблицы: %v", err)
	}
	if !exists {
		t.Error("таблица files не создана")
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %q (%s), ожидался ok", status, msg)
	}
}
