package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/handlers"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/middleware"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/openapi"
	"github.com/bigkaa/goartstore/rtf-converter/internal/config"
	"github.com/bigkaa/goartstore/rtf-converter/internal/database"
	"github.com/bigkaa/goartstore/rtf-converter/internal/repository"
	"github.com/bigkaa/goartstore/rtf-converter/internal/server"
	"github.com/bigkaa/goartstore/rtf-converter/internal/service"
)

// serviceID — имя вершины графа зависимостей в topologymetrics.
const serviceID = "rtf-converter"

// app — собранные компоненты сервиса и функции их освобождения.
type app struct {
	server    *server.Server
	purge     *service.PurgeService
	dephealth *service.DephealthService
	logger    *slog.Logger
	closers   []func()

	// shutdownTimeout — ожидание текущего прогона очистки при остановке
	shutdownTimeout time.Duration
}

// newApp собирает сервис:
//  1. проверка встроенного OpenAPI-документа
//  2. миграции БД
//  3. хранилище (PostgreSQL или SQLite) и readiness-проверка
//  4. сервисы и HTTP-обработчики
//  5. очистка просроченных шаблонов по расписанию
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, shutdownTimeout: cfg.ShutdownTimeout}

	if _, err := openapi.Load(ctx); err != nil {
		return nil, err
	}

	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}

	repo, checker, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	templates := service.NewTemplateService(repo, logger)
	converter := service.NewConvertService(logger)
	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(checker),
		templates,
		converter,
		cfg.MaxUploadSize,
		logger,
	)

	a.server = server.New(cfg, logger, apiHandler,
		middleware.Recoverer(logger),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger, "/healthcheck", "/health/live", "/health/ready", "/metrics"),
	)

	if cfg.PurgeSchedule != "" {
		a.purge = service.NewPurgeService(repo, cfg.PurgeSchedule, logger)
	}

	return a, nil
}

// openStorage подключает хранилище выбранного драйвера.
func (a *app) openStorage(ctx context.Context, cfg *config.Config) (repository.FileRepository, handlers.ReadinessChecker, error) {
	if cfg.DBDriver == config.DriverSQLite {
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		return repository.NewSQLiteFileRepository(db), database.NewSQLiteReadinessChecker(db), nil
	}

	pool, err := database.Connect(ctx, cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, pool.Close)

	a.startDephealth(ctx, cfg, pool)

	return repository.NewFileRepository(pool), database.NewReadinessChecker(pool), nil
}

// startDephealth запускает topologymetrics поверх пула соединений.
// Ошибка мониторинга не мешает запуску сервиса.
func (a *app) startDephealth(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) {
	// Проверка идёт через тот же пул, поэтому видит его исчерпание
	pgDB := stdlib.OpenDBFromPool(pool)
	a.closers = append(a.closers, func() { _ = pgDB.Close() })

	dh, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID: serviceID,
		Group:     cfg.DephealthGroup,
		DB:        pgDB,
		URL:       cfg.DatabaseURL(),
		Interval:  cfg.DephealthCheckInterval,
	}, a.logger)
	if err != nil {
		a.logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return
	}
	if err := dh.Start(ctx); err != nil {
		a.logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return
	}
	a.dephealth = dh
}

// Run запускает фоновые задачи и HTTP-сервер до отмены ctx.
func (a *app) Run(ctx context.Context) error {
	if a.purge != nil {
		if err := a.purge.Start(); err != nil {
			return fmt.Errorf("ошибка запуска очистки: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()
			a.purge.Stop(stopCtx)
		}()
	}
	return a.server.Run(ctx)
}

// Close освобождает ресурсы в обратном порядке открытия.
func (a *app) Close() {
	if a.dephealth != nil {
		a.dephealth.Stop()
		a.dephealth = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
