// dephealth.go — состояние PostgreSQL в метриках topologymetrics.
//
// Проверка идёт через *sql.DB поверх того же pgxpool, который обслуживает
// запросы к шаблонам: исчерпание пула видно как деградация зависимости.
// В профиле SQLite мониторинг не создаётся.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// storageDependency — имя хранилища шаблонов в лейблах app_dependency_*.
const storageDependency = "postgresql"

// DephealthConfig — параметры мониторинга хранилища шаблонов.
type DephealthConfig struct {
	// ServiceID и Group — вершина графа зависимостей ([a-z][a-z0-9-]*)
	ServiceID string
	Group     string
	DB        *sql.DB
	// URL нужен только для лейблов host/port, подключение идёт через DB
	URL      string
	Interval time.Duration
	// Registerer — nil означает глобальный registry (/metrics)
	Registerer prometheus.Registerer
}

// DephealthService — периодическая проверка хранилища шаблонов.
type DephealthService struct {
	dh       *dephealth.DepHealth
	interval time.Duration
	logger   *slog.Logger
}

// NewDephealthService регистрирует хранилище как критичную зависимость.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency(storageDependency, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.URL),
			dephealth.CheckInterval(cfg.Interval),
			dephealth.Critical(true),
		),
	}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка настройки мониторинга хранилища: %w", err)
	}

	return &DephealthService{
		dh:       dh,
		interval: cfg.Interval,
		logger:   logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает проверки; они идут до Stop или отмены ctx.
func (ds *DephealthService) Start(ctx context.Context) error {
	if err := ds.dh.Start(ctx); err != nil {
		return err
	}
	ds.logger.Info("Проверка хранилища шаблонов запущена",
		slog.String("dependency", storageDependency),
		slog.String("interval", ds.interval.String()),
	)
	return nil
}

// Stop останавливает проверки и ждёт их завершения.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Проверка хранилища шаблонов остановлена")
}
