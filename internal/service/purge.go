// purge.go — фоновая очистка шаблонов с истёкшим сроком хранения.
//
// Запускается по cron-расписанию (RC_PURGE_SCHEDULE) и удаляет
// записи с max_age <= now одним запросом к хранилищу.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/bigkaa/goartstore/rtf-converter/internal/repository"
)

// Prometheus метрики очистки
var (
	// purgeRunsTotal — количество запусков очистки.
	purgeRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_purge_runs_total",
		Help: "Общее количество запусков очистки просроченных шаблонов",
	})

	// purgeFilesDeletedTotal — количество удалённых шаблонов.
	purgeFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_purge_files_deleted_total",
		Help: "Общее количество шаблонов, удалённых по истечении срока",
	})

	// purgeErrorsTotal — количество неудачных запусков.
	purgeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_purge_errors_total",
		Help: "Количество запусков очистки, завершившихся ошибкой",
	})

	// purgeDurationSeconds — длительность очистки.
	purgeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_purge_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// purgeTimeout — предельное время одного запуска.
const purgeTimeout = time.Minute

// PurgeService — планировщик очистки просроченных шаблонов.
type PurgeService struct {
	repo     repository.FileRepository
	schedule string
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex // защита от параллельного запуска RunOnce
	cron *cron.Cron
}

// NewPurgeService создаёт сервис очистки.
// schedule — выражение cron (5 полей) или дескриптор (@every 1h, @daily).
func NewPurgeService(repo repository.FileRepository, schedule string, logger *slog.Logger) *PurgeService {
	return &PurgeService{
		repo:     repo,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "purge")),
	}
}

// Start регистрирует задачу в планировщике и запускает его.
func (p *PurgeService) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		_, _ = p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("некорректное расписание очистки %q: %w", p.schedule, err)
	}
	p.cron = c
	c.Start()

	p.logger.Info("Очистка просроченных шаблонов запущена",
		slog.String("schedule", p.schedule),
	)
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущего запуска,
// но не дольше, чем позволяет ctx.
func (p *PurgeService) Stop(ctx context.Context) {
	if p.cron == nil {
		return
	}
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
		p.logger.Warn("Очистка не завершилась до таймаута остановки")
	}
	p.logger.Info("Очистка просроченных шаблонов остановлена")
}

// RunOnce удаляет шаблоны, срок хранения которых истёк к текущему моменту.
// Потокобезопасен: параллельные вызовы выполняются последовательно.
func (p *PurgeService) RunOnce(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	purgeRunsTotal.Inc()

	n, err := p.repo.DeleteExpired(ctx, p.now().UTC())
	purgeDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		purgeErrorsTotal.Inc()
		p.logger.Error("Ошибка очистки просроченных шаблонов", slog.String("error", err.Error()))
		return 0, mapRepoError(err)
	}

	purgeFilesDeletedTotal.Add(float64(n))
	if n > 0 {
		p.logger.Info("Просроченные шаблоны удалены", slog.Int64("count", n))
	} else {
		p.logger.Debug("Просроченных шаблонов нет")
	}
	return n, nil
}
