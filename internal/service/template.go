// Пакет service — бизнес-логика rtf-converter.
// template.go — загрузка, чтение, обновление и удаление шаблонов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/form"
	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/validation"
	"github.com/bigkaa/goartstore/rtf-converter/internal/repository"
)

// Prometheus метрики шаблонов
var (
	// templatesUploadedTotal — количество сохранённых шаблонов.
	templatesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_templates_uploaded_total",
		Help: "Общее количество сохранённых шаблонов",
	})

	// templateUploadBytes — размер загруженных шаблонов.
	templateUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_template_upload_bytes",
		Help:    "Размер загруженных шаблонов в байтах",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// templateValidationFailuresTotal — отклонённые валидацией запросы.
	templateValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_template_validation_failures_total",
		Help: "Количество запросов, отклонённых валидацией",
	}, []string{"operation"})

	// templateUpdatesTotal — результаты обновления метаданных.
	templateUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_template_updates_total",
		Help: "Количество обновлений метаданных по результату",
	}, []string{"result"})
)

// UpdateParams — изменение метаданных шаблона.
// nil-поле не меняется.
type UpdateParams struct {
	// ExpectedVersion — версия, которую клиент считает текущей
	ExpectedVersion int32
	FileName        *string
	ContentType     *string
	// MaxAge — новый относительный срок хранения от текущего момента
	MaxAge *MaxAgeParam
	// TemplatingEngine и TemplatingEngineVersion — шаблонизатор
	TemplatingEngine        *string
	TemplatingEngineVersion *int32
}

// MaxAgeParam — новый срок хранения. Duration == nil снимает ограничение.
type MaxAgeParam struct {
	Duration *time.Duration
}

// TemplateService — сервис хранилища шаблонов.
type TemplateService struct {
	repo   repository.FileRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewTemplateService создаёт сервис шаблонов.
func NewTemplateService(repo repository.FileRepository, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		repo:   repo,
		now:    time.Now,
		logger: logger.With(slog.String("component", "template_service")),
	}
}

// currentTime — текущее время UTC с точностью хранилища (микросекунды).
func (s *TemplateService) currentTime() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Upload сохраняет шаблон из собранного multipart-запроса.
//
// Поток:
//  1. max_age → абсолютный срок от времени вставки
//  2. пустой Content-Type части → определение по содержимому
//  3. валидация NewFile (все нарушения сразу)
//  4. отменённый запрос не доходит до хранилища
//  5. repository.Add → идентификатор с версией 1
func (s *TemplateService) Upload(ctx context.Context, req *form.TemplateUpload) (model.FileIdentifier, error) {
	now := s.currentTime()

	contentType := req.File.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(req.File.Contents).String()
	}

	nf := model.NewFile{
		TenantID:                req.TenantID,
		OwnerID:                 req.OwnerID,
		FileBinaryContent:       req.File.Contents,
		ContentType:             contentType,
		FileName:                req.File.FileName,
		FileSize:                req.File.Size(),
		InsertionDate:           now,
		MaxAge:                  model.ExpiresAt(now, req.MaxAge),
		TemplatingEngine:        req.TemplatingEngine,
		TemplatingEngineVersion: req.TemplatingEngineVersion,
	}

	valid, err := nf.Validate()
	if err != nil {
		templateValidationFailuresTotal.WithLabelValues("upload").Inc()
		return model.FileIdentifier{}, err
	}

	if err := ctx.Err(); err != nil {
		s.logger.Warn("Загрузка прервана до записи",
			slog.String("file_name", nf.FileName),
			slog.String("error", err.Error()),
		)
		return model.FileIdentifier{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	id, err := s.repo.Add(ctx, valid)
	if err != nil {
		s.logger.Error("Ошибка сохранения шаблона",
			slog.String("file_name", nf.FileName),
			slog.String("error", err.Error()),
		)
		return model.FileIdentifier{}, mapRepoError(err)
	}

	templatesUploadedTotal.Inc()
	templateUploadBytes.Observe(float64(nf.FileSize))

	attrs := []any{
		slog.String("unique_id", id.UniqueID.String()),
		slog.String("file_name", nf.FileName),
		slog.String("content_type", nf.ContentType),
		slog.String("size", humanize.IBytes(uint64(nf.FileSize))),
	}
	if nf.MaxAge != nil {
		attrs = append(attrs, slog.Time("expires_at", *nf.MaxAge))
	}
	s.logger.Info("Шаблон сохранён", attrs...)

	return id, nil
}

// List возвращает шаблоны, имя которых содержит подстроку fileName.
// Просроченные, но ещё не очищенные шаблоны не возвращаются.
func (s *TemplateService) List(ctx context.Context, fileName *string) ([]*model.File, error) {
	files, err := s.repo.FindAll(ctx, model.FileConditions{FileName: fileName})
	if err != nil {
		s.logger.Error("Ошибка получения списка шаблонов", slog.String("error", err.Error()))
		return nil, mapRepoError(err)
	}

	now := s.currentTime()
	result := make([]*model.File, 0, len(files))
	for _, f := range files {
		if !f.Expired(now) {
			result = append(result, f)
		}
	}
	return result, nil
}

// Get возвращает текущую версию шаблона.
// Если version задан и не совпадает с текущей — ErrNotFound.
func (s *TemplateService) Get(ctx context.Context, id uuid.UUID, version *int32) (*model.File, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Ошибка получения шаблона",
				slog.String("unique_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, mapRepoError(err)
	}
	if f.Expired(s.currentTime()) {
		return nil, ErrNotFound
	}
	if version != nil && *version != f.ID.Version {
		return nil, ErrNotFound
	}
	return f, nil
}

// Update меняет метаданные шаблона, если его версия равна ожидаемой.
// Истёкший, но ещё не очищенный шаблон не обновляется: ErrNotFound.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (model.FileIdentifier, error) {
	now := s.currentTime()
	upd := model.FileUpdate{
		ExpectedVersion:         p.ExpectedVersion,
		FileName:                p.FileName,
		ContentType:             p.ContentType,
		TemplatingEngine:        p.TemplatingEngine,
		TemplatingEngineVersion: p.TemplatingEngineVersion,
		At:                      now,
	}

	var extra validation.FieldErrors
	if p.MaxAge != nil {
		change := &model.MaxAgeChange{}
		if d := p.MaxAge.Duration; d != nil {
			if msg := validation.PositiveDuration().Check(*d); msg != "" {
				extra = append(extra, validation.FieldError{Field: "max_age", Message: msg})
			}
			change.Until = model.ExpiresAt(now, d)
		}
		upd.MaxAge = change
	}

	valid, err := upd.Validate()
	if err != nil || len(extra) > 0 {
		templateValidationFailuresTotal.WithLabelValues("update").Inc()
		return model.FileIdentifier{}, mergeValidation(err, extra)
	}

	next, err := s.repo.Update(ctx, id, valid)
	if err != nil {
		mapped := mapRepoError(err)
		switch {
		case errors.Is(mapped, ErrVersionConflict):
			templateUpdatesTotal.WithLabelValues("conflict").Inc()
		case errors.Is(mapped, ErrNotFound):
			templateUpdatesTotal.WithLabelValues("not_found").Inc()
		default:
			templateUpdatesTotal.WithLabelValues("error").Inc()
			s.logger.Error("Ошибка обновления шаблона",
				slog.String("unique_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
		return model.FileIdentifier{}, mapped
	}

	templateUpdatesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Метаданные шаблона обновлены",
		slog.String("unique_id", id.String()),
		slog.Int("version", int(next.Version)),
	)
	return next, nil
}

// Delete удаляет шаблон. Удаление отсутствующего шаблона — не ошибка.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Ошибка удаления шаблона",
			slog.String("unique_id", id.String()),
			slog.String("error", err.Error()),
		)
		return mapRepoError(err)
	}
	s.logger.Info("Шаблон удалён", slog.String("unique_id", id.String()))
	return nil
}

// mergeValidation объединяет ошибку валидации модели с дополнительными нарушениями.
func mergeValidation(err error, extra validation.FieldErrors) error {
	var vErr *validation.Error
	if err != nil && !errors.As(err, &vErr) {
		return err
	}
	fields := append(validation.FieldErrors{}, extra...)
	if vErr != nil {
		fields = append(fields, vErr.Fields...)
	}
	return &validation.Error{Fields: fields}
}
