// handler.go — основной обработчик API, реализующий routes.ServerInterface.
// Разбирает запрос, вызывает сервисный слой и переводит его ошибки в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/rtf-converter/internal/api/errors"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/form"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/openapi"
	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/validation"
	"github.com/bigkaa/goartstore/rtf-converter/internal/service"
)

// APIHandler — основной обработчик API rtf-converter.
type APIHandler struct {
	health        *HealthHandler
	templates     *service.TemplateService
	converter     *service.ConvertService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize — предельный размер тела multipart-запроса в байтах.
func NewAPIHandler(
	health *HealthHandler,
	templates *service.TemplateService,
	converter *service.ConvertService,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		templates:     templates,
		converter:     converter,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// Healthcheck — GET /healthcheck (делегируется в HealthHandler).
func (h *APIHandler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	h.health.Healthcheck(w, r)
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — GET /openapi.yaml.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", openapi.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Document())
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// limitBody ограничивает тело запроса лимитом загрузки.
func (h *APIHandler) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
}

// writeError переводит ошибку разбора или сервиса в HTTP-ответ.
// Причина внутренних ошибок пишется в лог, клиент получает только op.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		apierrors.ValidationError(w, vErr.Fields)
	case errors.Is(err, form.ErrBodyTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, form.ErrMalformedRequest):
		apierrors.MalformedRequest(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Шаблон не найден")
	case errors.Is(err, service.ErrVersionConflict):
		apierrors.VersionConflict(w, err.Error())
	case errors.Is(err, service.ErrCancelled), errors.Is(err, context.Canceled):
		apierrors.RequestCancelled(w, "Запрос отменён")
	default:
		h.logger.ErrorContext(r.Context(), op,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, op)
	}
}
