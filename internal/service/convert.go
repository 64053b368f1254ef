// convert.go — приём RTF-документа на конвертацию.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/form"
)

// DefaultContentType — тип документа, если часть формы его не указала.
const DefaultContentType = "text/plain"

// convertRequestsTotal — количество принятых документов.
var convertRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rc_convert_requests_total",
	Help: "Общее количество документов, принятых на конвертацию",
})

// ConvertService — сервис приёма документов на конвертацию.
// Сам алгоритм конвертации не реализован: сервис подтверждает приём
// и возвращает сводку по документу.
type ConvertService struct {
	logger *slog.Logger
}

// NewConvertService создаёт сервис конвертации.
func NewConvertService(logger *slog.Logger) *ConvertService {
	return &ConvertService{
		logger: logger.With(slog.String("component", "convert_service")),
	}
}

// Convert принимает документ и возвращает сообщение-сводку.
func (s *ConvertService) Convert(_ context.Context, req *form.ConvertUpload) string {
	contentType := req.File.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	convertRequestsTotal.Inc()
	s.logger.Info("Документ принят на конвертацию",
		slog.String("file_name", req.File.FileName),
		slog.String("content_type", contentType),
		slog.String("size", humanize.IBytes(uint64(req.File.Size()))),
	)

	return fmt.Sprintf("file name = '%s', content type = '%s', size = '%d'",
		req.File.FileName, contentType, req.File.Size())
}
