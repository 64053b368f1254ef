// Пакет routes — HTTP-контракт rtf-converter: типы запросов и ответов,
// интерфейс обработчика и привязка маршрутов к chi.
// Повторяет структуру chi-server из oapi-codegen, контракт описан в openapi.yaml.
package routes

import (
	"encoding/json"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// TemplateId — идентификатор шаблона в пути запроса.
type TemplateId = openapi_types.UUID //nolint:revive // имя из OpenAPI контракта

// ListTemplatesParams — параметры GET /template.
type ListTemplatesParams struct {
	// FileName — подстрока имени файла (буквально, с учётом регистра)
	FileName *string `form:"file_name,omitempty" json:"file_name,omitempty"`
}

// GetTemplateParams — параметры GET /template/{unique_id}.
type GetTemplateParams struct {
	// Version — ожидаемая текущая версия; несовпадение даёт 404
	Version *int32 `form:"version,omitempty" json:"version,omitempty"`
}

// TemplateIdentifier — идентификатор сохранённой версии шаблона.
type TemplateIdentifier struct {
	UniqueId openapi_types.UUID `json:"unique_id"` //nolint:revive // имя из OpenAPI контракта
	Version  int32              `json:"version"`
}

// TemplateMetadata — метаданные шаблона без содержимого.
type TemplateMetadata struct {
	UniqueId                openapi_types.UUID  `json:"unique_id"` //nolint:revive // имя из OpenAPI контракта
	Version                 int32               `json:"version"`
	TenantId                *openapi_types.UUID `json:"tenant_id,omitempty"` //nolint:revive // имя из OpenAPI контракта
	OwnerId                 *openapi_types.UUID `json:"owner_id,omitempty"`  //nolint:revive // имя из OpenAPI контракта
	ContentType             string              `json:"content_type"`
	FileName                string              `json:"file_name"`
	FileSize                int64               `json:"file_size"`
	InsertionDate           time.Time           `json:"insertion_date"`
	MaxAge                  *time.Time          `json:"max_age,omitempty"`
	TemplatingEngine        *string             `json:"templating_engine,omitempty"`
	TemplatingEngineVersion *int32              `json:"templating_engine_version,omitempty"`
}

// TemplateListResponse — ответ GET /template.
type TemplateListResponse struct {
	Items []TemplateMetadata `json:"items"`
	Total int                `json:"total"`
}

// UpdateTemplateRequest — тело PATCH /template/{unique_id}.
// MaxAge: отсутствует — не меняется, null — снять ограничение,
// строка длительности ("30d", "12h") — новый срок от текущего момента.
type UpdateTemplateRequest struct {
	Version                 int32           `json:"version"`
	FileName                *string         `json:"file_name,omitempty"`
	ContentType             *string         `json:"content_type,omitempty"`
	MaxAge                  json.RawMessage `json:"max_age,omitempty"`
	TemplatingEngine        *string         `json:"templating_engine,omitempty"`
	TemplatingEngineVersion *int32          `json:"templating_engine_version,omitempty"`
}

// ConvertResponse — ответ POST /convert.
type ConvertResponse struct {
	Msg string `json:"msg"`
}
