// Пакет errors — конструкторы стандартных ошибок rtf-converter.
// Единый формат: {"error": {"code": "...", "message": "...", "details": [...]}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/validation"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeMalformedRequest = "MALFORMED_REQUEST"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeVersionConflict  = "VERSION_CONFLICT"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeRequestCancelled = "REQUEST_CANCELLED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, errorDetail{Code: code, Message: message})
}

func writeBody(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// MalformedRequest — 400 тело не разбирается (не multipart, нет поля, неверный тип).
func MalformedRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeMalformedRequest, message)
}

// ValidationError — 400 данные не прошли проверку; details перечисляет все нарушения.
func ValidationError(w http.ResponseWriter, fields validation.FieldErrors) {
	writeBody(w, http.StatusBadRequest, errorDetail{
		Code:    CodeValidationError,
		Message: "Данные не прошли проверку",
		Details: fields,
	})
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// VersionConflict — 409 версия ресурса изменилась.
func VersionConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeVersionConflict, message)
}

// FileTooLarge — 413 тело запроса превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// RequestCancelled — 503 запрос отменён до записи.
func RequestCancelled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeRequestCancelled, message)
}

// InternalError — 500 внутренняя ошибка. Причина пишется в лог, не клиенту.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
