package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/bigkaa/goartstore/rtf-converter/internal/api/form"
	"github.com/bigkaa/goartstore/rtf-converter/internal/api/routes"
	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
	"github.com/bigkaa/goartstore/rtf-converter/internal/service"
)

// UploadTemplate — POST /template.
//
// Поток:
//  1. тело ограничивается RC_MAX_UPLOAD_SIZE
//  2. multipart → TemplateUpload (ошибка типа поля → 400 MALFORMED_REQUEST)
//  3. TemplateService.Upload: валидация и запись
//  4. 200 {"unique_id", "version"}
func (h *APIHandler) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)

	req, err := form.ParseTemplateUpload(r)
	if err != nil {
		h.writeError(w, r, "Ошибка разбора шаблона", err)
		return
	}

	id, err := h.templates.Upload(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Ошибка сохранения шаблона", err)
		return
	}

	writeJSON(w, http.StatusOK, mapIdentifier(id))
}

// ListTemplates — GET /template.
func (h *APIHandler) ListTemplates(w http.ResponseWriter, r *http.Request, params routes.ListTemplatesParams) {
	files, err := h.templates.List(r.Context(), params.FileName)
	if err != nil {
		h.writeError(w, r, "Ошибка получения списка шаблонов", err)
		return
	}

	items := make([]routes.TemplateMetadata, len(files))
	for i, f := range files {
		items[i] = mapMetadata(f)
	}
	writeJSON(w, http.StatusOK, routes.TemplateListResponse{Items: items, Total: len(items)})
}

// GetTemplate — GET /template/{unique_id}.
func (h *APIHandler) GetTemplate(w http.ResponseWriter, r *http.Request, uniqueId routes.TemplateId, params routes.GetTemplateParams) { //nolint:revive // имя из OpenAPI контракта
	f, err := h.templates.Get(r.Context(), uniqueId, params.Version)
	if err != nil {
		h.writeError(w, r, "Ошибка получения шаблона", err)
		return
	}
	writeJSON(w, http.StatusOK, mapMetadata(f))
}

// GetTemplateContent — GET /template/{unique_id}/content.
// Отдаёт байты шаблона с сохранённым Content-Type; версия — в заголовке ETag.
func (h *APIHandler) GetTemplateContent(w http.ResponseWriter, r *http.Request, uniqueId routes.TemplateId) { //nolint:revive // имя из OpenAPI контракта
	f, err := h.templates.Get(r.Context(), uniqueId, nil)
	if err != nil {
		h.writeError(w, r, "Ошибка получения шаблона", err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.FileBinaryContent)))
	w.Header().Set("Content-Disposition", contentDisposition(f.FileName))
	w.Header().Set("ETag", fmt.Sprintf("%q", strconv.Itoa(int(f.ID.Version))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.FileBinaryContent)
}

// UpdateTemplate — PATCH /template/{unique_id}.
// Обновление применяется, только если version в теле равна текущей версии.
func (h *APIHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request, uniqueId routes.TemplateId) { //nolint:revive // имя из OpenAPI контракта
	h.limitBody(w, r)

	params, err := decodeUpdate(r)
	if err != nil {
		h.writeError(w, r, "Ошибка разбора обновления", err)
		return
	}

	id, err := h.templates.Update(r.Context(), uniqueId, params)
	if err != nil {
		h.writeError(w, r, "Ошибка обновления шаблона", err)
		return
	}
	writeJSON(w, http.StatusOK, mapIdentifier(id))
}

// DeleteTemplate — DELETE /template/{unique_id}.
// Удаление отсутствующего шаблона тоже отвечает 204.
func (h *APIHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request, uniqueId routes.TemplateId) { //nolint:revive // имя из OpenAPI контракта
	if err := h.templates.Delete(r.Context(), uniqueId); err != nil {
		h.writeError(w, r, "Ошибка удаления шаблона", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeUpdate разбирает JSON-тело PATCH в параметры сервиса.
// Неизвестные поля и неверные типы — ошибка формы запроса.
func decodeUpdate(r *http.Request) (service.UpdateParams, error) {
	var req routes.UpdateTemplateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return service.UpdateParams{}, fmt.Errorf("%w: лимит %d байт", form.ErrBodyTooLarge, maxErr.Limit)
		}
		return service.UpdateParams{}, fmt.Errorf("%w: некорректный JSON: %v", form.ErrMalformedRequest, err)
	}

	params := service.UpdateParams{
		ExpectedVersion:         req.Version,
		FileName:                req.FileName,
		ContentType:             req.ContentType,
		TemplatingEngine:        req.TemplatingEngine,
		TemplatingEngineVersion: req.TemplatingEngineVersion,
	}

	if len(req.MaxAge) > 0 {
		maxAge, err := decodeMaxAge(req.MaxAge)
		if err != nil {
			return service.UpdateParams{}, err
		}
		params.MaxAge = maxAge
	}
	return params, nil
}

// decodeMaxAge: null снимает срок хранения, строка задаёт новый.
func decodeMaxAge(raw json.RawMessage) (*service.MaxAgeParam, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &service.MaxAgeParam{}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, &form.FieldTypeError{Field: form.FieldMaxAge, WantedType: form.TypeDuration, Err: err}
	}
	d, err := form.ExtractDuration(form.FieldMaxAge, text)
	if err != nil {
		return nil, err
	}
	return &service.MaxAgeParam{Duration: &d}, nil
}

// contentDisposition — заголовок вложения по RFC 6266:
// не-ASCII имя кодируется как filename*=utf-8''...
func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}

// --- Маппинг domain → API ---

func mapIdentifier(id model.FileIdentifier) routes.TemplateIdentifier {
	return routes.TemplateIdentifier{UniqueId: id.UniqueID, Version: id.Version}
}

func mapMetadata(f *model.File) routes.TemplateMetadata {
	m := routes.TemplateMetadata{
		UniqueId:                f.ID.UniqueID,
		Version:                 f.ID.Version,
		TenantId:                f.TenantID,
		OwnerId:                 f.OwnerID,
		ContentType:             f.ContentType,
		FileName:                f.FileName,
		FileSize:                f.FileSize,
		InsertionDate:           f.InsertionDate.UTC(),
		TemplatingEngine:        f.TemplatingEngine,
		TemplatingEngineVersion: f.TemplatingEngineVersion,
	}
	if f.MaxAge != nil {
		t := f.MaxAge.UTC()
		m.MaxAge = &t
	}
	return m
}
