package form

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Имена полей формы.
const (
	FieldFile                    = "file"
	FieldRTFFile                 = "rtf_file"
	FieldTenantID                = "tenant_id"
	FieldOwnerID                 = "owner_id"
	FieldMaxAge                  = "max_age"
	FieldTemplatingEngine        = "templating_engine"
	FieldTemplatingEngineVersion = "templating_engine_version"
)

// TemplateUpload — запрос загрузки шаблона (POST /template).
// Все поля, кроме File, опциональны: nil — поле не передано.
type TemplateUpload struct {
	File                    FileData
	TenantID                *uuid.UUID
	OwnerID                 *uuid.UUID
	MaxAge                  *time.Duration
	TemplatingEngine        *string
	TemplatingEngineVersion *int32
}

// ConvertUpload — запрос конвертации (POST /convert).
type ConvertUpload struct {
	File FileData
}

// rawForm — поля формы до типизированного разбора.
type rawForm struct {
	files  map[string]*FileData
	values map[string]string
}

// ParseTemplateUpload собирает TemplateUpload из multipart-тела.
//
// Порядок:
//  1. чтение всех частей (не multipart → ErrMalformedRequest)
//  2. проверка обязательного поля file до запуска экстракторов
//  3. типизированный разбор опциональных полей; первая ошибка прерывает сборку
func ParseTemplateUpload(r *http.Request) (*TemplateUpload, error) {
	raw, err := readParts(r, FieldFile)
	if err != nil {
		return nil, err
	}

	file, ok := raw.files[FieldFile]
	if !ok {
		return nil, missingField(FieldFile)
	}

	req := &TemplateUpload{File: *file}

	if text, ok := raw.values[FieldTenantID]; ok {
		id, err := ExtractUUID(FieldTenantID, text)
		if err != nil {
			return nil, err
		}
		req.TenantID = &id
	}

	if text, ok := raw.values[FieldOwnerID]; ok {
		id, err := ExtractUUID(FieldOwnerID, text)
		if err != nil {
			return nil, err
		}
		req.OwnerID = &id
	}

	if text, ok := raw.values[FieldMaxAge]; ok {
		d, err := ExtractDuration(FieldMaxAge, text)
		if err != nil {
			return nil, err
		}
		req.MaxAge = &d
	}

	if text, ok := raw.values[FieldTemplatingEngine]; ok {
		engine := text
		req.TemplatingEngine = &engine
	}

	if text, ok := raw.values[FieldTemplatingEngineVersion]; ok {
		v, err := ExtractInt(FieldTemplatingEngineVersion, text)
		if err != nil {
			return nil, err
		}
		req.TemplatingEngineVersion = &v
	}

	return req, nil
}

// ParseConvertUpload собирает ConvertUpload из multipart-тела.
// Обязательное поле — rtf_file.
func ParseConvertUpload(r *http.Request) (*ConvertUpload, error) {
	raw, err := readParts(r, FieldRTFFile)
	if err != nil {
		return nil, err
	}

	file, ok := raw.files[FieldRTFFile]
	if !ok {
		return nil, missingField(FieldRTFFile)
	}
	return &ConvertUpload{File: *file}, nil
}

// readParts читает все части multipart-тела.
// Только части из binaryFields сохраняются как FileData. Остальные читаются
// как текст, даже если пришли файлом (curl -F tenant_id=@id.txt).
// При повторе имени побеждает последняя часть.
func readParts(r *http.Request, binaryFields ...string) (*rawForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	binary := make(map[string]bool, len(binaryFields))
	for _, name := range binaryFields {
		binary[name] = true
	}

	raw := &rawForm{
		files:  make(map[string]*FileData),
		values: make(map[string]string),
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, classifyReadError(err)
		}

		name := part.FormName()
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, classifyReadError(err)
		}
		if name == "" {
			continue
		}

		if binary[name] {
			raw.files[name] = &FileData{
				FileName:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Contents:    data,
			}
			continue
		}
		raw.values[name] = string(data)
	}

	return raw, nil
}

// classifyReadError отделяет превышение лимита тела от прочих ошибок чтения.
func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: лимит %d байт", ErrBodyTooLarge, maxErr.Limit)
	}
	// mime/multipart может потерять тип ошибки при форматировании через %v
	if strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: %v", ErrBodyTooLarge, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
}

func missingField(name string) error {
	return fmt.Errorf("%w: поле %q обязательно", ErrMalformedRequest, name)
}
