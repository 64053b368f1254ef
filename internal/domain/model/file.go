// Пакет model — доменные сущности хранилища шаблонов.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/validation"
)

// Ограничения длины строковых полей (content_type, file_name).
const (
	MinNameLength = 1
	MaxNameLength = 255
)

// FileIdentifier — составной идентификатор файла.
// Идентичность файла — пара (UniqueID, Version), а не только UUID.
type FileIdentifier struct {
	// UniqueID — UUID файла, назначается при создании
	UniqueID uuid.UUID `json:"unique_id"`
	// Version — номер версии, начинается с 1
	Version int32 `json:"version"`
}

// NewFile — данные для создания файла.
// Строится на каждый запрос из результата сборки multipart, сам не хранится.
type NewFile struct {
	// TenantID — идентификатор тенанта (опционально)
	TenantID *uuid.UUID
	// OwnerID — идентификатор владельца (опционально)
	OwnerID *uuid.UUID
	// FileBinaryContent — содержимое файла (может быть пустым)
	FileBinaryContent []byte
	// ContentType — MIME-тип, 1..255 символов
	ContentType string
	// FileName — имя файла, 1..255 символов
	FileName string
	// FileSize — размер в байтах
	FileSize int64
	// InsertionDate — время вставки (UTC), задаётся сервером
	InsertionDate time.Time
	// MaxAge — абсолютное время истечения (UTC), nil — без срока
	MaxAge *time.Time
	// TemplatingEngine — имя шаблонизатора (опционально)
	TemplatingEngine *string
	// TemplatingEngineVersion — версия шаблонизатора (опционально)
	TemplatingEngineVersion *int32
}

// File — сохранённая запись файла.
type File struct {
	ID                      FileIdentifier
	TenantID                *uuid.UUID
	OwnerID                 *uuid.UUID
	FileBinaryContent       []byte
	ContentType             string
	FileName                string
	FileSize                int64
	InsertionDate           time.Time
	MaxAge                  *time.Time
	TemplatingEngine        *string
	TemplatingEngineVersion *int32
}

// Expired сообщает, истёк ли срок хранения файла к моменту now.
func (f *File) Expired(now time.Time) bool {
	return f.MaxAge != nil && !now.Before(*f.MaxAge)
}

// FileConditions — фильтр выборки файлов.
type FileConditions struct {
	// FileName — подстрока имени файла (с учётом регистра), nil — без фильтра
	FileName *string
}

// ExpiresAt вычисляет абсолютное время истечения: now + d.
// Если относительная длительность не задана — файл не истекает (nil).
func ExpiresAt(now time.Time, d *time.Duration) *time.Time {
	if d == nil {
		return nil
	}
	t := now.UTC().Add(*d)
	return &t
}

// newFileSchema — правила проверки NewFile.
var newFileSchema = validation.Schema[*NewFile]{
	{
		Field:       "content_type",
		Value:       func(f *NewFile) any { return f.ContentType },
		Constraints: []validation.Constraint{validation.Length(MinNameLength, MaxNameLength), validation.Text()},
	},
	{
		Field:       "file_name",
		Value:       func(f *NewFile) any { return f.FileName },
		Constraints: []validation.Constraint{validation.Length(MinNameLength, MaxNameLength), validation.Text()},
	},
	{
		Field: "templating_engine",
		Value: func(f *NewFile) any {
			if f.TemplatingEngine == nil {
				return nil
			}
			return *f.TemplatingEngine
		},
		Constraints: []validation.Constraint{validation.Text()},
	},
	{
		Field:       "file_size",
		Value:       func(f *NewFile) any { return f.FileSize },
		Constraints: []validation.Constraint{validation.Min(0)},
	},
	{
		// срок хранения отсчитывается от времени вставки
		Field: "max_age",
		Value: func(f *NewFile) any {
			if f.MaxAge == nil {
				return nil
			}
			return f.MaxAge.Sub(f.InsertionDate)
		},
		Constraints: []validation.Constraint{validation.PositiveDuration()},
	},
}

// ValidNewFile — NewFile, прошедший проверку схемы.
// Создаётся только через NewFile.Validate, поэтому репозиторий
// не может получить непроверенные данные.
type ValidNewFile struct {
	file NewFile
}

// File возвращает копию проверенных данных.
func (v ValidNewFile) File() NewFile {
	return v.file
}

// Validate проверяет NewFile по схеме.
// При нарушениях возвращает *validation.Error со всеми полями.
func (f NewFile) Validate() (ValidNewFile, error) {
	if err := newFileSchema.Check(&f); err != nil {
		return ValidNewFile{}, err
	}
	return ValidNewFile{file: f}, nil
}
