package model

import (
	"errors"
	"time"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/validation"
)

// FileUpdate — изменение метаданных файла.
// Бинарное содержимое не обновляется. Любое изменённое поле
// увеличивает версию файла на единицу.
type FileUpdate struct {
	// ExpectedVersion — версия, которую клиент считает текущей (>= 1)
	ExpectedVersion int32
	FileName        *string
	ContentType     *string
	// MaxAge — новое абсолютное время истечения
	MaxAge                  *MaxAgeChange
	TemplatingEngine        *string
	TemplatingEngineVersion *int32

	// At — момент обновления. Файл, истёкший к этому моменту,
	// считается отсутствующим. Нулевое значение отключает проверку.
	At time.Time
}

// MaxAgeChange — изменение срока хранения.
// Until == nil снимает ограничение.
type MaxAgeChange struct {
	Until *time.Time
}

// errEmptyUpdate — в обновлении не указано ни одного поля.
var errEmptyUpdate = errors.New("необходимо указать хотя бы одно поле для обновления")

// Empty сообщает, что обновление не меняет ни одного поля.
func (u *FileUpdate) Empty() bool {
	return u.FileName == nil && u.ContentType == nil && u.MaxAge == nil &&
		u.TemplatingEngine == nil && u.TemplatingEngineVersion == nil
}

var fileUpdateSchema = validation.Schema[*FileUpdate]{
	{
		Field:       "version",
		Value:       func(u *FileUpdate) any { return u.ExpectedVersion },
		Constraints: []validation.Constraint{validation.Min(1)},
	},
	{
		Field: "content_type",
		Value: func(u *FileUpdate) any {
			if u.ContentType == nil {
				return nil
			}
			return *u.ContentType
		},
		Constraints: []validation.Constraint{validation.Length(MinNameLength, MaxNameLength), validation.Text()},
	},
	{
		Field: "file_name",
		Value: func(u *FileUpdate) any {
			if u.FileName == nil {
				return nil
			}
			return *u.FileName
		},
		Constraints: []validation.Constraint{validation.Length(MinNameLength, MaxNameLength), validation.Text()},
	},
	{
		Field: "templating_engine",
		Value: func(u *FileUpdate) any {
			if u.TemplatingEngine == nil {
				return nil
			}
			return *u.TemplatingEngine
		},
		Constraints: []validation.Constraint{validation.Text()},
	},
}

// ValidFileUpdate — FileUpdate, прошедший проверку.
type ValidFileUpdate struct {
	update FileUpdate
}

// Update возвращает копию проверенного обновления.
func (v ValidFileUpdate) Update() FileUpdate {
	return v.update
}

// Validate проверяет обновление. Пустое обновление — тоже ошибка валидации.
func (u FileUpdate) Validate() (ValidFileUpdate, error) {
	errs := fileUpdateSchema.Validate(&u)
	if u.Empty() {
		errs = append(errs, validation.FieldError{Field: "body", Message: errEmptyUpdate.Error()})
	}
	if len(errs) > 0 {
		return ValidFileUpdate{}, &validation.Error{Fields: errs}
	}
	return ValidFileUpdate{update: u}, nil
}
