// Пакет form — разбор multipart/form-data в типизированные запросы.
// Экстракторы преобразуют одно поле формы в значение нужного типа,
// сборщики (Parse*Upload) собирают поля в единый запрос.
package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhit/go-str2duration/v2"
)

// Типы, которые ожидают экстракторы (попадают в текст ошибки).
const (
	TypeUUID     = "uuid"
	TypeDuration = "duration"
	TypeInteger  = "integer"
)

var (
	// ErrMalformedRequest — тело не multipart, нет обязательного поля
	// или поле не удалось преобразовать к нужному типу.
	ErrMalformedRequest = errors.New("некорректный multipart-запрос")
	// ErrBodyTooLarge — тело запроса превышает допустимый размер.
	ErrBodyTooLarge = errors.New("тело запроса превышает допустимый размер")
)

// FieldTypeError — поле формы не удалось преобразовать к ожидаемому типу.
// errors.Is(err, ErrMalformedRequest) для неё истинно.
type FieldTypeError struct {
	// Field — имя поля формы
	Field string
	// WantedType — ожидаемый тип (uuid, duration, integer)
	WantedType string
	// Err — исходная ошибка разбора
	Err error
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("поле %q: ожидался тип %s", e.Field, e.WantedType)
}

func (e *FieldTypeError) Unwrap() error {
	return e.Err
}

// Is относит ошибку типа поля к классу некорректных запросов.
func (e *FieldTypeError) Is(target error) bool {
	return target == ErrMalformedRequest
}

// FileData — бинарное поле формы вместе с метаданными части.
// Содержимое и метаданные передаются без преобразований.
type FileData struct {
	// FileName — оригинальное имя файла из Content-Disposition
	FileName string
	// ContentType — заявленный Content-Type части (может быть пустым)
	ContentType string
	// Contents — содержимое части
	Contents []byte
}

// Size возвращает размер содержимого в байтах.
func (f *FileData) Size() int64 {
	return int64(len(f.Contents))
}

// ExtractUUID разбирает текст поля как UUID.
func ExtractUUID(field, text string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(text))
	if err != nil {
		return uuid.Nil, &FieldTypeError{Field: field, WantedType: TypeUUID, Err: err}
	}
	return id, nil
}

// ExtractDuration разбирает человекочитаемую длительность: 30d, 2h, 1w2d, 90m.
func ExtractDuration(field, text string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(text))
	if err != nil {
		return 0, &FieldTypeError{Field: field, WantedType: TypeDuration, Err: err}
	}
	return d, nil
}

// ExtractInt разбирает текст поля как 32-битное целое.
func ExtractInt(field, text string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, &FieldTypeError{Field: field, WantedType: TypeInteger, Err: err}
	}
	return int32(n), nil
}
