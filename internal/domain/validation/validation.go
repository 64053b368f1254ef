// Пакет validation — декларативные схемы проверки доменных структур.
// Схема — список правил «поле → ограничения», проверяется одной функцией
// Schema.Validate, которая возвращает полный список нарушений.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError — нарушение ограничения одного поля.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors — все нарушения, найденные при проверке.
type FieldErrors []FieldError

// Error — ошибка валидации со всеми нарушениями.
// Возвращается доменными конструкторами Validate(), никогда не содержит пустой список.
type Error struct {
	Fields FieldErrors
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "ошибка валидации: " + strings.Join(parts, "; ")
}

// Constraint — ограничение значения поля.
// Check возвращает сообщение о нарушении или пустую строку.
type Constraint interface {
	Check(value any) string
}

// Rule — правило для одного поля структуры T.
// Value извлекает значение поля; nil означает «поле отсутствует»,
// и ограничения для него не проверяются.
type Rule[T any] struct {
	Field       string
	Value       func(T) any
	Constraints []Constraint
}

// Schema — декларативная схема проверки структуры T.
type Schema[T any] []Rule[T]

// Validate проверяет v по всем правилам схемы.
// Возвращает все нарушения в порядке объявления правил.
func (s Schema[T]) Validate(v T) FieldErrors {
	var errs FieldErrors
	for _, rule := range s {
		value := rule.Value(v)
		if value == nil {
			continue
		}
		for _, c := range rule.Constraints {
			if msg := c.Check(value); msg != "" {
				errs = append(errs, FieldError{Field: rule.Field, Message: msg})
			}
		}
	}
	return errs
}

// Check проверяет v и оборачивает нарушения в *Error.
// Возвращает nil, если нарушений нет.
func (s Schema[T]) Check(v T) error {
	if errs := s.Validate(v); len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

// --- Ограничения ---

type lengthConstraint struct {
	min, max int
}

// Length — длина строки в символах в диапазоне [min, max].
func Length(minLen, maxLen int) Constraint {
	return lengthConstraint{min: minLen, max: maxLen}
}

func (c lengthConstraint) Check(value any) string {
	s, ok := value.(string)
	if !ok {
		return "ожидалась строка"
	}
	n := utf8.RuneCountInString(s)
	if n < c.min || n > c.max {
		return fmt.Sprintf("длина должна быть от %d до %d символов, получено %d", c.min, c.max, n)
	}
	return ""
}

type textConstraint struct{}

// Text — корректная UTF-8 строка без нулевых байтов.
// Такие строки PostgreSQL не принимает в текстовые колонки.
func Text() Constraint {
	return textConstraint{}
}

func (textConstraint) Check(value any) string {
	s, ok := value.(string)
	if !ok {
		return "ожидалась строка"
	}
	if !utf8.ValidString(s) {
		return "строка содержит некорректную последовательность UTF-8"
	}
	if strings.IndexByte(s, 0) >= 0 {
		return "строка содержит нулевой байт"
	}
	return ""
}

type minConstraint struct {
	min int64
}

// Min — целое значение не меньше min.
func Min(minVal int64) Constraint {
	return minConstraint{min: minVal}
}

func (c minConstraint) Check(value any) string {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	default:
		return "ожидалось целое число"
	}
	if n < c.min {
		return fmt.Sprintf("значение должно быть не меньше %d, получено %d", c.min, n)
	}
	return ""
}

type positiveDurationConstraint struct{}

// PositiveDuration — длительность строго больше нуля.
func PositiveDuration() Constraint {
	return positiveDurationConstraint{}
}

func (positiveDurationConstraint) Check(value any) string {
	d, ok := value.(time.Duration)
	if !ok {
		return "ожидалась длительность"
	}
	if d <= 0 {
		return fmt.Sprintf("длительность должна быть положительной, получено %s", d)
	}
	return ""
}
