// Пакет repository — слой хранения шаблонов.
// Две реализации FileRepository: PostgreSQL (pgx) и SQLite (database/sql).
// Все запросы — чистый SQL, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrVersionConflict — версия записи изменилась с момента чтения.
	ErrVersionConflict = errors.New("конфликт версий — запись изменена")
)

// StorageError — сбой хранилища.
// Op описывает операцию для логов, Err — исходная ошибка драйвера.
// Клиенту текст ошибки не передаётся.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// FileRepository — хранилище файлов с оптимистичным версионированием.
type FileRepository interface {
	// FindAll возвращает файлы, имя которых содержит подстроку (с учётом регистра).
	// Порядок не гарантируется.
	FindAll(ctx context.Context, cond model.FileConditions) ([]*model.File, error)
	// Add сохраняет новый файл и возвращает его идентификатор с версией 1.
	Add(ctx context.Context, f model.ValidNewFile) (model.FileIdentifier, error)
	// FindByID возвращает текущую версию файла или ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*model.File, error)
	// Update меняет метаданные, если текущая версия равна ожидаемой (CAS).
	// Возвращает новый идентификатор; ErrNotFound или ErrVersionConflict при неудаче.
	Update(ctx context.Context, id uuid.UUID, upd model.ValidFileUpdate) (model.FileIdentifier, error)
	// Delete удаляет файл. Удаление отсутствующего файла — не ошибка.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteExpired удаляет файлы с max_age <= now и возвращает их количество.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DBTX — интерфейс для выполнения SQL-запросов через pgx.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// fileColumns — порядок колонок в SELECT для scanFile.
const fileColumns = `unique_id, version, tenant_id, owner_id, file_binary_content,
	content_type, file_name, file_size, insertion_date, max_age,
	templating_engine, templating_engine_version`

// column — пара «колонка = значение» для UPDATE.
type column struct {
	name  string
	value any
}

// updateColumns перечисляет изменяемые колонки в фиксированном порядке.
// bindTime преобразует время в представление драйвера (nil → NULL).
func updateColumns(u model.FileUpdate, bindTime func(*time.Time) any) []column {
	var cols []column
	if u.FileName != nil {
		cols = append(cols, column{"file_name", *u.FileName})
	}
	if u.ContentType != nil {
		cols = append(cols, column{"content_type", *u.ContentType})
	}
	if u.MaxAge != nil {
		cols = append(cols, column{"max_age", bindTime(u.MaxAge.Until)})
	}
	if u.TemplatingEngine != nil {
		cols = append(cols, column{"templating_engine", *u.TemplatingEngine})
	}
	if u.TemplatingEngineVersion != nil {
		cols = append(cols, column{"templating_engine_version", *u.TemplatingEngineVersion})
	}
	return cols
}

// escapeLike экранирует спецсимволы LIKE, чтобы подстрока сравнивалась буквально.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// prepareNew возвращает данные для вставки: время вставки по умолчанию
// и непустой срез содержимого (NOT NULL в схеме).
func prepareNew(v model.ValidNewFile) model.NewFile {
	f := v.File()
	if f.InsertionDate.IsZero() {
		f.InsertionDate = time.Now().UTC()
	}
	if f.FileBinaryContent == nil {
		f.FileBinaryContent = []byte{}
	}
	return f
}

// casFailure объясняет неудачный CAS по текущему состоянию строки:
// истёкший к моменту обновления файл считается отсутствующим.
func casFailure(u model.FileUpdate, current int32, maxAge *time.Time) error {
	if !u.At.IsZero() && maxAge != nil && !u.At.Before(*maxAge) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: ожидалась версия %d, текущая %d", ErrVersionConflict, u.ExpectedVersion, current)
}

func opErr(op string, id uuid.UUID) string {
	return fmt.Sprintf("%s (unique_id=%s)", op, id)
}
