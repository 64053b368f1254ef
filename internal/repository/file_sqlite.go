package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
)

// sqliteTimeLayout — фиксированная ширина, чтобы строки сравнивались как время.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// sqliteFileRepo — реализация FileRepository для SQLite.
type sqliteFileRepo struct {
	db *sql.DB
}

// NewSQLiteFileRepository создаёт репозиторий файлов поверх SQLite.
func NewSQLiteFileRepository(db *sql.DB) FileRepository {
	return &sqliteFileRepo{db: db}
}

func (r *sqliteFileRepo) FindAll(ctx context.Context, cond model.FileConditions) ([]*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	var args []any
	if cond.FileName != nil {
		// instr сравнивает байты: подстрока буквальная и с учётом регистра
		query += ` WHERE instr(file_name, ?) > 0`
		args = append(args, *cond.FileName)
	}
	query += ` ORDER BY insertion_date, unique_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("ошибка получения списка файлов", err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f, err := scanSQLiteFile(rows)
		if err != nil {
			return nil, storageErr("ошибка сканирования файла", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ошибка получения списка файлов", err)
	}
	return result, nil
}

func (r *sqliteFileRepo) Add(ctx context.Context, v model.ValidNewFile) (model.FileIdentifier, error) {
	f := prepareNew(v)
	id := uuid.New()

	query := `
		INSERT INTO files (unique_id, version, tenant_id, owner_id, file_binary_content,
			content_type, file_name, file_size, insertion_date, max_age,
			templating_engine, templating_engine_version)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		id.String(), nullUUID(f.TenantID), nullUUID(f.OwnerID), f.FileBinaryContent,
		f.ContentType, f.FileName, f.FileSize, formatTime(f.InsertionDate), bindSQLiteTime(f.MaxAge),
		f.TemplatingEngine, f.TemplatingEngineVersion,
	)
	if err != nil {
		return model.FileIdentifier{}, storageErr("ошибка сохранения файла", err)
	}
	return model.FileIdentifier{UniqueID: id, Version: 1}, nil
}

func (r *sqliteFileRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE unique_id = ?`

	f, err := scanSQLiteFile(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr(opErr("ошибка получения файла", id), err)
	}
	return f, nil
}

func (r *sqliteFileRepo) Update(ctx context.Context, id uuid.UUID, v model.ValidFileUpdate) (model.FileIdentifier, error) {
	upd := v.Update()
	cols := updateColumns(upd, bindSQLiteTime)

	sets := []string{"version = version + 1"}
	args := make([]any, 0, len(cols)+3)
	for _, c := range cols {
		sets = append(sets, c.name+" = ?")
		args = append(args, c.value)
	}
	args = append(args, id.String(), upd.ExpectedVersion)
	where := `unique_id = ? AND version = ?`
	if !upd.At.IsZero() {
		where += ` AND (max_age IS NULL OR max_age > ?)`
		args = append(args, formatTime(upd.At))
	}

	query := `UPDATE files SET ` + strings.Join(sets, ", ") + ` WHERE ` + where

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.FileIdentifier{}, storageErr(opErr("ошибка обновления файла", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.FileIdentifier{}, storageErr(opErr("ошибка обновления файла", id), err)
	}
	if n == 1 {
		return model.FileIdentifier{UniqueID: id, Version: upd.ExpectedVersion + 1}, nil
	}

	// Ни одна строка не обновлена: файла нет, он истёк или версия уже другая
	var (
		current int32
		rawAge  sql.NullString
	)
	err = r.db.QueryRowContext(ctx, `SELECT version, max_age FROM files WHERE unique_id = ?`, id.String()).
		Scan(&current, &rawAge)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FileIdentifier{}, ErrNotFound
	}
	if err != nil {
		return model.FileIdentifier{}, storageErr(opErr("ошибка проверки версии файла", id), err)
	}
	var maxAge *time.Time
	if rawAge.Valid {
		t, err := parseTime(rawAge.String)
		if err != nil {
			return model.FileIdentifier{}, storageErr(opErr("ошибка проверки версии файла", id), err)
		}
		maxAge = &t
	}
	return model.FileIdentifier{}, casFailure(upd, current, maxAge)
}

func (r *sqliteFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE unique_id = ?`, id.String()); err != nil {
		return storageErr(opErr("ошибка удаления файла", id), err)
	}
	return nil
}

func (r *sqliteFileRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE max_age IS NOT NULL AND max_age <= ?`, formatTime(now))
	if err != nil {
		return 0, storageErr("ошибка удаления просроченных файлов", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("ошибка удаления просроченных файлов", err)
	}
	return n, nil
}

// scanSQLiteFile читает строку в порядке fileColumns.
func scanSQLiteFile(row interface{ Scan(dest ...any) error }) (*model.File, error) {
	f := &model.File{}
	var (
		id                string
		tenantID, ownerID uuid.NullUUID
		insertion         string
		maxAge            sql.NullString
		engine            sql.NullString
		engineVersion     sql.NullInt32
	)
	err := row.Scan(
		&id, &f.ID.Version, &tenantID, &ownerID, &f.FileBinaryContent,
		&f.ContentType, &f.FileName, &f.FileSize, &insertion, &maxAge,
		&engine, &engineVersion,
	)
	if err != nil {
		return nil, err
	}

	if f.ID.UniqueID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("некорректный unique_id %q: %w", id, err)
	}
	if tenantID.Valid {
		f.TenantID = &tenantID.UUID
	}
	if ownerID.Valid {
		f.OwnerID = &ownerID.UUID
	}
	if f.InsertionDate, err = parseTime(insertion); err != nil {
		return nil, err
	}
	if maxAge.Valid {
		t, err := parseTime(maxAge.String)
		if err != nil {
			return nil, err
		}
		f.MaxAge = &t
	}
	if engine.Valid {
		f.TemplatingEngine = &engine.String
	}
	if engineVersion.Valid {
		f.TemplatingEngineVersion = &engineVersion.Int32
	}
	if f.FileBinaryContent == nil {
		f.FileBinaryContent = []byte{}
	}
	return f, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректное время %q: %w", s, err)
	}
	return t.UTC(), nil
}

// bindSQLiteTime — время в текстовом виде или NULL.
func bindSQLiteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
