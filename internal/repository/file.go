package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
)

// pgFileRepo — реализация FileRepository для PostgreSQL.
type pgFileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов поверх PostgreSQL.
func NewFileRepository(db DBTX) FileRepository {
	return &pgFileRepo{db: db}
}

func (r *pgFileRepo) FindAll(ctx context.Context, cond model.FileConditions) ([]*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	var args []any
	if cond.FileName != nil {
		query += ` WHERE file_name LIKE $1 ESCAPE '\'`
		args = append(args, "%"+escapeLike(*cond.FileName)+"%")
	}
	query += ` ORDER BY insertion_date, unique_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("ошибка получения списка файлов", err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f, err := scanPgFile(rows)
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

func (r *pgFileRepo) Add(ctx context.Context, v model.ValidNewFile) (model.FileIdentifier, error) {
	f := prepareNew(v)
	id := uuid.New()

	query := `
		INSERT INTO files (unique_id, version, tenant_id, owner_id, file_binary_content,
			content_type, file_name, file_size, insertion_date, max_age,
			templating_engine, templating_engine_version)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		id, f.TenantID, f.OwnerID, f.FileBinaryContent,
		f.ContentType, f.FileName, f.FileSize, f.InsertionDate, f.MaxAge,
		f.TemplatingEngine, f.TemplatingEngineVersion,
	)
	if err != nil {
		return model.FileIdentifier{}, storageErr("ошибка сохранения файла", err)
	}
	return model.FileIdentifier{UniqueID: id, Version: 1}, nil
}

func (r *pgFileRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE unique_id = $1`

	f, err := scanPgFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr(opErr("ошибка получения файла", id), err)
	}
	return f, nil
}

func (r *pgFileRepo) Update(ctx context.Context, id uuid.UUID, v model.ValidFileUpdate) (model.FileIdentifier, error) {
	upd := v.Update()
	cols := updateColumns(upd, func(t *time.Time) any { return t })

	// $1 — unique_id, $2 — ожидаемая версия
	args := []any{id, upd.ExpectedVersion}
	where := `unique_id = $1 AND version = $2`
	if !upd.At.IsZero() {
		args = append(args, upd.At.UTC())
		where += fmt.Sprintf(` AND (max_age IS NULL OR max_age > $%d)`, len(args))
	}
	sets := []string{"version = version + 1"}
	for _, c := range cols {
		args = append(args, c.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
	}

	query := `UPDATE files SET ` + strings.Join(sets, ", ") +
		` WHERE ` + where + ` RETURNING version`

	var version int32
	err := r.db.QueryRow(ctx, query, args...).Scan(&version)
	if err == nil {
		return model.FileIdentifier{UniqueID: id, Version: version}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.FileIdentifier{}, storageErr(opErr("ошибка обновления файла", id), err)
	}

	// Ни одна строка не обновлена: файла нет, он истёк или версия уже другая
	var (
		current int32
		maxAge  *time.Time
	)
	err = r.db.QueryRow(ctx, `SELECT version, max_age FROM files WHERE unique_id = $1`, id).Scan(&current, &maxAge)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FileIdentifier{}, ErrNotFound
	}
	if err != nil {
		return model.FileIdentifier{}, storageErr(opErr("ошибка проверки версии файла", id), err)
	}
	return model.FileIdentifier{}, casFailure(upd, current, maxAge)
}

func (r *pgFileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM files WHERE unique_id = $1`, id); err != nil {
		return storageErr(opErr("ошибка удаления файла", id), err)
	}
	return nil
}

func (r *pgFileRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM files WHERE max_age IS NOT NULL AND max_age <= $1`, now.UTC())
	if err != nil {
		return 0, storageErr("ошибка удаления просроченных файлов", err)
	}
	return tag.RowsAffected(), nil
}

// scanPgFile читает строку в порядке fileColumns.
func scanPgFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(
		&f.ID.UniqueID, &f.ID.Version, &f.TenantID, &f.OwnerID, &f.FileBinaryContent,
		&f.ContentType, &f.FileName, &f.FileSize, &f.InsertionDate, &f.MaxAge,
		&f.TemplatingEngine, &f.TemplatingEngineVersion,
	)
	if err != nil {
		return nil, err
	}
	f.InsertionDate = f.InsertionDate.UTC()
	if f.MaxAge != nil {
		utc := f.MaxAge.UTC()
		f.MaxAge = &utc
	}
	return f, nil
}
