package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// fileColumns — порядок колонок для scanFile.
const fileColumns = `id::text, storage_key, original_name, path, size, mime_type, uploaded_at`

// postgresFileRepo — реализация FileRepository на PostgreSQL.
type postgresFileRepo struct {
	db DBTX
}

// NewPostgresFileRepository создаёт репозиторий метаданных на PostgreSQL.
func NewPostgresFileRepository(db DBTX) FileRepository {
	return &postgresFileRepo{db: db}
}

func (r *postgresFileRepo) Insert(ctx context.Context, f model.NewFile) (*model.FileRecord, error) {
	if err := validateNew(f); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO files (storage_key, original_name, path, size, mime_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + fileColumns

	rec, err := scanFile(r.db.QueryRow(ctx, query,
		f.StorageKey, f.OriginalName, f.Path, f.Size, f.MimeType,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: storage key %s уже занят", ErrConflict, f.StorageKey)
		}
		if isBadEncoding(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return nil, fmt.Errorf("ошибка вставки записи файла: %w", err)
	}
	return rec, nil
}

func (r *postgresFileRepo) List(ctx context.Context) ([]*model.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *postgresFileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	// Некорректный UUID не может существовать в таблице
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *postgresFileRepo) GetByStorageKey(ctx context.Context, key string) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE storage_key = $1`
	return r.getOne(ctx, query, key)
}

func (r *postgresFileRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		if isInvalidInput(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresFileRepo) getOne(ctx context.Context, query string, arg string) (*model.FileRecord, error) {
	rec, err := scanFile(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidInput(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return rec, nil
}

// scanFile сканирует строку в порядке fileColumns.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	if err := row.Scan(
		&rec.ID, &rec.StorageKey, &rec.OriginalName, &rec.Path,
		&rec.Size, &rec.MimeType, &rec.UploadedAt,
	); err != nil {
		return nil, err
	}
	rec.UploadedAt = rec.UploadedAt.UTC()
	return rec, nil
}
