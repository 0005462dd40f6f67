// Пакет repository — хранилище метаданных файлов.
// Интерфейс FileRepository реализуется PostgreSQL (pgx, чистый SQL),
// MongoDB и in-memory бэкендом; поверх любого из них может работать LRU-кэш.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (storage key уже занят).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrInvalid — запись не прошла валидацию.
	ErrInvalid = errors.New("некорректная запись")
)

// FileRepository — интерфейс хранилища метаданных файлов.
// Записи неизменяемы: после Insert их можно только прочитать или удалить.
type FileRepository interface {
	// Insert сохраняет запись, назначая ID и время загрузки.
	Insert(ctx context.Context, f model.NewFile) (*model.FileRecord, error)
	// List возвращает все записи, новые первые.
	List(ctx context.Context) ([]*model.FileRecord, error)
	// GetByID возвращает запись по ID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByStorageKey возвращает запись по ключу blob-а.
	GetByStorageKey(ctx context.Context, key string) (*model.FileRecord, error)
	// Delete удаляет запись по ID.
	Delete(ctx context.Context, id string) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// validateNew проверяет запись перед вставкой.
func validateNew(f model.NewFile) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isInvalidInput — ошибка приведения типа (например, некорректный UUID).
func isInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02" // invalid_text_representation
	}
	return false
}

// isBadEncoding — строка не представима в кодировке базы (в том числе NUL).
func isBadEncoding(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22021" // character_not_in_repertoire
	}
	return false
}
