// files.go — чтение, скачивание и удаление файлов.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/bigkaa/filehub/internal/api/middleware"
	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/repository"
	"github.com/bigkaa/filehub/internal/storage/filestore"
)

// FileService — операции над загруженными файлами.
type FileService struct {
	files  repository.FileRepository
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(files repository.FileRepository, store *filestore.FileStore, logger *slog.Logger) *FileService {
	return &FileService{
		files:  files,
		store:  store,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Download — открытый blob вместе с его метаданными.
// Вызывающий код обязан закрыть File.
type Download struct {
	Record *model.FileRecord
	File   *os.File
}

// List возвращает все записи, новые первые. Пустой список — не ошибка.
func (s *FileService) List(ctx context.Context) ([]*model.FileRecord, error) {
	records, err := s.files.List(ctx)
	if err != nil {
		return nil, databaseError(MsgListFailed, err)
	}
	return records, nil
}

// Get возвращает запись по ID.
func (s *FileService) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError(MsgFileNotFound, err)
		}
		return nil, databaseError(MsgGetFailed, err)
	}
	return rec, nil
}

// Open находит запись и открывает её blob.
// Запись без blob-а — 404 "File not found on server", запись не удаляется.
func (s *FileService) Open(ctx context.Context, id string) (*Download, error) {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "rejected").Inc()
			return nil, notFoundError(MsgFileNotFound, err)
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return nil, databaseError(MsgDownloadFailed, err)
	}

	f, err := s.store.Open(rec.StorageKey)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			s.logger.Warn("Blob отсутствует для существующей записи",
				slog.String("file_id", rec.ID),
				slog.String("storage_key", rec.StorageKey),
			)
			middleware.OperationsTotal.WithLabelValues("download", "rejected").Inc()
			return nil, notFoundError(MsgBlobNotFound, err)
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return nil, storageError(MsgDownloadFailed, err)
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	return &Download{Record: rec, File: f}, nil
}

// Delete удаляет blob и запись.
// Ошибка удаления blob-а логируется, удаление записи продолжается:
// осиротевший blob допустим, запись без blob-а — нет.
func (s *FileService) Delete(ctx context.Context, id string) error {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("delete", "rejected").Inc()
			return notFoundError(MsgFileNotFound, err)
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return databaseError(MsgDeleteFailed, err)
	}

	if err := s.store.Delete(rec.StorageKey); err != nil {
		s.logger.Error("Не удалось удалить blob, запись будет удалена",
			slog.String("file_id", rec.ID),
			slog.String("storage_key", rec.StorageKey),
			slog.String("error", err.Error()),
		)
	}

	if err := s.files.Delete(ctx, id); err != nil {
		// Запись могла быть удалена параллельным запросом
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("delete", "rejected").Inc()
			return notFoundError(MsgFileNotFound, err)
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return databaseError(MsgDeleteFailed, err)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", rec.ID),
		slog.String("storage_key", rec.StorageKey),
	)
	return nil
}
