// upload.go — конвейер загрузки: multipart-поток → журнал → blob → метаданные.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bigkaa/filehub/internal/api/middleware"
	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/repository"
	"github.com/bigkaa/filehub/internal/storage/filestore"
	"github.com/bigkaa/filehub/internal/storage/journal"
)

// FileField — имя multipart-поля с файлом.
const FileField = "file"

// multipartOverhead — запас на заголовки частей и прочие поля формы
// сверх MaxUploadSize.
const multipartOverhead int64 = 1 << 20

// UploadService — сервис загрузки файлов.
type UploadService struct {
	store   *filestore.FileStore
	journal *journal.Journal
	files   repository.FileRepository
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	store *filestore.FileStore,
	jrnl *journal.Journal,
	files repository.FileRepository,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		store:   store,
		journal: jrnl,
		files:   files,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// storedBlob — blob, записанный в рамках текущего запроса.
type storedBlob struct {
	entry        *journal.Entry
	result       *filestore.PutResult
	originalName string
	mimeType     string
}

// Upload принимает multipart/form-data запрос с полем "file".
//
// Поток:
//  1. Ограничение размера тела, потоковый multipart reader
//  2. Поиск части "file", проверка MIME-типа до записи
//  3. Journal Begin
//  4. Запись blob-а с лимитом MaxUploadSize
//  5. Дочитывание остальных частей (вторая часть "file" — ошибка)
//  6. Вставка метаданных
//  7. Journal Commit
//
// При ошибке после записи blob удаляется. Если удалить не удалось,
// запись журнала остаётся pending и разбирается при следующем старте.
func (s *UploadService) Upload(ctx context.Context, r *http.Request) (*model.FileRecord, error) {
	start := time.Now()

	// 1. Тело не буферизуется целиком
	r.Body = http.MaxBytesReader(nil, r.Body, model.MaxUploadSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, s.reject(validationError(MsgNoFile, err))
	}

	var blob *storedBlob
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.discard(blob)
			return nil, s.reject(partError(err))
		}

		// Прочие поля формы игнорируются
		if part.FormName() != FileField || part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			part.Close()
			continue
		}

		if blob != nil {
			part.Close()
			s.discard(blob)
			return nil, s.reject(validationError(MsgMultipleFiles, nil))
		}

		blob, err = s.storePart(part)
		part.Close()
		if err != nil {
			return nil, s.reject(err)
		}
	}

	if blob == nil {
		return nil, s.reject(validationError(MsgNoFile, nil))
	}

	// 6. Метаданные
	rec, err := s.files.Insert(ctx, model.NewFile{
		StorageKey:   blob.result.Key,
		OriginalName: blob.originalName,
		Path:         blob.result.FullPath,
		Size:         blob.result.Size,
		MimeType:     blob.mimeType,
	})
	if err != nil {
		s.discard(blob)
		if errors.Is(err, repository.ErrInvalid) {
			return nil, s.reject(validationError(MsgInvalidFileName, err))
		}
		s.logger.Error("Ошибка сохранения метаданных",
			slog.String("storage_key", blob.result.Key),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		return nil, databaseError(MsgUploadFailed, err)
	}

	// 7. Commit — best effort, данные уже сохранены
	if err := s.journal.Commit(blob.entry.TxID); err != nil {
		s.logger.Warn("Ошибка коммита журнала (данные сохранены)",
			slog.String("tx_id", blob.entry.TxID),
			slog.String("error", err.Error()),
		)
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadBytesTotal.Add(float64(rec.Size))

	s.logger.Info("Файл загружен",
		slog.String("file_id", rec.ID),
		slog.String("storage_key", rec.StorageKey),
		slog.String("original_name", rec.OriginalName),
		slog.String("mime_type", rec.MimeType),
		slog.Int64("size", rec.Size),
		slog.Duration("duration", time.Since(start)),
	)

	return rec, nil
}

// storePart проверяет тип и записывает часть "file" на диск.
func (s *UploadService) storePart(part *multipart.Part) (*storedBlob, error) {
	// 2. MIME проверяется до записи
	mimeType := model.NormalizeContentType(part.Header.Get("Content-Type"))
	if !model.IsAllowedMimeType(mimeType) {
		return nil, validationError(MsgTypeNotAllowed, nil)
	}

	// Имя сохраняется в метаданных: отказ до записи blob-а,
	// иначе вставка упадёт уже после записи на диск
	originalName := part.FileName()
	if !model.ValidOriginalName(originalName) {
		return nil, validationError(MsgInvalidFileName, nil)
	}
	key := filestore.GenerateKey(originalName, time.Now())

	// 3. Журнал до записи blob-а
	entry, err := s.journal.Begin(key)
	if err != nil {
		s.logger.Error("Ошибка записи в журнал", slog.String("error", err.Error()))
		return nil, storageError(MsgUploadFailed, err)
	}

	// 4. Запись blob-а
	result, err := s.store.PutWithKey(key, part, model.MaxUploadSize)
	if err != nil {
		s.abort(entry)

		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, filestore.ErrTooLarge), errors.As(err, &maxErr):
			return nil, validationError(MsgFileTooLarge, err)
		case isClientAbort(err):
			return nil, validationError(MsgMalformedUpload, err)
		default:
			s.logger.Error("Ошибка записи файла на диск",
				slog.String("storage_key", key),
				slog.String("error", err.Error()),
			)
			return nil, storageError(MsgUploadFailed, err)
		}
	}

	return &storedBlob{
		entry:        entry,
		result:       result,
		originalName: originalName,
		mimeType:     mimeType,
	}, nil
}

// discard удаляет blob и отменяет запись журнала. При ошибке удаления
// запись остаётся pending для восстановления при старте.
func (s *UploadService) discard(blob *storedBlob) {
	if blob == nil {
		return
	}
	if err := s.store.Delete(blob.result.Key); err != nil {
		s.logger.Error("Не удалось удалить blob после ошибки загрузки",
			slog.String("storage_key", blob.result.Key),
			slog.String("tx_id", blob.entry.TxID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.abort(blob.entry)
}

func (s *UploadService) abort(entry *journal.Entry) {
	if err := s.journal.Abort(entry.TxID); err != nil {
		s.logger.Warn("Ошибка отмены записи журнала",
			slog.String("tx_id", entry.TxID),
			slog.String("error", err.Error()),
		)
	}
}

// reject учитывает отказ в метриках.
func (s *UploadService) reject(err error) error {
	result := "error"
	if IsKind(err, KindValidation) {
		result = "rejected"
		s.logger.Debug("Загрузка отклонена", slog.String("error", err.Error()))
	}
	middleware.OperationsTotal.WithLabelValues("upload", result).Inc()
	return err
}

// partError классифицирует ошибку чтения multipart-потока.
func partError(err error) *Error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return validationError(MsgFileTooLarge, err)
	}
	return validationError(MsgMalformedUpload, err)
}

// isClientAbort — поток оборвался или формат multipart нарушен.
// Это ошибка клиента, а не диска.
func isClientAbort(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, multipart.ErrMessageTooLarge)
}
