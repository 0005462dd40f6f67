// recover.go — разбор незавершённых загрузок при старте.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/filehub/internal/api/middleware"
	"github.com/bigkaa/filehub/internal/repository"
	"github.com/bigkaa/filehub/internal/storage/filestore"
	"github.com/bigkaa/filehub/internal/storage/journal"
)

// RecoveryStats — итог восстановления.
type RecoveryStats struct {
	// Committed — загрузки, для которых метаданные нашлись
	Committed int
	// Removed — осиротевшие blob-ы, удалённые с диска
	Removed int
	// Aborted — загрузки, прерванные до записи blob-а
	Aborted int
	// Failed — записи, оставшиеся pending до следующего старта
	Failed int
	// TempRemoved — удалённые временные файлы прерванных записей
	TempRemoved int
}

// RecoverUploads разбирает pending-записи журнала:
//   - метаданные есть → загрузка завершилась, запись коммитится;
//   - метаданных нет → blob удаляется, запись отменяется;
//   - метаданных и blob-а нет → запись просто отменяется;
//   - хранилище недоступно или удаление не удалось → запись остаётся pending.
//
// Вызывается до запуска HTTP-сервера.
func RecoverUploads(
	ctx context.Context,
	jrnl *journal.Journal,
	store *filestore.FileStore,
	files repository.FileRepository,
	logger *slog.Logger,
) (RecoveryStats, error) {
	logger = logger.With(slog.String("component", "recovery"))
	var stats RecoveryStats

	removed, err := store.CleanTemp()
	if err != nil {
		logger.Warn("Ошибка очистки временных файлов", slog.String("error", err.Error()))
	}
	stats.TempRemoved = removed

	pending, err := jrnl.Pending()
	if err != nil {
		return stats, err
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		log := logger.With(
			slog.String("tx_id", entry.TxID),
			slog.String("storage_key", entry.StorageKey),
		)

		_, err := files.GetByStorageKey(ctx, entry.StorageKey)
		switch {
		case err == nil:
			if err := jrnl.Commit(entry.TxID); err != nil {
				log.Warn("Ошибка коммита записи журнала", slog.String("error", err.Error()))
				stats.Failed++
				continue
			}
			stats.Committed++

		case errors.Is(err, repository.ErrNotFound) && !store.Exists(entry.StorageKey):
			if err := jrnl.Abort(entry.TxID); err != nil {
				log.Warn("Ошибка отмены записи журнала", slog.String("error", err.Error()))
				stats.Failed++
				continue
			}
			log.Info("Загрузка прервалась до записи blob-а")
			stats.Aborted++

		case errors.Is(err, repository.ErrNotFound):
			if err := store.Delete(entry.StorageKey); err != nil {
				log.Error("Не удалось удалить осиротевший blob", slog.String("error", err.Error()))
				stats.Failed++
				continue
			}
			if err := jrnl.Abort(entry.TxID); err != nil {
				log.Warn("Ошибка отмены записи журнала", slog.String("error", err.Error()))
			}
			log.Info("Удалён blob незавершённой загрузки")
			stats.Removed++

		default:
			log.Error("Хранилище метаданных недоступно при восстановлении", slog.String("error", err.Error()))
			stats.Failed++
		}
	}

	if _, err := jrnl.Clean(); err != nil {
		logger.Warn("Ошибка очистки журнала", slog.String("error", err.Error()))
	}

	middleware.OperationsTotal.WithLabelValues("recover", "success").Add(float64(stats.Committed + stats.Removed + stats.Aborted))
	middleware.OperationsTotal.WithLabelValues("recover", "error").Add(float64(stats.Failed))

	logger.Info("Восстановление загрузок завершено",
		slog.Int("pending", len(pending)),
		slog.Int("committed", stats.Committed),
		slog.Int("removed", stats.Removed),
		slog.Int("aborted", stats.Aborted),
		slog.Int("failed", stats.Failed),
		slog.Int("temp_removed", stats.TempRemoved),
	)
	return stats, nil
}
