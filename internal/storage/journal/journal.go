// Пакет journal — журнал загрузок. Перед записью blob-а в журнал
// заносится pending-запись с ключом blob-а; после вставки метаданных
// запись коммитится. Незавершённые записи разбираются при старте.
// Каждая запись — отдельный файл {tx}.journal.json, который удаляется
// при завершении: на диске остаются только pending-записи.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status — статус записи журнала.
type Status string

const (
	// StatusPending — blob записывается или метаданные ещё не вставлены
	StatusPending Status = "pending"
	// StatusCommitted — метаданные вставлены, загрузка завершена
	StatusCommitted Status = "committed"
	// StatusAborted — загрузка отменена, blob удалён
	StatusAborted Status = "aborted"
)

// entrySuffix — суффикс файлов журнала.
const entrySuffix = ".journal.json"

// ErrNotPending — попытка завершить уже завершённую запись.
var ErrNotPending = errors.New("запись журнала не в статусе pending")

// Entry — запись журнала загрузки.
type Entry struct {
	// TxID — идентификатор записи (UUID v4)
	TxID string `json:"tx_id"`
	// StorageKey — ключ blob-а в директории загрузок
	StorageKey string `json:"storage_key"`
	// Status — текущий статус
	Status Status `json:"status"`
	// StartedAt — время начала загрузки (UTC)
	StartedAt time.Time `json:"started_at"`
	// FinishedAt — время завершения, nil для pending
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Journal — файловый журнал загрузок.
type Journal struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// New создаёт журнал. Создаёт директорию и проверяет её доступность на запись.
func New(dir string, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию журнала %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".journal_write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return nil, fmt.Errorf("директория журнала %s недоступна для записи: %w", dir, err)
	}
	os.Remove(probe)

	return &Journal{
		dir:    dir,
		logger: logger.With(slog.String("component", "journal")),
	}, nil
}

// Begin создаёт pending-запись для blob-а с ключом storageKey.
func (j *Journal) Begin(storageKey string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		TxID:       uuid.New().String(),
		StorageKey: storageKey,
		Status:     StatusPending,
		StartedAt:  time.Now().UTC(),
	}

	if err := j.write(entry); err != nil {
		return nil, fmt.Errorf("не удалось создать запись журнала: %w", err)
	}

	j.logger.Debug("Загрузка занесена в журнал",
		slog.String("tx_id", entry.TxID),
		slog.String("storage_key", storageKey),
	)
	return entry, nil
}

// Commit завершает загрузку: метаданные сохранены, запись больше не нужна.
func (j *Journal) Commit(txID string) error {
	return j.finish(txID, StatusCommitted)
}

// Abort завершает загрузку, отменённую после удаления blob-а.
func (j *Journal) Abort(txID string) error {
	return j.finish(txID, StatusAborted)
}

func (j *Journal) finish(txID string, status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, err := j.read(txID)
	if err != nil {
		return fmt.Errorf("не удалось прочитать запись журнала %s: %w", txID, err)
	}
	if entry.Status != StatusPending {
		return fmt.Errorf("%w: %s (%s)", ErrNotPending, txID, entry.Status)
	}

	now := time.Now().UTC()
	log := j.logger.With(
		slog.String("tx_id", txID),
		slog.String("status", string(status)),
	)

	// 1. Завершённая запись не несёт информации — удаляем файл
	path := filepath.Join(j.dir, txID+entrySuffix)
	err = os.Remove(path)
	if err == nil {
		log.Debug("Запись журнала завершена", slog.Duration("duration", now.Sub(entry.StartedAt)))
		return nil
	}

	// 2. Удалить не удалось — фиксируем статус, файл уберёт Clean при старте
	log.Warn("Не удалось удалить запись журнала, статус сохраняется в файле",
		slog.String("error", err.Error()),
	)
	entry.Status = status
	entry.FinishedAt = &now
	if err := j.write(entry); err != nil {
		return fmt.Errorf("не удалось обновить запись журнала %s: %w", txID, err)
	}
	return nil
}

// Get читает запись по идентификатору.
func (j *Journal) Get(txID string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read(txID)
}

// Pending возвращает все незавершённые записи, старые первые.
func (j *Journal) Pending() ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var pending []*Entry
	err := j.scan(func(_ string, entry *Entry) {
		if entry.Status == StatusPending {
			pending = append(pending, entry)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(pending, func(a, b int) bool {
		return pending[a].StartedAt.Before(pending[b].StartedAt)
	})
	return pending, nil
}

// Clean удаляет завершённые записи, которые не удалось убрать при
// Commit/Abort. Возвращает количество удалённых.
func (j *Journal) Clean() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cleaned := 0
	err := j.scan(func(path string, entry *Entry) {
		if entry.Status == StatusPending {
			return
		}
		if err := os.Remove(path); err != nil {
			j.logger.Warn("Не удалось удалить завершённую запись журнала",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return
		}
		cleaned++
	})
	if err != nil {
		return 0, err
	}

	if cleaned > 0 {
		j.logger.Info("Очистка журнала завершена", slog.Int("cleaned", cleaned))
	}
	return cleaned, nil
}

// Dir возвращает директорию журнала.
func (j *Journal) Dir() string {
	return j.dir
}

// scan обходит все записи журнала. Нечитаемые записи пропускаются с предупреждением.
func (j *Journal) scan(fn func(path string, entry *Entry)) error {
	paths, err := filepath.Glob(filepath.Join(j.dir, "*"+entrySuffix))
	if err != nil {
		return fmt.Errorf("не удалось сканировать директорию журнала: %w", err)
	}

	for _, path := range paths {
		txID := strings.TrimSuffix(filepath.Base(path), entrySuffix)
		entry, err := j.read(txID)
		if err != nil {
			j.logger.Warn("Не удалось прочитать запись журнала",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		fn(path, entry)
	}
	return nil
}

// write атомарно записывает запись: temp файл → fsync → rename.
func (j *Journal) write(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	target := filepath.Join(j.dir, entry.TxID+entrySuffix)
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка записи: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

func (j *Journal) read(txID string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, txID+entrySuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return &entry, nil
}
