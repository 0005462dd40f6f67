package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// MemoryFileRepository — потокобезопасное in-memory хранилище метаданных.
// Используется для DSN memory:// (разработка) и в тестах.
// Не персистентное: после рестарта список пуст.
type MemoryFileRepository struct {
	mu    sync.RWMutex
	files map[string]*model.FileRecord // id → record
	keys  map[string]string            // storage key → id
	now   func() time.Time
}

// NewMemoryFileRepository создаёт пустое in-memory хранилище.
func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{
		files: make(map[string]*model.FileRecord),
		keys:  make(map[string]string),
		now:   time.Now,
	}
}

// Insert сохраняет запись. Storage key должен быть уникален.
func (m *MemoryFileRepository) Insert(_ context.Context, f model.NewFile) (*model.FileRecord, error) {
	if err := validateNew(f); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[f.StorageKey]; ok {
		return nil, fmt.Errorf("%w: storage key %s уже занят", ErrConflict, f.StorageKey)
	}

	rec := f.Record(uuid.New().String(), m.now())
	m.files[rec.ID] = rec
	m.keys[rec.StorageKey] = rec.ID

	copied := *rec
	return &copied, nil
}

// List возвращает копии всех записей, новые первые.
func (m *MemoryFileRepository) List(_ context.Context) ([]*model.FileRecord, error) {
	m.mu.RLock()
	result := make([]*model.FileRecord, 0, len(m.files))
	for _, rec := range m.files {
		copied := *rec
		result = append(result, &copied)
	}
	m.mu.RUnlock()

	model.SortNewestFirst(result)
	return result, nil
}

// GetByID возвращает копию записи по ID.
func (m *MemoryFileRepository) GetByID(_ context.Context, id string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// GetByStorageKey возвращает копию записи по ключу blob-а.
func (m *MemoryFileRepository) GetByStorageKey(_ context.Context, key string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m.files[id]
	return &copied, nil
}

// Delete удаляет запись по ID.
func (m *MemoryFileRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.keys, rec.StorageKey)
	delete(m.files, id)
	return nil
}

// Count возвращает количество записей.
func (m *MemoryFileRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
