// registry.go — клиентский список файлов (снимок последнего List).
package client

import (
	"context"
	"io"
	"sync"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// FileAPI — операции File API, нужные реестру.
type FileAPI interface {
	List(ctx context.Context) ([]*model.FileRecord, error)
	Upload(ctx context.Context, name, contentType string, r io.Reader, size int64, progress ProgressFunc) (*model.FileRecord, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Registry — снимок списка файлов в памяти.
// Кэша сверх одного снимка нет, пагинации нет.
type Registry struct {
	api FileAPI

	mu    sync.RWMutex
	files []model.FileRecord
	// stale — после загрузки список требует Refresh
	stale bool
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(api FileAPI) *Registry {
	return &Registry{api: api, stale: true}
}

// Files возвращает копию текущего снимка.
func (r *Registry) Files() []model.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.FileRecord, len(r.files))
	copy(out, r.files)
	return out
}

// Stale сообщает, что снимок устарел (после загрузки или до первого Refresh).
func (r *Registry) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}

// Refresh заменяет снимок целиком. При ошибке прежний снимок сохраняется.
func (r *Registry) Refresh(ctx context.Context) error {
	records, err := r.api.List(ctx)
	if err != nil {
		return err
	}

	files := make([]model.FileRecord, 0, len(records))
	for _, rec := range records {
		files = append(files, *rec)
	}

	r.mu.Lock()
	r.files = files
	r.stale = false
	r.mu.Unlock()
	return nil
}

// Upload загружает файл через API. Снимок не меняется: после успеха
// он помечается устаревшим, вызывающий код делает Refresh.
func (r *Registry) Upload(
	ctx context.Context,
	name, contentType string,
	body io.Reader,
	size int64,
	progress ProgressFunc,
) (*model.FileRecord, error) {
	rec, err := r.api.Upload(ctx, name, contentType, body, size, progress)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
	return rec, nil
}

// Remove удаляет файл через API и только после успеха убирает его из снимка.
func (r *Registry) Remove(ctx context.Context, id string) (string, error) {
	msg, err := r.api.Delete(ctx, id)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.files {
		if r.files[i].ID == id {
			r.files = append(r.files[:i:i], r.files[i+1:]...)
			break
		}
	}
	return msg, nil
}
