package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bigkaa/filehub/internal/repository"
)

func TestFileService_ListEmpty(t *testing.T) {
	env := newTestEnv(t)

	records, err := env.files.List(context.Background())
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("ожидался пустой не-nil список, получено %v", records)
	}
}

func TestFileService_ListNewestFirst(t *testing.T) {
	env := newTestEnv(t)

	first := env.upload(t, "a.txt", "a")
	time.Sleep(2 * time.Millisecond)
	second := env.upload(t, "b.txt", "b")

	records, err := env.files.List(context.Background())
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(records))
	}
	if records[0].ID != second.ID || records[1].ID != first.ID {
		t.Errorf("неверный порядок: %s, %s", records[0].OriginalName, records[1].OriginalName)
	}
}

func TestFileService_Get(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "a.txt", "a")

	got, err := env.files.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ошибка Get: %v", err)
	}
	if got.StorageKey != rec.StorageKey {
		t.Errorf("StorageKey = %q, ожидался %q", got.StorageKey, rec.StorageKey)
	}

	_, err = env.files.Get(context.Background(), "missing-id")
	assertKind(t, err, KindNotFound, MsgFileNotFound)
}

func TestFileService_GetBackendFailure(t *testing.T) {
	env := newTestEnvWithRepo(t, func(r repository.FileRepository) repository.FileRepository {
		return &failingRepo{FileRepository: r, failGet: true}
	})

	_, err := env.files.Get(context.Background(), "any")
	assertKind(t, err, KindDatabase, MsgGetFailed)
}

func TestFileService_Open(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "a.txt", "content")

	dl, err := env.files.Open(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("ошибка Open: %v", err)
	}
	defer dl.File.Close()

	data, err := io.ReadAll(dl.File)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("содержимое = %q", data)
	}
	if dl.Record.OriginalName != "a.txt" {
		t.Errorf("OriginalName = %q", dl.Record.OriginalName)
	}
}

// TestFileService_OpenMissingBlob проверяет 404 при записи без blob-а.
func TestFileService_OpenMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "a.txt", "content")

	if err := env.store.Delete(rec.StorageKey); err != nil {
		t.Fatalf("ошибка удаления blob-а: %v", err)
	}

	_, err := env.files.Open(context.Background(), rec.ID)
	assertKind(t, err, KindNotFound, MsgBlobNotFound)

	// Запись не удаляется
	if _, err := env.files.Get(context.Background(), rec.ID); err != nil {
		t.Errorf("запись должна остаться: %v", err)
	}
}

func TestFileService_OpenUnknownID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.files.Open(context.Background(), "missing-id")
	assertKind(t, err, KindNotFound, MsgFileNotFound)
}

func TestFileService_Delete(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "a.txt", "a")
	other := env.upload(t, "b.txt", "b")

	if err := env.files.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("ошибка Delete: %v", err)
	}

	if env.store.Exists(rec.StorageKey) {
		t.Error("blob должен быть удалён")
	}
	_, err := env.files.Get(context.Background(), rec.ID)
	assertKind(t, err, KindNotFound, MsgFileNotFound)

	// Остальные файлы не затронуты
	if !env.store.Exists(other.StorageKey) {
		t.Error("чужой blob удалён")
	}
	if env.repo.Count() != 1 {
		t.Errorf("ожидалась 1 запись, найдено %d", env.repo.Count())
	}

	// Повторное удаление — 404
	err = env.files.Delete(context.Background(), rec.ID)
	assertKind(t, err, KindNotFound, MsgFileNotFound)
}

// TestFileService_DeleteMissingBlob проверяет удаление записи без blob-а.
func TestFileService_DeleteMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "a.txt", "a")

	if err := env.store.Delete(rec.StorageKey); err != nil {
		t.Fatalf("ошибка удаления blob-а: %v", err)
	}

	if err := env.files.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("удаление записи без blob-а должно быть успешным: %v", err)
	}
	if env.repo.Count() != 0 {
		t.Errorf("запись должна быть удалена")
	}
}

func TestFileService_DeleteBackendFailure(t *testing.T) {
	var failing *failingRepo
	env := newTestEnvWithRepo(t, func(r repository.FileRepository) repository.FileRepository {
		failing = &failingRepo{FileRepository: r}
		return failing
	})
	rec := env.upload(t, "a.txt", "a")

	failing.failDelete = true
	err := env.files.Delete(context.Background(), rec.ID)
	assertKind(t, err, KindDatabase, MsgDeleteFailed)
}
