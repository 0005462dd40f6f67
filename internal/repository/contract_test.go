package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/repository"
)

func newFile(key string) model.NewFile {
	return model.NewFile{
		StorageKey:   key,
		OriginalName: "notes-" + key + ".txt",
		Path:         "uploads/" + key,
		Size:         42,
		MimeType:     "text/plain",
	}
}

// runFileRepositoryContract проверяет общее поведение всех реализаций
// FileRepository. Репозиторий должен быть пустым.
func runFileRepositoryContract(t *testing.T, repo repository.FileRepository, missingID string) {
	t.Helper()
	ctx := context.Background()

	t.Run("пустой список", func(t *testing.T) {
		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() ошибка: %v", err)
		}
		if list == nil || len(list) != 0 {
			t.Fatalf("ожидался пустой ненулевой срез, получено %#v", list)
		}
	})

	t.Run("вставка и чтение", func(t *testing.T) {
		in := newFile("1700000000000-aaaa0001.txt")
		rec, err := repo.Insert(ctx, in)
		if err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
		if rec.ID == "" {
			t.Fatal("ID не назначен")
		}
		if rec.UploadedAt.IsZero() {
			t.Fatal("UploadedAt не назначен")
		}

		got, err := repo.GetByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetByID() ошибка: %v", err)
		}
		if got.StorageKey != in.StorageKey || got.OriginalName != in.OriginalName ||
			got.Path != in.Path || got.Size != in.Size || got.MimeType != in.MimeType {
			t.Errorf("запись не совпадает: %+v", got)
		}
		if !got.UploadedAt.Equal(rec.UploadedAt) {
			t.Errorf("UploadedAt = %v, ожидалось %v", got.UploadedAt, rec.UploadedAt)
		}

		byKey, err := repo.GetByStorageKey(ctx, in.StorageKey)
		if err != nil {
			t.Fatalf("GetByStorageKey() ошибка: %v", err)
		}
		if byKey.ID != rec.ID {
			t.Errorf("GetByStorageKey вернул ID %q, ожидался %q", byKey.ID, rec.ID)
		}

		if err := repo.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("Delete() ошибка: %v", err)
		}
	})

	t.Run("дубликат storage key", func(t *testing.T) {
		in := newFile("1700000000000-aaaa0002.txt")
		rec, err := repo.Insert(ctx, in)
		if err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
		defer repo.Delete(ctx, rec.ID) //nolint:errcheck

		if _, err := repo.Insert(ctx, in); !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("ожидалась ErrConflict, получено: %v", err)
		}
	})

	t.Run("невалидная запись", func(t *testing.T) {
		in := newFile("1700000000000-aaaa0003.txt")
		in.MimeType = "application/x-msdownload"
		if _, err := repo.Insert(ctx, in); !errors.Is(err, repository.ErrInvalid) {
			t.Fatalf("ожидалась ErrInvalid, получено: %v", err)
		}
	})

	t.Run("порядок списка", func(t *testing.T) {
		var ids []string
		for i := 1; i <= 3; i++ {
			rec, err := repo.Insert(ctx, newFile(fmt.Sprintf("1700000000000-bbbb000%d.txt", i)))
			if err != nil {
				t.Fatalf("Insert() ошибка: %v", err)
			}
			ids = append(ids, rec.ID)
			time.Sleep(5 * time.Millisecond)
		}

		list, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() ошибка: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("List() вернул %d записей, ожидалось 3", len(list))
		}
		for i, want := range []string{ids[2], ids[1], ids[0]} {
			if list[i].ID != want {
				t.Errorf("list[%d].ID = %q, ожидался %q", i, list[i].ID, want)
			}
		}

		for _, id := range ids {
			if err := repo.Delete(ctx, id); err != nil {
				t.Fatalf("Delete() ошибка: %v", err)
			}
		}
	})

	t.Run("отсутствующие записи", func(t *testing.T) {
		for _, id := range []string{missingID, "not-a-valid-id", ""} {
			if _, err := repo.GetByID(ctx, id); !errors.Is(err, repository.ErrNotFound) {
				t.Errorf("GetByID(%q): ожидалась ErrNotFound, получено: %v", id, err)
			}
			if err := repo.Delete(ctx, id); !errors.Is(err, repository.ErrNotFound) {
				t.Errorf("Delete(%q): ожидалась ErrNotFound, получено: %v", id, err)
			}
		}
		if _, err := repo.GetByStorageKey(ctx, "no-such-key"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetByStorageKey: ожидалась ErrNotFound, получено: %v", err)
		}
	})

	t.Run("повторное удаление", func(t *testing.T) {
		rec, err := repo.Insert(ctx, newFile("1700000000000-aaaa0004.txt"))
		if err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
		if err := repo.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("Delete() ошибка: %v", err)
		}
		if err := repo.Delete(ctx, rec.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено: %v", err)
		}
		if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено: %v", err)
		}
	})
}
