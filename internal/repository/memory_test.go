package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bigkaa/filehub/internal/repository"
)

func TestMemoryFileRepository_Contract(t *testing.T) {
	runFileRepositoryContract(t, repository.NewMemoryFileRepository(), "00000000-0000-0000-0000-000000000000")
}

// TestMemoryFileRepository_ReturnsCopies проверяет, что изменения
// возвращённой записи не влияют на хранилище.
func TestMemoryFileRepository_ReturnsCopies(t *testing.T) {
	repo := repository.NewMemoryFileRepository()
	ctx := context.Background()

	rec, err := repo.Insert(ctx, newFile("1700000000000-cccc0001.txt"))
	if err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	rec.OriginalName = "изменено"

	got, _ := repo.GetByID(ctx, rec.ID)
	if got.OriginalName == "изменено" {
		t.Error("хранилище вернуло ссылку вместо копии")
	}
}

// TestMemoryFileRepository_Concurrent проверяет параллельную вставку.
func TestMemoryFileRepository_Concurrent(t *testing.T) {
	repo := repository.NewMemoryFileRepository()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Insert(ctx, newFile(fmt.Sprintf("key-%03d.txt", i))); err != nil {
				t.Errorf("Insert() ошибка: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if repo.Count() != n {
		t.Errorf("Count() = %d, ожидалось %d", repo.Count(), n)
	}
	list, _ := repo.List(ctx)
	if len(list) != n {
		t.Errorf("List() вернул %d записей, ожидалось %d", len(list), n)
	}
}
