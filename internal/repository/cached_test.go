package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/repository"
)

// countingRepo считает обращения к GetByID нижележащего хранилища.
type countingRepo struct {
	repository.FileRepository
	gets int
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	c.gets++
	return c.FileRepository.GetByID(ctx, id)
}

func TestCachedFileRepository_Contract(t *testing.T) {
	repo := repository.NewCachedFileRepository(repository.NewMemoryFileRepository(), 100, time.Minute)
	runFileRepositoryContract(t, repo, "00000000-0000-0000-0000-000000000000")
}

// TestCachedFileRepository_Hit проверяет, что повторное чтение идёт из кэша.
func TestCachedFileRepository_Hit(t *testing.T) {
	inner := &countingRepo{FileRepository: repository.NewMemoryFileRepository()}
	repo := repository.NewCachedFileRepository(inner, 100, time.Minute)
	ctx := context.Background()

	rec, err := repo.Insert(ctx, newFile("1700000000000-dddd0001.txt"))
	if err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if repo.Len() != 1 {
		t.Errorf("Insert должен прогревать кэш, Len() = %d", repo.Len())
	}

	for i := 0; i < 3; i++ {
		got, err := repo.GetByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetByID() ошибка: %v", err)
		}
		if got.ID != rec.ID {
			t.Errorf("GetByID вернул %q", got.ID)
		}
	}
	if inner.gets != 0 {
		t.Errorf("ожидалось 0 обращений к хранилищу, получено %d", inner.gets)
	}
}

// TestCachedFileRepository_DeleteInvalidates проверяет инвалидацию при удалении.
func TestCachedFileRepository_DeleteInvalidates(t *testing.T) {
	inner := &countingRepo{FileRepository: repository.NewMemoryFileRepository()}
	repo := repository.NewCachedFileRepository(inner, 100, time.Minute)
	ctx := context.Background()

	rec, _ := repo.Insert(ctx, newFile("1700000000000-dddd0002.txt"))

	if err := repo.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, rec.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound после удаления, получено: %v", err)
	}
	if inner.gets != 1 {
		t.Errorf("после удаления чтение должно идти в хранилище, обращений: %d", inner.gets)
	}
}

// TestCachedFileRepository_TTL проверяет истечение записей.
func TestCachedFileRepository_TTL(t *testing.T) {
	inner := &countingRepo{FileRepository: repository.NewMemoryFileRepository()}
	repo := repository.NewCachedFileRepository(inner, 100, 20*time.Millisecond)
	ctx := context.Background()

	rec, _ := repo.Insert(ctx, newFile("1700000000000-dddd0003.txt"))
	time.Sleep(60 * time.Millisecond)

	if _, err := repo.GetByID(ctx, rec.ID); err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if inner.gets != 1 {
		t.Errorf("после истечения TTL ожидалось обращение к хранилищу, обращений: %d", inner.gets)
	}
}
