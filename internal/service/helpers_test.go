package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/repository"
	"github.com/bigkaa/filehub/internal/storage/filestore"
	"github.com/bigkaa/filehub/internal/storage/journal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — сервисы поверх временной директории и in-memory хранилища.
type testEnv struct {
	store   *filestore.FileStore
	journal *journal.Journal
	repo    *repository.MemoryFileRepository
	uploads *UploadService
	files   *FileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, nil)
}

// newTestEnvWithRepo позволяет подменить репозиторий, видимый сервисам.
func newTestEnvWithRepo(t *testing.T, wrap func(repository.FileRepository) repository.FileRepository) *testEnv {
	t.Helper()
	root := t.TempDir()

	store, err := filestore.New(filepath.Join(root, "uploads"))
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	jrnl, err := journal.New(filepath.Join(root, "journal"), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	repo := repository.NewMemoryFileRepository()
	var files repository.FileRepository = repo
	if wrap != nil {
		files = wrap(repo)
	}

	return &testEnv{
		store:   store,
		journal: jrnl,
		repo:    repo,
		uploads: NewUploadService(store, jrnl, files, testLogger()),
		files:   NewFileService(files, store, testLogger()),
	}
}

// blobCount — количество файлов в директории загрузок.
func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.store.Dir())
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n
}

// upload загружает один текстовый файл и возвращает запись.
func (e *testEnv) upload(t *testing.T, name, content string) *model.FileRecord {
	t.Helper()
	req := multipartRequest(t, testPart{field: "file", filename: name, contentType: "text/plain", body: []byte(content)})
	rec, err := e.uploads.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	return rec
}

// testPart — часть multipart-формы.
type testPart struct {
	field       string
	filename    string
	contentType string
	body        []byte
}

func multipartRequest(t *testing.T, parts ...testPart) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		disposition := `form-data; name="` + p.field + `"`
		if p.filename != "" {
			disposition += `; filename="` + p.filename + `"`
		}
		h.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("ошибка создания части: %v", err)
		}
		if _, err := w.Write(p.body); err != nil {
			t.Fatalf("ошибка записи части: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("ошибка закрытия multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// assertKind проверяет тип и сообщение ошибки сервиса.
func assertKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	se, ok := AsError(err)
	if !ok {
		t.Fatalf("ожидалась *service.Error, получено: %v", err)
	}
	if se.Kind != kind {
		t.Errorf("Kind = %s, ожидался %s", se.Kind, kind)
	}
	if msg != "" && se.Message != msg {
		t.Errorf("Message = %q, ожидалось %q", se.Message, msg)
	}
}

var errBackend = errors.New("хранилище недоступно")

// failingRepo — репозиторий с управляемыми отказами.
type failingRepo struct {
	repository.FileRepository
	failInsert bool
	insertErr  error
	failGet    bool
	failDelete bool
}

func (f *failingRepo) Insert(ctx context.Context, nf model.NewFile) (*model.FileRecord, error) {
	if f.failInsert {
		return nil, errBackend
	}
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return f.FileRepository.Insert(ctx, nf)
}

func (f *failingRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if f.failGet {
		return nil, errBackend
	}
	return f.FileRepository.GetByID(ctx, id)
}

func (f *failingRepo) GetByStorageKey(ctx context.Context, key string) (*model.FileRecord, error) {
	if f.failGet {
		return nil, errBackend
	}
	return f.FileRepository.GetByStorageKey(ctx, key)
}

func (f *failingRepo) Delete(ctx context.Context, id string) error {
	if f.failDelete {
		return errBackend
	}
	return f.FileRepository.Delete(ctx, id)
}
