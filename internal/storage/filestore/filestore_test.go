package filestore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

// TestNew_CreatesDirectory проверяет создание директории загрузок.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.Dir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.Dir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestPut проверяет сохранение файла и формат ключа.
func TestPut(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("Hello, World! Тестовые данные для проверки.")

	result, err := fs.Put(bytes.NewReader(content), "Report.PDF", 0)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	if !regexp.MustCompile(`^\d+-[0-9a-f]{8}\.pdf$`).MatchString(result.Key) {
		t.Errorf("неожиданный формат ключа: %s", result.Key)
	}

	if result.FullPath != fs.FullPath(result.Key) {
		t.Errorf("FullPath: ожидалось %s, получено %s", fs.FullPath(result.Key), result.FullPath)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	// Временных файлов остаться не должно
	entries, _ := os.ReadDir(fs.Dir())
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), tmpSuffix) {
			t.Errorf("остался временный файл: %s", e.Name())
		}
	}
}

// TestPut_UniqueKeys проверяет уникальность ключей для одинаковых имён.
func TestPut_UniqueKeys(t *testing.T) {
	fs, _ := New(t.TempDir())

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		result, err := fs.Put(strings.NewReader("x"), "same.txt", 0)
		if err != nil {
			t.Fatalf("ошибка сохранения: %v", err)
		}
		if seen[result.Key] {
			t.Fatalf("повторный ключ: %s", result.Key)
		}
		seen[result.Key] = true
	}
}

// TestPut_EmptyFile проверяет сохранение пустого файла.
func TestPut_EmptyFile(t *testing.T) {
	fs, _ := New(t.TempDir())

	result, err := fs.Put(strings.NewReader(""), "empty.txt", 10)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if result.Size != 0 {
		t.Errorf("размер: ожидалось 0, получено %d", result.Size)
	}
	if !fs.Exists(result.Key) {
		t.Error("пустой файл должен существовать")
	}
}

// TestPut_Limit проверяет границу лимита: ровно limit принимается, limit+1 — нет.
func TestPut_Limit(t *testing.T) {
	fs, _ := New(t.TempDir())
	const limit = 1024

	result, err := fs.Put(bytes.NewReader(make([]byte, limit)), "exact.bin", limit)
	if err != nil {
		t.Fatalf("файл ровно limit байт должен приниматься: %v", err)
	}
	if result.Size != limit {
		t.Errorf("размер: ожидалось %d, получено %d", limit, result.Size)
	}

	_, err = fs.Put(bytes.NewReader(make([]byte, limit+1)), "big.bin", limit)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено: %v", err)
	}

	// На диске только первый файл
	entries, _ := os.ReadDir(fs.Dir())
	if len(entries) != 1 {
		t.Errorf("ожидался 1 файл в директории, найдено %d", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("обрыв соединения") }

// TestPut_ReadError проверяет, что ошибка чтения оборачивается в ErrWrite.
func TestPut_ReadError(t *testing.T) {
	fs, _ := New(t.TempDir())

	_, err := fs.Put(failingReader{}, "a.txt", 0)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("ожидалась ErrWrite, получено: %v", err)
	}

	entries, _ := os.ReadDir(fs.Dir())
	if len(entries) != 0 {
		t.Errorf("после ошибки директория должна быть пустой, найдено %d", len(entries))
	}
}

// TestOpen проверяет чтение и отсутствие blob-а.
func TestOpen(t *testing.T) {
	fs, _ := New(t.TempDir())

	result, _ := fs.Put(strings.NewReader("содержимое"), "a.txt", 0)

	f, err := fs.Open(result.Key)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "содержимое" {
		t.Errorf("неожиданное содержимое: %q", data)
	}

	if _, err := fs.Open("1700000000000-deadbeef.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}

// TestOpen_Traversal проверяет отказ для ключей вне директории загрузок.
func TestOpen_Traversal(t *testing.T) {
	root := t.TempDir()
	fs, _ := New(filepath.Join(root, "uploads"))

	secret := filepath.Join(root, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o600); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	for _, key := range []string{"../secret.txt", "..", "", "sub/file.txt", `..\secret.txt`} {
		if _, err := fs.Open(key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): ожидалась ErrNotFound, получено: %v", key, err)
		}
		if fs.Exists(key) {
			t.Errorf("Exists(%q) = true", key)
		}
	}
}

// TestDelete проверяет удаление и идемпотентность.
func TestDelete(t *testing.T) {
	fs, _ := New(t.TempDir())

	result, _ := fs.Put(strings.NewReader("data"), "a.txt", 0)

	if err := fs.Delete(result.Key); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.Exists(result.Key) {
		t.Error("файл должен быть удалён")
	}

	// Повторное удаление — не ошибка
	if err := fs.Delete(result.Key); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	now := time.UnixMilli(1771686245123)

	tests := []struct {
		name    string
		pattern string
	}{
		{"photo.JPG", `^1771686245123-[0-9a-f]{8}\.jpg$`},
		{"archive.tar.gz", `^1771686245123-[0-9a-f]{8}\.gz$`},
		{"README", `^1771686245123-[0-9a-f]{8}$`},
		{"../../etc/passwd", `^1771686245123-[0-9a-f]{8}$`},
		{"weird.$$$", `^1771686245123-[0-9a-f]{8}$`},
	}

	for _, tt := range tests {
		key := GenerateKey(tt.name, now)
		if !regexp.MustCompile(tt.pattern).MatchString(key) {
			t.Errorf("GenerateKey(%q) = %q, не соответствует %s", tt.name, key, tt.pattern)
		}
		if !ValidKey(key) {
			t.Errorf("сгенерированный ключ %q не проходит ValidKey", key)
		}
	}
}

// TestPutWithKey проверяет запись под заданным ключом и отказ при повторе.
func TestPutWithKey(t *testing.T) {
	fs, _ := New(t.TempDir())
	key := GenerateKey("a.txt", time.Now())

	if _, err := fs.PutWithKey(key, strings.NewReader("first"), 0); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if _, err := fs.PutWithKey(key, strings.NewReader("second"), 0); !errors.Is(err, ErrWrite) {
		t.Fatalf("повторная запись должна завершаться ErrWrite, получено: %v", err)
	}

	data, _ := os.ReadFile(fs.FullPath(key))
	if string(data) != "first" {
		t.Errorf("blob перезаписан: %q", data)
	}

	if _, err := fs.PutWithKey("../escape.txt", strings.NewReader("x"), 0); !errors.Is(err, ErrWrite) {
		t.Errorf("ключ с .. должен отклоняться, получено: %v", err)
	}
}

// TestCleanTemp проверяет удаление оставшихся временных файлов.
func TestCleanTemp(t *testing.T) {
	fs, _ := New(t.TempDir())

	result, _ := fs.Put(strings.NewReader("data"), "keep.txt", 0)
	for _, name := range []string{"1-aaaaaaaa.txt.tmp", "2-bbbbbbbb.pdf.tmp"} {
		if err := os.WriteFile(filepath.Join(fs.Dir(), name), []byte("partial"), 0o640); err != nil {
			t.Fatalf("ошибка записи: %v", err)
		}
	}

	removed, err := fs.CleanTemp()
	if err != nil {
		t.Fatalf("ошибка CleanTemp: %v", err)
	}
	if removed != 2 {
		t.Errorf("ожидалось удаление 2 файлов, удалено %d", removed)
	}
	if !fs.Exists(result.Key) {
		t.Error("готовый blob не должен удаляться")
	}
}
