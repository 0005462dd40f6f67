// Пакет filestore — blob-хранилище загруженных файлов на локальном диске.
// Запись потоковая: temp файл → fsync → атомарный rename.
// Ключ blob-а одновременно является именем файла в директории загрузок.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ошибки blob-хранилища.
var (
	// ErrNotFound — blob с таким ключом отсутствует.
	ErrNotFound = errors.New("blob не найден")
	// ErrTooLarge — поток превысил допустимый размер.
	ErrTooLarge = errors.New("превышен максимальный размер файла")
	// ErrWrite — ошибка записи на диск.
	ErrWrite = errors.New("ошибка записи blob")
)

// tmpSuffix — суффикс временных файлов, пока запись не завершена.
const tmpSuffix = ".tmp"

// FileStore — управление blob-ами в директории загрузок.
type FileStore struct {
	// dir — директория загрузок (FH_UPLOAD_DIR)
	dir string
}

// PutResult — результат сохранения blob-а.
type PutResult struct {
	// Key — уникальное имя blob-а (storageKey)
	Key string
	// FullPath — путь файла на диске
	FullPath string
	// Size — количество записанных байт
	Size int64
}

// New создаёт FileStore. Создаёт директорию, если её нет.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Put записывает поток под новым уникальным ключом и возвращает ключ.
// limit — максимальный размер в байтах (<= 0 — без ограничения).
// При превышении limit возвращается ErrTooLarge, temp файл удаляется.
func (fs *FileStore) Put(r io.Reader, originalName string, limit int64) (*PutResult, error) {
	return fs.PutWithKey(GenerateKey(originalName, time.Now()), r, limit)
}

// PutWithKey записывает поток под заранее сгенерированным ключом.
// Нужен, когда ключ должен быть известен до записи (журнал загрузок).
// Существующий blob с тем же ключом не перезаписывается.
func (fs *FileStore) PutWithKey(key string, r io.Reader, limit int64) (*PutResult, error) {
	fullPath, ok := fs.resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: недопустимый ключ %q", ErrWrite, key)
	}
	if _, err := os.Lstat(fullPath); err == nil {
		return nil, fmt.Errorf("%w: blob %s уже существует", ErrWrite, key)
	}
	tmpPath := fullPath + tmpSuffix

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: создание временного файла: %v", ErrWrite, err)
	}

	src := r
	if limit > 0 {
		// Читаем на байт больше лимита, чтобы отличить "ровно limit" от превышения
		src = io.LimitReader(r, limit+1)
	}

	size, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if limit > 0 && size > limit {
		f.Close()
		os.Remove(tmpPath)
		return nil, ErrTooLarge
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: fsync: %v", ErrWrite, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: закрытие файла: %v", ErrWrite, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: атомарное переименование: %v", ErrWrite, err)
	}

	return &PutResult{
		Key:      key,
		FullPath: fullPath,
		Size:     size,
	}, nil
}

// Exists проверяет наличие blob-а.
func (fs *FileStore) Exists(key string) bool {
	path, ok := fs.resolve(key)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(key string) (*os.File, error) {
	path, ok := fs.resolve(key)
	if !ok {
		return nil, ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия blob %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет blob. Отсутствие blob-а ошибкой не считается.
func (fs *FileStore) Delete(key string) error {
	path, ok := fs.resolve(key)
	if !ok {
		return nil
	}

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob %s: %w", key, err)
	}
	return nil
}

// CleanTemp удаляет временные файлы, оставшиеся от прерванных записей.
// Вызывается при старте, до приёма запросов.
func (fs *FileStore) CleanTemp() (int, error) {
	paths, err := filepath.Glob(filepath.Join(fs.dir, "*"+tmpSuffix))
	if err != nil {
		return 0, fmt.Errorf("ошибка сканирования директории загрузок: %w", err)
	}

	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("ошибка удаления временного файла %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// FullPath возвращает путь blob-а на диске.
func (fs *FileStore) FullPath(key string) string {
	return filepath.Join(fs.dir, key)
}

// Dir возвращает директорию загрузок.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// resolve проверяет ключ и возвращает путь. Ключи с разделителями
// пути или ".." не принимаются.
func (fs *FileStore) resolve(key string) (string, bool) {
	if !ValidKey(key) {
		return "", false
	}
	return filepath.Join(fs.dir, key), true
}

// ValidKey проверяет, что ключ — простое имя файла внутри директории загрузок.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return false
	}
	return !strings.HasSuffix(key, tmpSuffix)
}

// GenerateKey генерирует ключ blob-а.
// Формат: {unix_millis}-{8 hex}{ext}, расширение оригинального имени сохраняется.
// Пример: 1771686245123-a1b2c3d4.pdf
func GenerateKey(originalName string, now time.Time) string {
	uid := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uid, sanitizeExt(filepath.Ext(originalName)))
}

// sanitizeExt оставляет в расширении только латиницу и цифры.
// Длинные или пустые после очистки расширения отбрасываются.
func sanitizeExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	var result strings.Builder
	for _, r := range strings.ToLower(ext) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 || result.Len() > 16 {
		return ""
	}
	return "." + result.String()
}
