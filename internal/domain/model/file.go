// Пакет model — доменные модели filehub.
// FileRecord — метаданные одного загруженного файла. Формат JSON
// совпадает с контрактом File API: {_id, filename, originalName, path,
// size, mimetype, uploadDate}.
package model

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxUploadSize — максимальный размер загружаемого файла (10 MiB).
const MaxUploadSize int64 = 10 << 20

// MaxOriginalNameLength — предельная длина исходного имени файла в символах.
const MaxOriginalNameLength = 1024

// AllowedMimeTypes — MIME-типы, принимаемые при загрузке.
// Политика фиксированная, не конфигурируется.
var AllowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"text/plain",
	"application/pdf",
	"application/json",
}

// FileRecord — запись метаданных файла.
// Создаётся последним шагом успешной загрузки, после этого не изменяется.
type FileRecord struct {
	// ID — непрозрачный идентификатор, назначается хранилищем метаданных
	ID string `json:"_id"`

	// StorageKey — уникальное имя blob-а на диске
	StorageKey string `json:"filename"`

	// OriginalName — имя файла, переданное пользователем
	OriginalName string `json:"originalName"`

	// Path — локальный путь на сервере. Отдаётся в API, но клиентом не используется.
	Path string `json:"path"`

	// Size — размер в байтах
	Size int64 `json:"size"`

	// MimeType — один из AllowedMimeTypes
	MimeType string `json:"mimetype"`

	// UploadedAt — время загрузки по часам сервера (UTC)
	UploadedAt time.Time `json:"uploadDate"`
}

// NewFile — поля записи без ID и UploadedAt.
// Используется как вход Insert в хранилище метаданных.
type NewFile struct {
	StorageKey   string `validate:"required,max=255"`
	OriginalName string `validate:"required,original_name"`
	Path         string `validate:"required"`
	Size         int64  `validate:"gte=0"`
	MimeType     string `validate:"required,oneof=image/jpeg image/png image/gif text/plain application/pdf application/json"`
}

// validate — общий экземпляр валидатора (кэширует разбор тегов).
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("original_name", func(fl validator.FieldLevel) bool {
		return ValidOriginalName(fl.Field().String())
	})
	return v
}

// ValidOriginalName проверяет, что имя можно сохранить в любом backend-е:
// непустое, корректный UTF-8 без NUL, не длиннее MaxOriginalNameLength символов.
func ValidOriginalName(name string) bool {
	return name != "" &&
		utf8.ValidString(name) &&
		!strings.ContainsRune(name, 0) &&
		utf8.RuneCountInString(name) <= MaxOriginalNameLength
}

// Validate проверяет обязательные поля и допустимость MIME-типа.
func (f NewFile) Validate() error {
	return validate.Struct(f)
}

// Record собирает полную запись из NewFile и назначенных хранилищем полей.
func (f NewFile) Record(id string, uploadedAt time.Time) *FileRecord {
	return &FileRecord{
		ID:           id,
		StorageKey:   f.StorageKey,
		OriginalName: f.OriginalName,
		Path:         f.Path,
		Size:         f.Size,
		MimeType:     f.MimeType,
		UploadedAt:   uploadedAt.UTC(),
	}
}

// NormalizeContentType приводит Content-Type к виду "type/subtype":
// убирает параметры (charset и т.д.) и переводит в нижний регистр.
// Пустое значение — application/octet-stream.
func NormalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}

// IsAllowedMimeType проверяет MIME-тип по списку допустимых.
func IsAllowedMimeType(contentType string) bool {
	ct := NormalizeContentType(contentType)
	for _, allowed := range AllowedMimeTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// SortNewestFirst сортирует записи по UploadedAt (новые первые),
// при равенстве — по ID в обратном порядке.
func SortNewestFirst(records []*FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID > records[j].ID
	})
}
