// files.go — HTTP handlers File API.
// Upload, List, Get, Download, Delete.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bigkaa/filehub/internal/api/errors"
	"github.com/bigkaa/filehub/internal/domain/model"
	"github.com/bigkaa/filehub/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploads *service.UploadService
	files   *service.FileService
	logger  *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(uploads *service.UploadService, files *service.FileService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		uploads: uploads,
		files:   files,
		logger:  logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /api/files.
// Multipart form: ровно одна часть file. Прочие поля игнорируются.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.uploads.Upload(r.Context(), r)
	if err != nil {
		errors.FromService(w, h.logger, err, service.MsgUploadFailed)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListFiles обрабатывает GET /api/files. Без пагинации, новые первые.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.files.List(r.Context())
	if err != nil {
		errors.FromService(w, h.logger, err, service.MsgListFailed)
		return
	}
	if records == nil {
		records = []*model.FileRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetFile обрабатывает GET /api/files/{id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request, id FileID) {
	rec, err := h.files.Get(r.Context(), id)
	if err != nil {
		errors.FromService(w, h.logger, err, service.MsgGetFailed)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DownloadFile обрабатывает GET /api/files/{id}/download.
// Отдаёт файл как вложение под исходным именем. Range и
// If-Modified-Since обрабатывает http.ServeContent.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request, id FileID) {
	dl, err := h.files.Open(r.Context(), id)
	if err != nil {
		errors.FromService(w, h.logger, err, service.MsgDownloadFailed)
		return
	}
	defer dl.File.Close()

	w.Header().Set("Content-Type", dl.Record.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition("attachment", dl.Record.OriginalName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, "", dl.Record.UploadedAt, dl.File)
}

// DeleteFile обрабатывает DELETE /api/files/{id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request, id FileID) {
	if err := h.files.Delete(r.Context(), id); err != nil {
		errors.FromService(w, h.logger, err, service.MsgDeleteFailed)
		return
	}
	errors.WriteMessage(w, http.StatusOK, service.MsgFileDeleted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// contentDisposition формирует заголовок с исходным именем файла.
// Не-ASCII имя дублируется в filename* (RFC 6266).
func contentDisposition(disposition, name string) string {
	fallback := asciiFilename(name)
	value := fmt.Sprintf(`%s; filename="%s"`, disposition, fallback)
	if fallback != name {
		value += "; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	}
	return value
}

// asciiFilename заменяет символы, недопустимые в quoted-string, на "_".
func asciiFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "download"
	}
	return b.String()
}
