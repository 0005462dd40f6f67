// Пакет ui — серверные страницы FileHub поверх клиента File API.
// UI работает с API только через HTTP-клиент, как внешний потребитель.
package ui

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filehub/internal/client"
	"github.com/bigkaa/filehub/internal/domain/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Коды уведомлений в query-параметре notice после redirect.
const (
	noticeUploaded     = "uploaded"
	noticeDeleted      = "deleted"
	noticeDeleteFailed = "delete_failed"
	noticeDeleteBusy   = "delete_busy"
	noticeUploadBusy   = "upload_busy"
)

// API — операции File API, нужные страницам.
type API interface {
	client.FileAPI
	Get(ctx context.Context, id string) (*model.FileRecord, error)
	Fetch(ctx context.Context, id string) (io.ReadCloser, error)
	DownloadURL(id string) string
}

// UI — обработчики страниц и их состояние.
type UI struct {
	api      API
	registry *client.Registry
	upload   *UploadState
	deletes  *DeleteTracker
	pages    map[string]*template.Template
	loc      *time.Location
	logger   *slog.Logger
}

// New создаёт UI. Шаблоны разбираются сразу: ошибка шаблона — ошибка старта.
func New(api API, logger *slog.Logger) (*UI, error) {
	pages := make(map[string]*template.Template, 2)
	for _, name := range []string{"index.html", "viewer.html"} {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("разбор шаблона %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &UI{
		api:      api,
		registry: client.NewRegistry(api),
		upload:   &UploadState{},
		deletes:  NewDeleteTracker(),
		pages:    pages,
		loc:      time.Local,
		logger:   logger.With(slog.String("component", "ui")),
	}, nil
}

// Routes регистрирует маршруты UI.
func (u *UI) Routes(r chi.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", u.index)
	r.Post("/ui/upload", u.uploadFile)
	r.Get("/ui/upload/status", u.uploadStatus)
	r.Post("/ui/files/{id}/delete", u.deleteFile)
	r.Get("/ui/files/{id}", u.viewFile)
	r.Get("/ui/files/{id}/raw", u.rawFile)
}

// fileRow — строка списка файлов, готовая к выводу.
type fileRow struct {
	ID          string
	Name        string
	Label       string
	Color       string
	Size        string
	Date        string
	ViewURL     string
	RawURL      string
	DownloadURL string
	DeleteURL   string
	Deleting    bool
}

// widgetMessages — тексты, которые показывает скрипт виджета загрузки.
type widgetMessages struct {
	Extension string
	Select    string
	Upload    string
}

var uploadMessages = widgetMessages{
	Extension: MsgExtensionNotAllowed,
	Select:    MsgSelectFile,
	Upload:    MsgUploadFailed,
}

type indexPage struct {
	Title       string
	AutoRefresh bool
	Accept      string
	Msg         widgetMessages
	Files       []fileRow
	Upload      UploadSnapshot
	ListError   string
	DeleteError string
	Flash       string
}

// uploadStatus — ответ /ui/upload/status.
type uploadStatus struct {
	UploadSnapshot
	CanSubmit bool `json:"canSubmit"`
}

type viewerPage struct {
	Title       string
	AutoRefresh bool
	File        *fileRow
	Preview     Preview
	JSON        string
	JSONError   string
	Error       string
}

// index — главная страница: виджет загрузки и список файлов.
func (u *UI) index(w http.ResponseWriter, r *http.Request) {
	notice := r.URL.Query().Get("notice")
	page := indexPage{
		Title:  "FileHub",
		Accept: acceptList(),
		Msg:    uploadMessages,
	}

	// После удаления выводится локальный снимок, иначе список перечитывается
	if notice != noticeDeleted || u.registry.Stale() {
		if err := u.registry.Refresh(r.Context()); err != nil {
			u.logger.Error("Ошибка загрузки списка файлов", slog.String("error", err.Error()))
			page.ListError = MsgListFailed
		}
	}

	switch notice {
	case noticeUploaded:
		page.Flash = MsgUploaded
	case noticeDeleted:
		page.Flash = MsgDeleted
	case noticeDeleteFailed:
		page.DeleteError = MsgDeleteFailed
	case noticeDeleteBusy:
		page.DeleteError = MsgDeleteInProgress
	}

	page.Upload = u.upload.Snapshot()
	if notice == noticeUploadBusy && page.Upload.Error == "" {
		page.Upload.Error = MsgUploadInProgress
	}
	page.AutoRefresh = page.Upload.Uploading

	files := u.registry.Files()
	page.Files = make([]fileRow, 0, len(files))
	for i := range files {
		page.Files = append(page.Files, u.row(&files[i]))
	}

	u.render(w, http.StatusOK, "index.html", page)
}

// uploadFile передаёт часть file формы в File API без буферизации.
func (u *UI) uploadFile(w http.ResponseWriter, r *http.Request) {
	if u.upload.Snapshot().Uploading {
		redirect(w, r, noticeUploadBusy)
		return
	}

	part, err := filePart(r)
	if err != nil {
		u.logger.Warn("Форма загрузки без файла", slog.String("error", err.Error()))
		_ = u.upload.Select("")
		redirect(w, r, "")
		return
	}
	defer part.Close()

	// 1. Предварительная проверка расширения
	if err := u.upload.Select(part.FileName()); err != nil {
		redirect(w, r, "")
		return
	}

	// 2. Одна загрузка в полёте
	if err := u.upload.Begin(); err != nil {
		if errors.Is(err, ErrUploadInProgress) {
			redirect(w, r, noticeUploadBusy)
			return
		}
		redirect(w, r, "")
		return
	}

	// 3. Потоковая передача в API; размер формы приближает размер файла
	rec, err := u.registry.Upload(r.Context(), part.FileName(), part.Header.Get("Content-Type"),
		part, r.ContentLength, u.upload.SetProgress)
	u.upload.Finish(err)
	if err != nil {
		u.logger.Error("Ошибка загрузки файла",
			slog.String("original_name", part.FileName()),
			slog.String("error", err.Error()),
		)
		redirect(w, r, "")
		return
	}

	u.logger.Info("Файл загружен через UI",
		slog.String("file_id", rec.ID),
		slog.String("original_name", rec.OriginalName),
	)
	redirect(w, r, noticeUploaded)
}

// uploadStatus отдаёт состояние виджета загрузки. Страница опрашивает его,
// когда браузер не сообщает прогресс отправки.
func (u *UI) uploadStatus(w http.ResponseWriter, _ *http.Request) {
	snap := u.upload.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(uploadStatus{UploadSnapshot: snap, CanSubmit: snap.CanSubmit()})
}

// deleteFile удаляет файл. Повторный запрос во время удаления отклоняется.
func (u *UI) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !u.deletes.Begin(id) {
		redirect(w, r, noticeDeleteBusy)
		return
	}
	defer u.deletes.Done(id)

	if _, err := u.registry.Remove(r.Context(), id); err != nil {
		u.logger.Error("Ошибка удаления файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		redirect(w, r, noticeDeleteFailed)
		return
	}
	redirect(w, r, noticeDeleted)
}

// viewFile — страница просмотра файла.
func (u *UI) viewFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page := viewerPage{Title: "FileHub"}

	rec, err := u.api.Get(r.Context(), id)
	if err != nil {
		u.logger.Warn("Ошибка чтения метаданных файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		page.Error = MsgViewerFailed
		u.render(w, apiStatus(err), "viewer.html", page)
		return
	}

	row := u.row(rec)
	page.Title = rec.OriginalName + " — FileHub"
	page.File = &row
	page.Preview = PreviewFor(rec.MimeType)

	if page.Preview == PreviewJSON {
		text, err := u.prettyJSON(r.Context(), id)
		if err != nil {
			u.logger.Warn("Ошибка предпросмотра JSON",
				slog.String("file_id", id),
				slog.String("error", err.Error()),
			)
			page.JSONError = MsgJSONPreviewFailed
		} else {
			page.JSON = text
		}
	}

	u.render(w, http.StatusOK, "viewer.html", page)
}

// rawFile отдаёт содержимое для встроенного просмотра (inline).
func (u *UI) rawFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := u.api.Get(r.Context(), id)
	if err != nil {
		status := apiStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	body, err := u.api.Fetch(r.Context(), id)
	if err != nil {
		status := apiStatus(err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{
		"filename": rec.OriginalName,
	}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if strings.HasPrefix(rec.MimeType, "text/") {
		w.Header().Set("Content-Security-Policy", "sandbox")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		u.logger.Debug("Передача содержимого прервана",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// prettyJSON скачивает JSON-файл и форматирует его с отступом 2 пробела.
func (u *UI) prettyJSON(ctx context.Context, id string) (string, error) {
	body, err := u.api.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, model.MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("чтение JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", fmt.Errorf("разбор JSON: %w", err)
	}
	return buf.String(), nil
}

func (u *UI) row(rec *model.FileRecord) fileRow {
	base := "/ui/files/" + url.PathEscape(rec.ID)
	return fileRow{
		ID:          rec.ID,
		Name:        rec.OriginalName,
		Label:       typeLabel(rec.MimeType),
		Color:       TypeColor(rec.MimeType),
		Size:        FormatSize(rec.Size),
		Date:        FormatDate(rec.UploadedAt, u.loc),
		ViewURL:     base,
		RawURL:      base + "/raw",
		DownloadURL: u.api.DownloadURL(rec.ID),
		DeleteURL:   base + "/delete",
		Deleting:    u.deletes.InFlight(rec.ID),
	}
}

// render выполняет шаблон в буфер: при ошибке клиент не получает обрывок.
func (u *UI) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := u.pages[name].ExecuteTemplate(&buf, name, data); err != nil {
		u.logger.Error("Ошибка рендеринга шаблона",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// filePart находит первую часть file с именем файла.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func redirect(w http.ResponseWriter, r *http.Request, notice string) {
	target := "/"
	if notice != "" {
		target += "?notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// apiStatus переносит статус ответа API, прочие ошибки — 502.
func apiStatus(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// typeLabel — короткая подпись типа для метки.
func typeLabel(mimeType string) string {
	switch PreviewFor(mimeType) {
	case PreviewImage:
		return "image"
	case PreviewText:
		return "text"
	case PreviewPDF:
		return "pdf"
	case PreviewJSON:
		return "json"
	default:
		return "file"
	}
}

func acceptList() string {
	exts := make([]string, len(AllowedExtensions))
	for i, ext := range AllowedExtensions {
		exts[i] = "." + ext
	}
	return strings.Join(exts, ",")
}
