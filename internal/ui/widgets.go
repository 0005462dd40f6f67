// widgets.go — состояние и производные поля UI-виджетов.
// Страницы рендерятся как чистая функция этого состояния.
package ui

import (
	"errors"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Сообщения UI (на языке интерфейса).
const (
	MsgExtensionNotAllowed = "This file type is not supported. Please upload a txt, pdf, json, jpeg, or png file."
	MsgSelectFile          = "Please select a file first"
	MsgUploadFailed        = "Failed to upload file. Please try again."
	MsgUploadInProgress    = "An upload is already in progress"
	MsgListFailed          = "Failed to load files. Please refresh the page."
	MsgDeleteFailed        = "Failed to delete file. Please try again."
	MsgDeleteInProgress    = "This file is already being deleted"
	MsgUploaded            = "File uploaded successfully!"
	MsgDeleted             = "File deleted successfully!"
	MsgJSONPreviewFailed   = "Failed to load JSON preview"
	MsgViewerFailed        = "Failed to load file"
)

// AllowedExtensions — расширения, допускаемые предварительной проверкой.
// Это подсказка пользователю, не граница безопасности: сервер
// проверяет MIME-тип.
var AllowedExtensions = []string{"txt", "pdf", "json", "jpeg", "jpg", "png"}

var (
	// ErrNoFile — файл не выбран.
	ErrNoFile = errors.New(MsgSelectFile)
	// ErrExtension — расширение не из списка AllowedExtensions.
	ErrExtension = errors.New(MsgExtensionNotAllowed)
	// ErrUploadInProgress — уже идёт загрузка.
	ErrUploadInProgress = errors.New(MsgUploadInProgress)
)

// CheckExtension проверяет расширение имени файла без учёта регистра.
func CheckExtension(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrExtension
}

// UploadSnapshot — состояние виджета загрузки для рендеринга.
type UploadSnapshot struct {
	// Selected — имя выбранного файла
	Selected string `json:"selected"`
	// Uploading — идёт загрузка
	Uploading bool `json:"uploading"`
	// Progress — процент отправленных байт (0–100)
	Progress int `json:"progress"`
	// Error — ошибка последней попытки
	Error string `json:"error,omitempty"`
}

// CanSubmit — кнопка загрузки активна: файл выбран и загрузка не идёт.
func (s UploadSnapshot) CanSubmit() bool {
	return s.Selected != "" && !s.Uploading
}

// UploadState — виджет загрузки: одна загрузка в полёте.
type UploadState struct {
	mu   sync.Mutex
	snap UploadSnapshot
}

// Select выбирает файл. Недопустимое расширение сбрасывает выбор.
func (u *UploadState) Select(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := CheckExtension(name); err != nil {
		u.snap.Selected = ""
		u.snap.Error = err.Error()
		return err
	}
	u.snap.Selected = name
	u.snap.Error = ""
	return nil
}

// Begin начинает загрузку выбранного файла.
func (u *UploadState) Begin() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.snap.Uploading {
		return ErrUploadInProgress
	}
	if u.snap.Selected == "" {
		u.snap.Error = MsgSelectFile
		return ErrNoFile
	}
	u.snap.Uploading = true
	u.snap.Progress = 0
	u.snap.Error = ""
	return nil
}

// SetProgress обновляет процент по отправленным байтам.
// Неизвестный размер не двигает индикатор.
func (u *UploadState) SetProgress(sent, total int64) {
	if total <= 0 {
		return
	}
	pct := int(sent * 100 / total)
	if pct > 100 {
		pct = 100
	}

	u.mu.Lock()
	if u.snap.Uploading && pct > u.snap.Progress {
		u.snap.Progress = pct
	}
	u.mu.Unlock()
}

// Finish завершает загрузку. Успех сбрасывает выбор, ошибка сохраняется.
func (u *UploadState) Finish(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.snap.Uploading = false
	if err != nil {
		u.snap.Error = MsgUploadFailed
		return
	}
	u.snap.Progress = 100
	u.snap.Selected = ""
	u.snap.Error = ""
}

// Snapshot возвращает копию состояния.
func (u *UploadState) Snapshot() UploadSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snap
}

// DeleteTracker — множество id с удалением в полёте.
type DeleteTracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewDeleteTracker создаёт пустой трекер.
func NewDeleteTracker() *DeleteTracker {
	return &DeleteTracker{inFlight: make(map[string]struct{})}
}

// Begin отмечает удаление id. false — удаление уже идёт.
func (d *DeleteTracker) Begin(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[id]; ok {
		return false
	}
	d.inFlight[id] = struct{}{}
	return true
}

// Done снимает отметку.
func (d *DeleteTracker) Done(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

// InFlight сообщает, идёт ли удаление id.
func (d *DeleteTracker) InFlight(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[id]
	return ok
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize — человекочитаемый размер: основание 1024, до двух знаков
// после запятой, незначащие нули отбрасываются ("1.5 KB", "10 MB").
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}

	i := 0
	div := int64(1)
	for i < len(sizeUnits)-1 && size/div >= 1024 {
		div *= 1024
		i++
	}
	v := float64(size) / float64(div)
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// dateLayout — формат даты в списке.
const dateLayout = "02.01.2006, 15:04:05"

// FormatDate форматирует время загрузки в часовом поясе loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

// TypeColor — цвет метки по префиксу MIME-типа.
func TypeColor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "#4caf50"
	case strings.HasPrefix(mimeType, "text/"):
		return "#2196f3"
	case strings.HasPrefix(mimeType, "application/pdf"):
		return "#f44336"
	case strings.HasPrefix(mimeType, "application/json"):
		return "#ff9800"
	default:
		return "#9e9e9e"
	}
}

// Preview — способ отображения файла в просмотрщике.
type Preview string

const (
	PreviewImage Preview = "image"
	PreviewText  Preview = "text"
	PreviewPDF   Preview = "pdf"
	PreviewJSON  Preview = "json"
	PreviewNone  Preview = "none"
)

// PreviewFor выбирает способ отображения по MIME-типу.
func PreviewFor(mimeType string) Preview {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return PreviewImage
	case mimeType == "application/json":
		return PreviewJSON
	case strings.HasPrefix(mimeType, "text/"):
		return PreviewText
	case mimeType == "application/pdf":
		return PreviewPDF
	default:
		return PreviewNone
	}
}
