// Пакет client — HTTP-клиент File API для UI.
// Загрузка потоковая (io.Pipe), без буферизации файла в памяти.
// Повторов запросов нет: ошибка возвращается вызывающему коду.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bigkaa/filehub/internal/domain/model"
)

// maxErrorBody — сколько байт тела ошибки читается для разбора {msg}.
const maxErrorBody = 64 << 10

// APIError — ответ File API со статусом не 2xx.
type APIError struct {
	// Status — HTTP-статус ответа
	Status int
	// Msg — поле msg из тела ответа или текст статуса
	Msg string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("File API вернул статус %d: %s", e.Status, e.Msg)
}

// ProgressFunc получает количество отправленных байт файла и общий размер.
// total <= 0, если размер неизвестен.
type ProgressFunc func(sent, total int64)

// Client — HTTP-клиент File API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// New создаёт клиент. baseURL — адрес API вместе с префиксом
// (например, http://localhost:8000/api).
func New(baseURL string, logger *slog.Logger) *Client {
	transport := &http.Transport{
		// Настройка пула idle-соединений для эффективного переиспользования
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    normalizeURL(baseURL),
		logger:     logger.With(slog.String("component", "api_client")),
	}
}

// BaseURL возвращает базовый URL API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List выполняет GET /files.
func (c *Client) List(ctx context.Context) ([]*model.FileRecord, error) {
	var records []*model.FileRecord
	if err := c.getJSON(ctx, c.baseURL+"/files", &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []*model.FileRecord{}
	}
	return records, nil
}

// Get выполняет GET /files/{id}.
func (c *Client) Get(ctx context.Context, id string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := c.getJSON(ctx, c.fileURL(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upload выполняет POST /files с одной частью file.
// Тело формируется на лету: r читается по мере отправки.
// size — размер файла для прогресса (может быть <= 0).
func (c *Client) Upload(
	ctx context.Context,
	name, contentType string,
	r io.Reader,
	size int64,
	progress ProgressFunc,
) (*model.FileRecord, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Писатель должен завершиться до возврата: r принадлежит вызывающему коду
	done := make(chan struct{})
	defer func() { <-done }()
	defer pr.Close()

	go func() {
		defer close(done)
		pw.CloseWithError(writeFilePart(mw, name, contentType, &progressReader{
			r:        r,
			total:    size,
			progress: progress,
		}))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", pr)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос Upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}

	var rec model.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("декодирование ответа Upload: %w", err)
	}

	c.logger.Debug("Файл загружен",
		slog.String("file_id", rec.ID),
		slog.String("original_name", rec.OriginalName),
		slog.Int64("size", rec.Size),
	)
	return &rec, nil
}

// Delete выполняет DELETE /files/{id} и возвращает msg ответа.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.fileURL(id), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("создание запроса Delete: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос Delete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var body struct {
		Msg string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("декодирование ответа Delete: %w", err)
	}
	return body.Msg, nil
}

// DownloadURL возвращает адрес скачивания файла (для ссылок в браузере).
func (c *Client) DownloadURL(id string) string {
	return c.fileURL(id) + "/download"
}

// Fetch скачивает содержимое файла.
// Вызывающий код ОБЯЗАН закрыть возвращённый ReadCloser.
func (c *Client) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Fetch: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос Fetch: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", reqURL, err)
	}
	return nil
}

func (c *Client) fileURL(id string) string {
	return c.baseURL + "/files/" + url.PathEscape(id)
}

// writeFilePart пишет форму из одной части file и закрывает multipart.
func writeFilePart(mw *multipart.Writer, name, contentType string, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": name,
	}))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// progressReader сообщает о прочитанных байтах.
type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

// decodeError собирает *APIError из ответа с ошибкой.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}

	var body struct {
		Msg string `json:"msg"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err == nil && body.Msg != "" {
		apiErr.Msg = body.Msg
	}
	return apiErr
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
