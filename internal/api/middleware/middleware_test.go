package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/files", "/api/files"},
		{"/api/files/65f1c0a1b2c3d4e5f6a7b8c9", "/api/files/{id}"},
		{"/api/files/65f1c0a1b2c3d4e5f6a7b8c9/download", "/api/files/{id}/download"},
		{"/ui/files/abc/raw", "/ui/files/{id}/raw"},
		{"/ui/files/abc/delete", "/ui/files/{id}/delete"},
		{"/uploads/1771686245123-a1b2c3d4.pdf", "/uploads/{key}"},
		{"/uploads/a/b", "other"},
		{"/static/app.css", "/static/{asset}"},
		{"/api/files/a/b/c/d", "other"},
		{"/health/ready", "/health/ready"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("статус = %d, ожидался %d", rec.Code, http.StatusTeapot)
	}
}

// TestRequestLogger проверяет уровень и поля записи лога.
func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "INFO"},
		{"ошибка клиента", http.StatusNotFound, "WARN"},
		{"ошибка сервера", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files", nil))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("лог не JSON: %v (%s)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, ожидался %s", entry["level"], tt.wantLevel)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, ожидался %d", entry["status"], tt.status)
			}
			if entry["bytes"] != float64(4) {
				t.Errorf("bytes = %v, ожидалось 4", entry["bytes"])
			}
			if entry["path"] != "/api/files" {
				t.Errorf("path = %v", entry["path"])
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("сломалось")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидался 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"msg"`) {
		t.Errorf("тело ответа без msg: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "сломалось") {
		t.Errorf("panic не попал в лог: %s", buf.String())
	}
}

func TestRecoverer_AfterHeaderWritten(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("после заголовка")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	// Статус уже отправлен, второй ответ не пишется
	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("тело не должно дописываться: %q", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, ожидалось *", got)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	handler := CORS([]string{"http://allowed.local"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Origin", "http://other.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("чужой origin не должен разрешаться, получено %q", got)
	}
}
