// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/filehub/internal/config"
	"github.com/bigkaa/filehub/internal/database"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// DependencyReporter — состояние зависимостей из topologymetrics.
type DependencyReporter interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// uploadDir — директория загрузок (проверка записи обязательна)
	uploadDir string
	// journalDir — директория журнала загрузок
	journalDir string
	// db — проверка хранилища метаданных
	db database.ReadinessChecker
	// deps — мониторинг зависимостей (nil, если не настроен)
	deps DependencyReporter
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil: для mongodb и memory мониторинг не запускается.
func NewHealthHandler(uploadDir, journalDir string, db database.ReadinessChecker, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		uploadDir:  uploadDir,
		journalDir: journalDir,
		db:         db,
		deps:       deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filehub",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: хранилище метаданных, запись в директорию загрузок, журнал.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Хранилище метаданных
	dbCheck := map[string]any{"status": "ok"}
	if h.db != nil {
		status, message := h.db.CheckReady()
		dbCheck = map[string]any{"status": status, "message": message}
	}
	if dbCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Директория загрузок
	fsCheck := checkWritable(h.uploadDir, "Директория загрузок недоступна для записи: ")
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Журнал: загрузка начинается с записи в журнал
	journalCheck := checkWritable(h.journalDir, "Директория журнала недоступна для записи: ")
	if journalCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	checks := map[string]any{
		"database":   dbCheck,
		"filesystem": fsCheck,
		"journal":    journalCheck,
	}
	if h.deps != nil {
		checks["dependencies"] = h.deps.Health()
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filehub",
		"checks":    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir, failPrefix string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": failPrefix + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
