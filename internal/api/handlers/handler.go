// handler.go — APIHandler реализует ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filehub/internal/api/openapi"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	files   *FilesHandler
	health  *HealthHandler
	metrics http.Handler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(files *FilesHandler, health *HealthHandler) *APIHandler {
	return &APIHandler{
		files:   files,
		health:  health,
		metrics: promhttp.Handler(),
	}
}

// --- File Operations ---

func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	h.files.ListFiles(w, r)
}

func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.files.UploadFile(w, r)
}

func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request, id FileID) {
	h.files.GetFile(w, r, id)
}

func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request, id FileID) {
	h.files.DeleteFile(w, r, id)
}

func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request, id FileID) {
	h.files.DownloadFile(w, r, id)
}

// --- Contract ---

// GetOpenAPISpec отдаёт встроенный OpenAPI-контракт.
func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapi.Spec())
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- Metrics ---

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ ServerInterface = (*APIHandler)(nil)
