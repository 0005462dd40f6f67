// Пакет errors — ответы File API с телом {"msg": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError или FromService.
// Для 5xx клиент получает только общее сообщение, причина пишется в лог.
package errors //nolint:revive // имя совпадает со stdlib, импортируется без алиаса

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/filehub/internal/service"
)

// messageBody — тело ответа с сообщением.
type messageBody struct {
	Msg string `json:"msg"`
}

// WriteError записывает ответ ошибки {"msg": message}.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteMessage(w, statusCode, message)
}

// WriteMessage записывает ответ {"msg": message} с произвольным статусом.
// Используется и для успешных ответов без данных (удаление файла).
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(messageBody{Msg: message})
}

// StatusFor возвращает HTTP-статус для типа ошибки сервиса.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromService записывает ответ для ошибки сервисного слоя.
// Ошибка без типа считается внутренней: клиент получает fallback.
func FromService(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	se, ok := service.AsError(err)
	if !ok {
		logger.Error("Необработанная ошибка", slog.String("error", err.Error()))
		InternalError(w, fallback)
		return
	}

	status := StatusFor(se.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("Ошибка обработки запроса",
			slog.String("kind", se.Kind.String()),
			slog.String("error", se.Error()),
		)
	}
	WriteError(w, status, se.Message)
}

// --- Конструкторы для типичных ошибок ---

// BadRequest — 400 некорректные входные данные.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
