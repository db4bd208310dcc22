// handler.go — основной обработчик API, реализующий openapi.ServerInterface.
// Объединяет health и файловые обработчики.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
	"github.com/bigkaa/fileattach/internal/api/openapi"
)

// APIHandler — основной обработчик API fileattach.
// Реализует openapi.ServerInterface, делегируя запросы в FilesHandler и HealthHandler.
type APIHandler struct {
	*FilesHandler
	health *HealthHandler
	logger *slog.Logger
}

var _ openapi.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(files *FilesHandler, health *HealthHandler, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		FilesHandler: files,
		health:       health,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPISpec отдаёт встроенный OpenAPI документ в JSON.
func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	data, err := openapi.SpecJSON()
	if err != nil {
		h.logger.Error("Ошибка сериализации OpenAPI документа", slog.String("error", err.Error()))
		apierrors.InternalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
