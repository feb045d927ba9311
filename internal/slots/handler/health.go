package handler

import (
	"context"
	"net/http"
	"time"

	httputil "slotify/pkg/http"
	kafka_middleware "slotify/pkg/kafka/middleware"
	"slotify/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type HealthResponse struct {
	Status   string                            `json:"status"`
	Database string                            `json:"database,omitempty"`
	Events   *kafka_middleware.MetricsSnapshot `json:"events,omitempty"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	metrics *kafka_middleware.Metrics
	log     *logger.Logger
}

// NewHealthHandler reports readiness of store. metrics may be nil when
// event publishing is disabled.
func NewHealthHandler(store Pinger, metrics *kafka_middleware.Metrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var events *kafka_middleware.MetricsSnapshot
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		events = &snapshot
	}

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unavailable",
			Database: "error",
			Events:   events,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ready",
		Database: "ok",
		Events:   events,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
