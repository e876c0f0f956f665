// Package api implements the rivaldex REST API. It exposes the
// competitor-ingestion operation and read endpoints, and maps the
// pipeline's typed failures to HTTP status codes.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rivaldex/rivaldex/internal/competitor"
)

// Pipeline is the ingestion entry point consumed by the API.
type Pipeline interface {
	AddCompetitor(ctx context.Context, owner, target string) (*competitor.Record, error)
}

// Reader provides read access to stored competitor records.
type Reader interface {
	Get(ctx context.Context, owner, target string) (*competitor.Record, error)
	List(ctx context.Context, owner string) ([]competitor.Record, error)
}

const defaultTimeout = 30 * time.Second

// Handler is the top-level API handler.
type Handler struct {
	pipeline Pipeline
	reader   Reader
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler creates a new API handler. The timeout bounds each
// ingestion call end to end; zero selects the default.
func NewHandler(pipeline Pipeline, reader Reader, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline: pipeline,
		reader:   reader,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "api")),
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/competitors", h.handleAddCompetitor)
	mux.HandleFunc("GET /api/v1/competitors", h.handleListCompetitors)
	mux.HandleFunc("GET /api/v1/competitors/{owner}/{target}", h.handleGetCompetitor)
}

// response is the stable envelope for every API reply. Data is populated
// on success only.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func writeSuccess(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data, Message: message})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Data: nil, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}
