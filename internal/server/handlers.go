// File: internal/server/handlers.go
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/inmate-bot/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes caps the request body. A search request is a handful of short strings.
const maxBodyBytes = 64 << 10

const msgBadRequest = "Error: invalid request body"

// Handlers serves the search API.
type Handlers struct {
	log      *zap.Logger
	searcher Searcher
}

// NewHandlers creates the handler set.
func NewHandlers(logger *zap.Logger, searcher Searcher) *Handlers {
	return &Handlers{
		log:      logger.Named("handlers"),
		searcher: searcher,
	}
}

// RegisterRoutes mounts the health check and the API.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", h.HandleSearch)
	})
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleSearch decodes a search request and runs it. Run failures are still a 200:
// the result text and the success flag carry the outcome.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var req service.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		log.Warn("Rejected search request.", zap.Error(err))
		h.respond(w, http.StatusBadRequest, service.Result{Text: msgBadRequest})
		return
	}

	log.Info("Search request received.", zap.Bool("has_record_id", req.RecordID != ""))
	res := h.searcher.Run(r.Context(), req)
	h.respond(w, http.StatusOK, res)
}

func (h *Handlers) respond(w http.ResponseWriter, status int, res service.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
