// handler.go — APIHandler собирает доменные handlers Blob Store
// и монтирует их маршруты в chi-роутер.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIHandler — единая точка монтирования всех endpoints.
type APIHandler struct {
	blobs  *BlobsHandler
	health *HealthHandler
	docs   *DocsHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(blobs *BlobsHandler, health *HealthHandler, docs *DocsHandler) *APIHandler {
	return &APIHandler{
		blobs:  blobs,
		health: health,
		docs:   docs,
	}
}

// HandlerFromMux регистрирует маршруты APIHandler в роутере.
func HandlerFromMux(h *APIHandler, r chi.Router) http.Handler {
	// --- Health / Metrics / Docs ---
	r.Get("/health", h.health.Health)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Get("/docs/openapi.json", h.docs.GetOpenAPI)

	// --- Blobs ---
	r.Route("/v1/blobs", func(r chi.Router) {
		r.Post("/", h.blobs.UploadBlob)
		r.Get("/{id}", h.blobs.GetBlobInfo)
		r.Delete("/{id}", h.blobs.DeleteBlob)
		r.Get("/{id}/content", h.blobs.GetBlobContent)
	})

	return r
}
