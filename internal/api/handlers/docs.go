// docs.go — отдача OpenAPI контракта.
package handlers

import "net/http"

// DocsHandler — обработчик /docs/openapi.json.
type DocsHandler struct {
	doc []byte
}

// NewDocsHandler создаёт обработчик документации.
// doc — OpenAPI документ в JSON.
func NewDocsHandler(doc []byte) *DocsHandler {
	return &DocsHandler{doc: doc}
}

// GetOpenAPI отдаёт OpenAPI документ.
func (h *DocsHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.doc)
}
