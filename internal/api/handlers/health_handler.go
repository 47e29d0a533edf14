package handlers

import (
	"encoding/json"
	"net/http"
)

type HealthHandler struct {
	vectorBackend string
	memoryBackend string
}

func NewHealthHandler(vectorBackend, memoryBackend string) *HealthHandler {
	return &HealthHandler{vectorBackend: vectorBackend, memoryBackend: memoryBackend}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":         "ok",
		"vector_backend": h.vectorBackend,
		"memory_backend": h.memoryBackend,
	})
}
