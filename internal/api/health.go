package api

import "net/http"

// HealthHandler reports process liveness and the active driver names.
type HealthHandler struct {
	StoreDriver    string
	ProviderDriver string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"store":    h.StoreDriver,
		"provider": h.ProviderDriver,
	})
}
