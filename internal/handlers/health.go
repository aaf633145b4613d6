package handlers

import (
	"database/sql"
	"net/http"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	db *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz is the combined status endpoint.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	dbStatus := "UP"
	status := http.StatusOK
	overall := "UP"
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "DOWN"
		overall = "DEGRADED"
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"status": overall, "db": dbStatus})
}

// Live always succeeds while the process is serving.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Ready fails while the database is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
