package handlers

import (
	"net/http"
	"time"
)

// Health returns a liveness handler for load balancers and uptime checks.
func Health(env string) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"env":            env,
			"uptime_seconds": int(time.Since(started).Seconds()),
		})
	}
}
