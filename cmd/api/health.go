package main

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// @Summary		Health check
// @Description	returns the status of the service and its dependencies
// @Tags			Health
// @Produce		json
// @Success		200	{object}	map[string]any
// @Failure		503	{object}	map[string]any
// @Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(app.checks))
	for name, check := range app.checks {
		if err := check(ctx); err != nil {
			deps[name] = "unavailable: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	data := map[string]any{
		"status":       "available",
		"version":      version,
		"dependencies": deps,
	}
	if status != http.StatusOK {
		data["status"] = "degraded"
	}

	if err := writeJSON(w, status, data); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
