package main

import "net/http"

// @Summary		Health check
// @Description	returns the status of the service and the index cache counters
// @Tags			Health
// @Produce		json
// @Success		200	{object}	map[string]any
// @Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	hits, misses := app.engine.IndexStats()
	data := map[string]any{
		"status":  "available",
		"version": "0.1.0",
		"index_cache": map[string]int64{
			"hits":   hits,
			"misses": misses,
		},
	}

	if err := writeJSON(w, http.StatusOK, data); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
