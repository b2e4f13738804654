package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alanchaparro/bi-sub000/internal/cartera/engine"
	"github.com/alanchaparro/bi-sub000/internal/cartera/filter"
	"github.com/alanchaparro/bi-sub000/internal/cartera/ingest"
	"github.com/alanchaparro/bi-sub000/internal/cartera/metrics"
	"github.com/alanchaparro/bi-sub000/internal/response"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, &response.ErrorResponse{Error: message})

}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, filter.ErrInvalidSelection), errors.Is(err, metrics.ErrFixedAgeRequired):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownView):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrStaleResult):
		return http.StatusConflict
	case ingest.IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) error {
	return writeJSONError(w, errorStatus(err), err.Error())
}
