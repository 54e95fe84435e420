package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/farxc/licitacoes_analytics/internal/response"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/go-playground/validator/v10"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, response.Error(message))
}

func writeData[T any](w http.ResponseWriter, status int, data T, message string) {
	if err := writeJSON(w, status, response.OK(data, message)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	return dec.Decode(data)
}

// writeError maps service errors onto HTTP statuses.
func (app *application) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, sentinel.ErrInvalidScope), errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sentinel.ErrInvalidPeriod), errors.Is(err, sentinel.ErrInvalidDocument), errors.As(err, &verrs):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		app.log.Error(component, "Request failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
