package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"stakevoice/internal/apperr"
	"stakevoice/internal/logger"
)

const msgBadRequest = "Requisição inválida"

type APIError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the user-visible message of err. Causes are
// logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Component("http").WithError(err).WithFields(logger.Fields{
			"path":       r.URL.Path,
			"request_id": RequestID(r.Context()),
		}).Error("request failed")
	}
	writeJSON(w, APIError{Error: apperr.Message(err, http.StatusText(status)), Status: status}, status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation(msgBadRequest)
	}
	return nil
}
