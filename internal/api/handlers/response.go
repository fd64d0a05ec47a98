package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/core"
	"github.com/markdave123-py/Careerlyst/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "invalid_request"})
}

// writeError maps the error taxonomy onto HTTP statuses. Internal errors are logged
// and their details hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	kind := core.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrUnknownVector):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCompany):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, core.ErrCompanyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrProviderUnavailable), errors.Is(err, core.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}
