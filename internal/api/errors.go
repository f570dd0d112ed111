package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sheetsync/internal/domain"
)

// errorResponse is the JSON envelope for every non-2xx reply.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// httpStatusFromError maps domain errors to HTTP status codes. Anything
// unrecognized is a 500.
func httpStatusFromError(err error) int {
	switch {
	case errors.As(err, new(*domain.ValidationError)):
		return http.StatusBadRequest
	case errors.As(err, new(*domain.NotFoundError)):
		return http.StatusNotFound
	case errors.As(err, new(*domain.ConflictError)):
		return http.StatusConflict
	case errors.As(err, new(*domain.RemoteError)):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	writeError(w, httpStatusFromError(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
