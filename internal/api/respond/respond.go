// Package respond writes the JSON bodies returned by the contacts API.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// InternalErrorDetail is the only detail a 500 response carries.
const InternalErrorDetail = "Internal server error"

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// WriteJSON writes data with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Int("status", statusCode).Msg("encode response")
	}
}

// WriteError writes {"detail": detail, "status": statusCode}.
func WriteError(w http.ResponseWriter, statusCode int, detail string) {
	if detail == "" {
		detail = http.StatusText(statusCode)
	}
	WriteJSON(w, statusCode, ErrorBody{Detail: detail, Status: statusCode})
}

func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, detail)
}

func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

// WriteInternalError writes a 500 without any internal detail.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, InternalErrorDetail)
}
