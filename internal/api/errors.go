package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	respond "github.com/mycelian/contacts-service/internal/api/respond"
	"github.com/mycelian/contacts-service/internal/model"
	"github.com/mycelian/contacts-service/internal/remote"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case model.IsValidationError(err), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case model.IsNotFound(err):
		return http.StatusNotFound
	case remote.IsPermanent(err):
		return http.StatusBadGateway
	case remote.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	if status == http.StatusInternalServerError {
		respond.WriteInternalError(w)
		return
	}
	respond.WriteError(w, status, err.Error())
}
