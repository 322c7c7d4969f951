package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/playbox"
	"playbox/internal/services"
	"playbox/internal/session"
)

// errorBody is the shape of every non-2xx JSON answer.
type errorBody struct {
	Error  string            `json:"error"`
	Status core.Banner       `json:"status"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and an operator banner.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorBanner(w, r, err, services.BannerFor(err))
}

// writeErrorBanner keeps a banner the service already chose for err.
func writeErrorBanner(w http.ResponseWriter, r *http.Request, err error, banner core.Banner) {
	if banner.Text == "" {
		banner = services.BannerFor(err)
	}
	status := errorStatus(err)
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err.Error())
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Status: banner})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Status: core.Failure(msg)})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrCardAlreadyLinked), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrAmountBelowMinimum),
		errors.Is(err, core.ErrEmptyCardUID),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyPhone),
		errors.Is(err, core.ErrEmptyDeductor),
		errors.Is(err, core.ErrEmptyDescription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusUnauthorized
	}
	var apiErr *playbox.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
