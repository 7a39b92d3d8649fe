package marketplace

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Oniqq60/task_marketplace/internal/dto"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
)

var (
	errEmptyBody   = errors.New("request body is empty")
	errUnknownBody = errors.New("request body contains unexpected data")
	errBodyTooBig  = errors.New("request body too large")
)

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &tooBig):
			return errBodyTooBig
		}
		return err
	}

	if decoder.More() {
		return errUnknownBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}

func writeDecodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooBig):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, errEmptyBody), errors.Is(err, errUnknownBody):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, "invalid json")
	}
}

// httpStatus maps an error kind onto a response code; 0 means internal.
func httpStatus(err error) int {
	switch lifecycle.Kind(err) {
	case lifecycle.ErrUnauthorized:
		return http.StatusUnauthorized
	case lifecycle.ErrForbidden:
		return http.StatusForbidden
	case lifecycle.ErrInvalidState, lifecycle.ErrValidation:
		return http.StatusBadRequest
	case lifecycle.ErrNotFound:
		return http.StatusNotFound
	}
	return 0
}

// writeServiceError answers with the error's kind, or logs it and answers an
// opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if status := httpStatus(err); status != 0 {
		writeError(w, status, err.Error())
		return
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
