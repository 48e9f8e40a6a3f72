// Package handlers provides HTTP request handlers for the medication comparison API.
// It includes response formatting, request body decoding and the mapping of engine
// error kinds to HTTP statuses.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/logging"
)

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	RespondWithJSON(w, code, errorResponse)
}

// StatusForError maps an engine error kind to its HTTP status. An explicit
// upstream status on the error wins over the kind default.
func StatusForError(err error) int {
	var e *entities.EngineError
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case entities.KindMissingContext:
		return http.StatusBadRequest
	case entities.KindMalformedResponse:
		return http.StatusBadGateway
	case entities.KindVoteRejected:
		return http.StatusConflict
	case entities.KindArithmetic:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondWithEngineError renders err with the status of its kind. Unknown errors are
// logged and hidden behind a generic message.
func respondWithEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusForError(err)

	var e *entities.EngineError
	if !errors.As(err, &e) {
		logging.Error("Unhandled error", "path", r.URL.Path, "error", err)
		RespondWithError(w, code, "Internal server error")
		return
	}

	message := e.Detail
	if message == "" {
		message = err.Error()
	}
	if code >= http.StatusInternalServerError {
		logging.Warn("Request failed", "path", r.URL.Path, "kind", e.Kind.String(), "status", code, "error", err)
	}
	RespondWithError(w, code, message)
}

// decodeJSON reads a single JSON object from the request body
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body too large")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
