package handler

// RESPONSE HELPERS:
// Every JSON error the console sends has the same shape:
//   {"error": "not_found", "message": "post not found with id 12"}
//
// Pages use the same mapping through statusFor, so a missing post is a 404
// whether the browser asked for HTML or JSON.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bytetopia/blanko-console/internal/api"
	"github.com/bytetopia/blanko-console/internal/apperror"
)

// maxJSONBody caps request bodies the JSON endpoints will read.
const maxJSONBody = 1 << 20

// ErrorResponse is the standard error format returned by all JSON endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`           // Human-readable description
	Field   string `json:"field,omitempty"`   // Form field at fault, for validation errors
	Login   string `json:"login,omitempty"`   // Where to send the browser after a 401
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to an HTTP status and a machine-readable
// error type.
//
// errors.Is walks the whole chain, so a service returning
// fmt.Errorf("deleting tag 3: %w", apperror.NotFound(...)) still maps to 404.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrAuthExpired):
		return http.StatusUnauthorized, "auth_expired"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrWriteFailed), errors.Is(err, apperror.ErrLoadFailed):
		return http.StatusBadGateway, "upstream_error"
	}

	var se *api.StatusError
	if errors.As(err, &se) {
		if se.Status >= 400 && se.Status < 500 {
			return se.Status, "rejected"
		}
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// errorMessage is the text shown to the operator. Backend rejections carry
// their own message; unknown errors never leak their details.
func errorMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "An internal error occurred"
}

// writeError sends err as a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	resp := ErrorResponse{Error: kind, Message: errorMessage(err)}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}
	if status == http.StatusUnauthorized {
		resp.Login = loginURLFor(r)
	}
	if status >= 500 {
		slog.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
