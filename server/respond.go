package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotSignedIn),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrUnresolved):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrNoTenantBound),
		errors.Is(err, apperrors.ErrSessionInvalidated):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrResolutionFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError renders err for clients. Backing-store causes stay in the log.
func publicError(err error) errorBody {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		return errorBody{Error: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, apperrors.ErrNotFound):
		return errorBody{Error: err.Error()}
	case errors.Is(err, apperrors.ErrWrite):
		return errorBody{Error: apperrors.ErrWrite.Error()}
	case errors.Is(err, apperrors.ErrResolutionFailed):
		return errorBody{Error: apperrors.ErrResolutionFailed.Error()}
	case errors.Is(err, apperrors.ErrUnresolved):
		return errorBody{Error: apperrors.ErrUnresolved.Error()}
	}
	if statusFor(err) == http.StatusInternalServerError {
		return errorBody{Error: "internal error"}
	}
	return errorBody{Error: err.Error()}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := s.log.Debug()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, publicError(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("empty request body")
		}
		return apperrors.NewValidationError("malformed JSON body")
	}
	return nil
}
