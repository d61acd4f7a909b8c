package server

import (
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/school-console/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewValidationError("required", "name"), http.StatusBadRequest},
		{"not signed in", apperrors.ErrNotSignedIn, http.StatusUnauthorized},
		{"expired token", apperrors.Wrapf(apperrors.ErrTokenExpired, "magic link"), http.StatusUnauthorized},
		{"forbidden", apperrors.Wrapf(apperrors.ErrForbidden, "list tenants"), http.StatusForbidden},
		{"unresolved", apperrors.ErrUnresolved, http.StatusForbidden},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"write of missing row", apperrors.WriteFailed(apperrors.ErrNotFound), http.StatusNotFound},
		{"wrong state", apperrors.Wrapf(apperrors.ErrInvalidTransition, "back from tenant"), http.StatusConflict},
		{"no tenant bound", apperrors.ErrNoTenantBound, http.StatusConflict},
		{"stale epoch", apperrors.ErrSessionInvalidated, http.StatusConflict},
		{"resolution failed", apperrors.ResolutionFailed(errors.New("db down")), http.StatusServiceUnavailable},
		{"write failed", apperrors.WriteFailed(errors.New("db down")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestPublicErrorHidesCauses(t *testing.T) {
	body := publicError(apperrors.WriteFailed(errors.New("pq: relation students does not exist")))
	require.Equal(t, "write failed", body.Error)

	body = publicError(apperrors.ResolutionFailed(errors.New("dial tcp: refused")))
	require.Equal(t, "identity resolution failed", body.Error)

	body = publicError(apperrors.Wrapf(apperrors.ErrUnresolved, "no profile for user u1"))
	require.Equal(t, "identity unresolved", body.Error)

	body = publicError(errors.New("secret internals"))
	require.Equal(t, "internal error", body.Error)

	body = publicError(apperrors.NewValidationError("required", "box_number", "folder_number"))
	require.Equal(t, []string{"box_number", "folder_number"}, body.Fields)
}
