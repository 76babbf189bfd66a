package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gigboard/internal/acceptance"
	"gigboard/internal/auth"
	"gigboard/internal/job"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOne(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeList[T any](w http.ResponseWriter, data []T) {
	if data == nil {
		data = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(data), "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound),
		errors.Is(err, acceptance.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrForbidden),
		errors.Is(err, acceptance.ErrForbidden),
		errors.Is(err, acceptance.ErrOwnJob):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, acceptance.ErrAlreadyAccepted),
		errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, job.ErrInvalidInput),
		errors.Is(err, acceptance.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrFederationDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func sessionEmailMatches(claims auth.Claims, email string) bool {
	email = auth.NormalizeEmail(email)
	return email == "" || email == auth.NormalizeEmail(claims.Email)
}
