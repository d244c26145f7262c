package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/tenantry/pkg/storage"
	"github.com/platinummonkey/tenantry/pkg/tenancy"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// StatusFor maps an error from the domain packages to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, tenancy.ErrTenantUnresolved):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status StatusFor picks. Internal errors are
// reported without their message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	WriteErrorMessage(w, status, message)
}
