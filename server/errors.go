package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Errno values carried in error bodies. 1xx codes identify the failing
// field; the rest mirror their HTTP status class.
const (
	ErrnoInvalidUsername = 100
	ErrnoInvalidEmail    = 101
	ErrnoInvalidPassword = 102
	ErrnoAuthHeader      = 103
	ErrnoBadRequest      = 400
	ErrnoUnauthorized    = 401
	ErrnoNotFound        = 404
	ErrnoAdminExists     = 410
	ErrnoInternal        = 500
)

// Canonical error messages, kept verbatim across API versions.
const (
	MessageInvalidUsername = "Invalid user name"
	MessageInvalidEmail    = "Invalid email"
	MessageInvalidPassword = "Invalid password. Passwords must have a minimum of 8 chars"
	MessageAuthHeader      = "Missing or malformed authentication header"
	MessageAdminExists     = "There is already an admin account"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Errno   int    `json:"errno"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status, errno int, message string) {
	writeJSON(w, status, ErrorBody{Errno: errno, Message: message})
}

// writeInternalError logs the cause and answers a bare 500: store and
// encoding failures must not leak detail into the body.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("internal error")
	writeError(w, http.StatusInternalServerError, ErrnoInternal, "")
}
