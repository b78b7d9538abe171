package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-users-service/users"
)

// sessionResponse is the body of every successful authentication.
type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

// userRequest is the create body for both setup and user creation. Field
// order matters: validation reports the first failing field, and the
// contract is username, then email, then password.
type userRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,plausible_email"`
	Password string `json:"password" validate:"required,min=8"`
}

// updateUserRequest carries optional replacement fields for an existing
// user. Absent fields are left untouched.
type updateUserRequest struct {
	Username string `json:"username" validate:"omitempty"`
	Email    string `json:"email" validate:"omitempty,plausible_email"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// handleSetup creates the one-time first administrator.
//
// The admin check and the later insert are not atomic; two concurrent setup
// calls can both observe an empty store. The store's single-admin constraint
// is the real safety boundary, this check is the fast path.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	admins, err := s.users.Admins(r.Context())
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleSetup] reading admins"))
		return
	}
	if len(admins) > 0 {
		writeError(w, http.StatusGone, ErrnoAdminExists, MessageAdminExists)
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrnoBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errno, message := fieldError(err)
		writeError(w, http.StatusBadRequest, errno, message)
		return
	}

	admin := &users.User{Name: req.Username, Email: req.Email, IsAdmin: true}
	if err := admin.SetPassword(req.Password); err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleSetup] hashing password"))
		return
	}

	created, err := s.users.Create(r.Context(), admin)
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleSetup] creating admin"))
		return
	}

	s.respondWithSession(w, created)
}

// handleLogin exchanges Basic credentials for a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		writeError(w, http.StatusBadRequest, ErrnoAuthHeader, MessageAuthHeader)
		return
	}

	matched, err := s.users.FindByCredentials(r.Context(), username, password)
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleLogin] reading users"))
		return
	}

	// Anything other than exactly one match is unauthorized: zero means bad
	// credentials, more than one means the pair is ambiguous.
	if len(matched) != 1 {
		writeError(w, http.StatusUnauthorized, ErrnoUnauthorized, "")
		return
	}

	s.respondWithSession(w, &matched[0])
}

func (s *Server) respondWithSession(w http.ResponseWriter, user *users.User) {
	sessionToken, err := s.sessions.Issue(user)
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[respondWithSession] issuing session token"))
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionToken: sessionToken})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrnoBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errno, message := fieldError(err)
		writeError(w, http.StatusBadRequest, errno, message)
		return
	}

	user := &users.User{Name: req.Username, Email: req.Email}
	if err := user.SetPassword(req.Password); err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleCreateUser] hashing password"))
		return
	}

	created, err := s.users.Create(r.Context(), user)
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleCreateUser] creating user"))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.All(r.Context())
	if err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleListUsers] reading users"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrnoNotFound, "")
			return
		}
		writeInternalError(w, errors.Wrap(err, "[handleGetUser] reading user"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrnoBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		errno, message := fieldError(err)
		writeError(w, http.StatusBadRequest, errno, message)
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrnoNotFound, "")
			return
		}
		writeInternalError(w, errors.Wrap(err, "[handleUpdateUser] reading user"))
		return
	}

	if req.Username != "" {
		user.Name = req.Username
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		if err := user.SetPassword(req.Password); err != nil {
			writeInternalError(w, errors.Wrap(err, "[handleUpdateUser] hashing password"))
			return
		}
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		writeInternalError(w, errors.Wrap(err, "[handleUpdateUser] updating user"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrnoNotFound, "")
			return
		}
		writeInternalError(w, errors.Wrap(err, "[handleDeleteUser] deleting user"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrnoBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}

// fieldError maps the first failing field of a validation error onto its
// errno and message. Validation stops at the first failure; errors are never
// aggregated.
func fieldError(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Username":
			return ErrnoInvalidUsername, MessageInvalidUsername
		case "Email":
			return ErrnoInvalidEmail, MessageInvalidEmail
		case "Password":
			return ErrnoInvalidPassword, MessageInvalidPassword
		}
	}
	return ErrnoBadRequest, "Invalid request body"
}
