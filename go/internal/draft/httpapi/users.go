package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/models"
)

type createUserRequest struct {
	Login    string          `json:"login"`
	TeamName string          `json:"teamName"`
	Logo     string          `json:"logo"`
	Role     models.UserRole `json:"role"`
}

// Me returns the caller's user record.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	u, err := a.svc.Store().User(userID)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (a *API) Users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.svc.Store().Users()})
}

// User looks the path parameter up as an id, then as a login.
func (a *API) User(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "userId")
	store := a.svc.Store()
	u, err := store.User(key)
	if errors.Is(err, catalog.ErrUserNotFound) {
		u, err = store.UserByLogin(key)
	}
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// CreateUser registers a user and gives them an empty week-1 team.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Login == "" {
		writeError(w, http.StatusBadRequest, "login is required")
		return
	}
	if req.TeamName == "" {
		req.TeamName = req.Login + "'s Team"
	}
	if req.Logo == "" {
		req.Logo = "default-logo"
	}
	if req.Role == "" {
		req.Role = models.UserRoleUser
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, catalog.ErrInvalidRole.Error())
		return
	}

	store := a.svc.Store()
	u, err := store.CreateUser(req.Login, req.TeamName, req.Logo, req.Role)
	if err != nil {
		writeUserError(w, err)
		return
	}
	team := store.CreateTeam(u.ID, u.TeamName, u.Logo, 1)
	log.Info().Str("user_id", u.ID).Str("login", u.Login).Str("role", string(u.Role)).Msg("user created")
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created",
		"user":    u,
		"team":    team,
	})
}

func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var patch catalog.UserPatch
	if !decode(w, r, &patch) {
		return
	}
	u, err := a.svc.Store().UpdateUser(userID, patch)
	if err != nil {
		writeUserError(w, err)
		return
	}
	log.Info().Str("user_id", userID).Str("role", string(u.Role)).Msg("user updated")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated",
		"user":    u,
	})
}

// DeleteUser removes a user and their team. Admins cannot delete themselves,
// and seats in an unfinished draft are kept.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if caller, _ := auth.UserID(r.Context()); caller == userID {
		writeError(w, http.StatusBadRequest, "Cannot delete yourself")
		return
	}
	if roomID, ok := a.svc.Drafting(userID); ok {
		writeError(w, http.StatusConflict, "User is drafting in room "+roomID)
		return
	}
	if err := a.svc.Store().DeleteUser(userID); err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUserNotFound):
		writeError(w, http.StatusNotFound, catalog.ErrUserNotFound.Error())
	case errors.Is(err, catalog.ErrLoginTaken):
		writeError(w, http.StatusBadRequest, catalog.ErrLoginTaken.Error())
	case errors.Is(err, catalog.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, catalog.ErrInvalidRole.Error())
	default:
		writeServiceError(w, err)
	}
}
