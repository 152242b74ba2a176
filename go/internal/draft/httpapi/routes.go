// Package httpapi serves the draft's REST surface with chi.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/draft"
)

// Version is reported by /health.
const Version = "1.0.0"

// API holds what the REST handlers read and mutate.
type API struct {
	svc       *draft.Service
	admins    *auth.Admins
	authn     auth.Authenticator
	readiness http.Handler
	clock     clockwork.Clock
	startedAt time.Time
}

// New builds the API. readiness backs /health/ready and may be nil.
func New(svc *draft.Service, admins *auth.Admins, authn auth.Authenticator, readiness http.Handler, clock clockwork.Clock) *API {
	if authn == nil {
		authn = auth.HeaderAuthenticator{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &API{
		svc:       svc,
		admins:    admins,
		authn:     authn,
		readiness: readiness,
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// Register mounts every REST route on r.
func (a *API) Register(r chi.Router) {
	r.Get("/health", a.Health)
	r.Get("/health/live", Live)
	r.Get("/health/ready", a.Ready)

	r.Get("/api/draft/state", a.DraftState)
	r.Get("/api/players", a.Players)
	r.Get("/api/leaderboard", a.Leaderboard)

	r.Group(func(r chi.Router) {
		r.Use(a.RequireUser)

		r.Post("/api/draft/start", a.StartDraft)
		r.Get("/api/draft/room", a.DraftRoom)
		r.Post("/api/draft/pick", a.MakePick)
		r.Get("/api/draft/rooms", a.Rooms)
		r.Get("/api/draft/history", a.History)
		r.Get("/api/draft/active", a.Active)
		r.Get("/api/players/available", a.AvailablePlayers)
		r.Get("/api/teams", a.Teams)
		r.Get("/api/team", a.Team)
		r.Get("/api/me", a.Me)

		r.Group(func(r chi.Router) {
			r.Use(a.RequireAdmin)

			r.Post("/api/draft/pause", a.Pause)
			r.Post("/api/draft/resume", a.Resume)
			r.Put("/api/admin/players/{playerId}/positions", a.SetPositions)

			r.Get("/api/admin/users", a.Users)
			r.Post("/api/admin/users", a.CreateUser)
			r.Get("/api/admin/users/{userId}", a.User)
			r.Put("/api/admin/users/{userId}", a.UpdateUser)
			r.Delete("/api/admin/users/{userId}", a.DeleteUser)
		})
	})
}

// Routes returns a router with only the REST routes.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	a.Register(r)
	return r
}

// RequireUser rejects requests without an authenticated user id and
// registers first-time callers in the user table.
func (a *API) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authn.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		a.svc.Store().EnsureUser(userID, "")
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

// RequireAdmin rejects callers that are not global admins. It runs after RequireUser.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserID(r.Context())
		if !a.admins.IsAdmin(userID) {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
