// Package auth resolves who is calling and whether they may administer drafts.
// Credential checks live outside this service; callers are identified by the
// user id the fronting layer forwards.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

var ErrUnauthenticated = errors.New("Authentication required")

const (
	UserIDHeader = "X-User-ID"
	UserIDQuery  = "user_id"
)

// Authenticator extracts the caller's user id from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts the X-User-ID header, falling back to the
// user_id query parameter for websocket clients that cannot set headers.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	return FromHeader(r.Header, r.URL.Query().Get(UserIDQuery))
}

// FromHeader resolves a user id from headers, then from fallback.
func FromHeader(h http.Header, fallback string) (string, error) {
	if id := strings.TrimSpace(h.Get(UserIDHeader)); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(fallback); id != "" {
		return id, nil
	}
	return "", ErrUnauthenticated
}

type ctxKey struct{}

// WithUserID stores the caller on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the caller stored by WithUserID.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// UserLookup finds registered users.
type UserLookup interface {
	User(id string) (*models.User, error)
}

// Admins decides who is a global admin: anyone listed in ADMIN_USER_IDS or
// any registered user with the admin role.
type Admins struct {
	ids   map[string]bool
	users UserLookup
}

func NewAdmins(ids []string, users UserLookup) *Admins {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return &Admins{ids: set, users: users}
}

// ParseAdminIDs splits a comma separated ADMIN_USER_IDS value.
func ParseAdminIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (a *Admins) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	if a.ids[userID] {
		return true
	}
	if a.users == nil {
		return false
	}
	u, err := a.users.User(userID)
	return err == nil && u.Role == models.UserRoleAdmin
}
