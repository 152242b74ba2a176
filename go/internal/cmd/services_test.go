package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/draft"
)

const testPlayers = `[
  {"id":"p1","firstName":"Connor","lastName":"McDavid","position":"C","capHit":12500000,"team":"EDM","stats":{"games":82,"goals":64,"assists":89,"points":153},"draftedBy":null,"draftWeek":null},
  {"id":"p2","firstName":"Cale","lastName":"Makar","position":"D","capHit":9000000,"team":"COL","stats":{"games":77,"goals":21,"assists":69,"points":90},"draftedBy":null,"draftWeek":null}
]`

func newTestServices(t *testing.T) (*Config, *Services) {
	t.Helper()
	dir := t.TempDir()
	players := filepath.Join(dir, "players.json")
	require.NoError(t, os.WriteFile(players, []byte(testPlayers), 0o600))

	cfg, err := loadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.Catalog.PlayersFile = players
	cfg.Catalog.EligiblePositionsFile = filepath.Join(dir, "none.json")

	services, err := setupServices(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(services.Close)
	return cfg, services
}

func TestTimerSecAppliesToHTTPStart(t *testing.T) {
	t.Setenv("TIMER_SEC", "45")
	cfg, services := newTestServices(t)
	assert.Equal(t, 45.0, services.Draft.DefaultTimerSec())

	srv := setupServer(cfg, services)
	req := httptest.NewRequest(http.MethodPost, "/api/draft/start", strings.NewReader(`{"roomId":"room-1","pickOrder":["u1","u2"]}`))
	req.Header.Set(auth.UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		DraftState draft.State `json:"draftState"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 45.0, body.DraftState.TimerSec)
}

func TestAuthenticatedCallersAreRegistered(t *testing.T) {
	cfg, services := newTestServices(t)
	srv := setupServer(cfg, services)

	req := httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set(auth.UserIDHeader, "u7")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := services.Store.User("u7")
	require.NoError(t, err)
	assert.Equal(t, "u7", u.Login)
}
