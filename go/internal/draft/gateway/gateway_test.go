package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/draft/events"
	"github.com/mcdev12/puckdraft/go/internal/lobby"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type fakeGrace struct {
	mu       sync.Mutex
	waiting  map[string]string
	armed    int
	canceled int
}

func (f *fakeGrace) Arm(roomID, userID string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waiting == nil {
		f.waiting = make(map[string]string)
	}
	f.waiting[roomID] = userID
	f.armed++
}

func (f *fakeGrace) Cancel(roomID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waiting[roomID] != userID {
		return false
	}
	delete(f.waiting, roomID)
	f.canceled++
	return true
}

func (f *fakeGrace) Waiting(roomID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.waiting[roomID]
	return id, ok
}

func (f *fakeGrace) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed, f.canceled
}

type fakeNudger struct {
	mu     sync.Mutex
	nudges []string
}

func (f *fakeNudger) Nudge(roomID, botID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !models.IsBot(botID) {
		return fmt.Errorf("%s is not a bot", botID)
	}
	f.nudges = append(f.nudges, roomID+"/"+botID)
	return nil
}

type harness struct {
	srv   *httptest.Server
	svc   *draft.Service
	store *catalog.Store
	clock *clockwork.FakeClock
	grace *fakeGrace
	bots  *fakeNudger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 1, 19, 0, 0, 0, time.UTC))
	store := catalog.NewStore(clock)
	var players []*models.Player
	for i, pos := range []models.Position{"LW", "C", "RW", "D", "D", "G"} {
		id := fmt.Sprintf("p%02d", i)
		players = append(players, &models.Player{
			ID: id, FirstName: "Skater", LastName: id, Position: pos,
			CapHit: 4_000_000, Stats: models.PlayerStats{Points: 100 - i},
		})
	}
	store.SetPlayers(players)

	hub := NewConnectionManager(DefaultConnectionConfig(), clock)
	svc := draft.NewService(draft.NewManager(clock), store, persistence.NewMemoryRepository(), nil, hub, clock)
	h := &harness{svc: svc, store: store, clock: clock, grace: &fakeGrace{}, bots: &fakeNudger{}}
	New(Deps{
		Hub:     hub,
		Service: svc,
		Lobbies: lobby.NewManager(clock, svc, hub),
		Bots:    h.bots,
		Grace:   h.grace,
		Admins:  auth.NewAdmins([]string{"admin"}, store),
	}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)

	r := chi.NewRouter()
	NewWebSocketHandler(hub, nil).RegisterRoutes(r)
	h.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		h.srv.Close()
		cancel()
	})
	return h
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T, userID string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?user_id=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	c := &client{t: t, conn: conn}
	t.Cleanup(func() { conn.Close() })
	c.expect(events.Connected)
	return c
}

func (c *client) send(eventType string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Inbound{Type: eventType, Data: raw}))
}

// expect reads until a frame of eventType arrives and returns it.
func (c *client) expect(eventType string) Envelope {
	c.t.Helper()
	return c.expectWhere(eventType, func(json.RawMessage) bool { return true })
}

func (c *client) expectWhere(eventType string, match func(json.RawMessage) bool) Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType && match(env.Data) {
			return env
		}
	}
}

func (c *client) expectError(eventType, message string) {
	c.t.Helper()
	env := c.expect(eventType)
	var payload events.ErrorPayload
	require.NoError(c.t, json.Unmarshal(env.Data, &payload))
	assert.Equal(c.t, message, payload.Message)
}

func (c *client) joinRoom(roomID string) {
	c.t.Helper()
	c.send("draft:join", map[string]string{"roomId": roomID})
	c.expect(events.DraftPresence)
}

func stateWhere(match func(draft.State) bool) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var st draft.State
		return json.Unmarshal(raw, &st) == nil && match(st)
	}
}

func (h *harness) start(t *testing.T, order ...string) {
	t.Helper()
	_, err := h.svc.StartDraft(context.Background(), draft.Config{RoomID: "room-1", PickOrder: order, TimerSec: 30})
	require.NoError(t, err)
}

func TestConnectAndPing(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "u1")

	c.send("ping", nil)
	env := c.expect(events.Pong)
	assert.NotEmpty(t, env.ID)
	assert.Empty(t, env.Data)
}

func TestRejectsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownMessageType(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "u1")
	c.send("draft:dance", nil)
	c.expectError(events.DraftError, "Unknown message type: draft:dance")
}

func TestPickIsBroadcastToRoom(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")
	u1.joinRoom("room-1")
	u2.joinRoom("room-1")
	h.start(t, "u1", "u2")
	u2.expect(events.DraftState)

	u1.send("draft:pick", map[string]string{"roomId": "room-1", "playerId": "p00"})
	env := u2.expectWhere(events.DraftState, stateWhere(func(st draft.State) bool { return st.PickIndex == 1 }))

	var st draft.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.Len(t, st.Picks, 1)
	assert.Equal(t, "p00", st.Picks[0].PlayerID)
	assert.Equal(t, "u2", st.ActiveUserID)
}

func TestPickErrorsGoToSender(t *testing.T) {
	h := newHarness(t)
	u2 := h.dial(t, "u2")
	u2.joinRoom("room-1")
	h.start(t, "u1", "u2")

	u2.send("draft:pick", map[string]string{"roomId": "room-1", "playerId": "p00"})
	u2.expectError(events.DraftError, "Not your turn")

	u2.send("draft:pick", map[string]string{"roomId": "nope", "playerId": "p00"})
	u2.expectError(events.DraftError, "Draft room not found")
}

func TestJoinSendsCurrentState(t *testing.T) {
	h := newHarness(t)
	h.start(t, "u1", "u2")

	c := h.dial(t, "u1")
	c.send("draft:join", map[string]string{"roomId": "room-1"})
	env := c.expect(events.DraftState)
	var st draft.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Started)
	assert.Equal(t, "u1", st.ActiveUserID)
}

func TestPauseAndResumeAreAdminOnly(t *testing.T) {
	h := newHarness(t)
	h.start(t, "u1", "u2")
	u1, admin := h.dial(t, "u1"), h.dial(t, "admin")

	u1.send("draft:pause", map[string]string{"roomId": "room-1"})
	u1.expectError(events.DraftError, "Only admin can pause the draft")

	admin.joinRoom("room-1")
	admin.send("draft:pause", map[string]string{"roomId": "room-1"})
	admin.expectWhere(events.DraftState, stateWhere(func(st draft.State) bool { return st.Paused }))

	u1.send("draft:resume", map[string]string{"roomId": "room-1"})
	u1.expectError(events.DraftError, "Only admin can resume the draft")

	admin.send("draft:resume", map[string]string{"roomId": "room-1"})
	admin.expectWhere(events.DraftState, stateWhere(func(st draft.State) bool { return !st.Paused }))
}

func presenceCount(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var p events.PresencePayload
		return json.Unmarshal(raw, &p) == nil && p.Count == n
	}
}

func TestPresenceFollowsConnections(t *testing.T) {
	h := newHarness(t)
	u1 := h.dial(t, "u1")
	u1.joinRoom("room-1")

	second := h.dial(t, "u1")
	second.joinRoom("room-1")
	u2 := h.dial(t, "u2")
	u2.joinRoom("room-1")
	u1.expectWhere(events.DraftPresence, presenceCount(2))

	// u1 is still present through the first connection.
	require.NoError(t, second.conn.Close())
	require.NoError(t, u2.conn.Close())
	env := u1.expectWhere(events.DraftPresence, presenceCount(1))
	var p events.PresencePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, []string{"u1"}, p.Users)
}

func TestReconnectGrace(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")
	u1.joinRoom("room-1")
	u2.joinRoom("room-1")
	h.start(t, "u1", "u2")

	require.NoError(t, u1.conn.Close())
	env := u2.expect(events.DraftReconnectWait)
	var wait events.ReconnectWaitPayload
	require.NoError(t, json.Unmarshal(env.Data, &wait))
	assert.Equal(t, events.ReconnectWaitPayload{RoomID: "room-1", UserID: "u1", GraceMs: 60000}, wait)

	st, err := h.svc.State("room-1")
	require.NoError(t, err)
	assert.True(t, st.Paused)
	armed, _ := h.grace.counts()
	assert.Equal(t, 1, armed)

	back := h.dial(t, "u1")
	back.send("draft:join", map[string]string{"roomId": "room-1"})
	u2.expect(events.PlayerReconnected)
	u2.expectWhere(events.DraftState, stateWhere(func(st draft.State) bool { return !st.Paused }))
	_, canceled := h.grace.counts()
	assert.Equal(t, 1, canceled)
}

func TestInactiveUserDisconnectDoesNotPause(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")
	u1.joinRoom("room-1")
	u2.joinRoom("room-1")
	h.start(t, "u1", "u2")

	require.NoError(t, u2.conn.Close())
	u1.expectWhere(events.DraftPresence, presenceCount(1))

	st, err := h.svc.State("room-1")
	require.NoError(t, err)
	assert.False(t, st.Paused)
	armed, _ := h.grace.counts()
	assert.Zero(t, armed)
}

func participantCount(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var snap lobby.Snapshot
		return json.Unmarshal(raw, &snap) == nil && len(snap.Participants) == n
	}
}

func TestLobbyJoinKickAndBots(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")

	u1.send("lobby:join", map[string]string{"login": "alice"})
	env := u1.expect(events.LobbyRoomAssigned)
	var assigned events.RoomAssignedPayload
	require.NoError(t, json.Unmarshal(env.Data, &assigned))
	assert.Equal(t, DefaultLobbyRoomID, assigned.RoomID)

	u2.send("lobby:join", map[string]string{"login": "bob"})
	u2.expect(events.LobbyRoomAssigned)
	u1.expectWhere(events.LobbyParticipants, participantCount(2))

	u2.send("lobby:kick", map[string]string{"userId": "u1"})
	u2.expectError(events.LobbyError, "Only admin can kick participants")

	u1.send("lobby:addBots", map[string]any{"count": 2})
	u1.expectError(events.LobbyError, "Only admins can add bots")

	u1.send("lobby:kick", map[string]string{"userId": "u2"})
	u2.expect(events.LobbyKicked)
	u1.expectWhere(events.LobbyParticipants, participantCount(1))
}

func TestLobbyParticipantsReportAllReady(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")
	u1.send("lobby:join", nil)
	u1.expect(events.LobbyRoomAssigned)
	u2.send("lobby:join", nil)
	u2.expect(events.LobbyRoomAssigned)

	allReady := func(want bool) func(json.RawMessage) bool {
		return func(raw json.RawMessage) bool {
			var snap lobby.Snapshot
			return json.Unmarshal(raw, &snap) == nil && len(snap.Participants) == 2 && snap.AllReady == want
		}
	}

	u1.send("lobby:ready", map[string]any{"ready": true})
	u1.expect(events.LobbyReady)
	u1.expectWhere(events.LobbyParticipants, allReady(false))

	u2.send("lobby:ready", map[string]any{"ready": true})
	u1.expectWhere(events.LobbyParticipants, allReady(true))

	u2.send("lobby:ready", map[string]any{"ready": false})
	u1.expectWhere(events.LobbyParticipants, allReady(false))
}

func TestConnectRegistersUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.User("u5")
	require.ErrorIs(t, err, catalog.ErrUserNotFound)

	h.dial(t, "u5")
	u, err := h.store.User("u5")
	require.NoError(t, err)
	assert.Equal(t, "u5", u.Login)
}

func TestDraftStartUsesServiceDefaultTimer(t *testing.T) {
	h := newHarness(t)
	h.svc.SetDefaultTimerSec(45)
	c := h.dial(t, "u1")

	c.send("draft:start", map[string]any{"roomId": "room-1", "pickOrder": []string{"u1", "u2"}})
	env := c.expectWhere(events.DraftState, stateWhere(func(st draft.State) bool { return st.Started }))
	var st draft.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 45.0, st.TimerSec)
}

func TestLobbyAdminAddsBots(t *testing.T) {
	h := newHarness(t)
	admin := h.dial(t, "admin")
	admin.send("lobby:join", map[string]string{"login": "root"})
	admin.expect(events.LobbyRoomAssigned)

	admin.send("lobby:addBots", map[string]any{"count": 2})
	admin.expectWhere(events.LobbyParticipants, participantCount(3))
}

func TestLobbyDisconnectReleasesSeat(t *testing.T) {
	h := newHarness(t)
	u1, u2 := h.dial(t, "u1"), h.dial(t, "u2")
	u1.send("lobby:join", nil)
	u1.expect(events.LobbyRoomAssigned)
	u2.send("lobby:join", nil)
	u2.expect(events.LobbyRoomAssigned)

	require.NoError(t, u2.conn.Close())
	env := u1.expectWhere(events.LobbyParticipants, participantCount(1))
	var snap lobby.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "u1", snap.Participants[0].UserID)
	assert.Equal(t, "u1", snap.Participants[0].Login)
}

func TestLobbyStartOpensDraftAfterCountdown(t *testing.T) {
	h := newHarness(t)
	u1 := h.dial(t, "u1")
	u1.send("lobby:join", map[string]string{"login": "alice"})
	u1.expect(events.LobbyRoomAssigned)

	u1.send("lobby:start", nil)
	u1.expect(events.DraftStarting)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(lobby.DefaultCountdown)

	env := u1.expect(events.LobbyStart)
	var started events.LobbyStartPayload
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, []string{"u1"}, started.PickOrder)

	st, err := h.svc.State(DefaultLobbyRoomID)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, float64(lobby.DefaultTimerSec), st.TimerSec)
}

func TestBotQuickPick(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "u1")

	c.send("bot:quickpick", map[string]string{"roomId": "room-1", "userId": "u2"})
	c.expectError(events.DraftError, "u2 is not a bot")

	c.send("bot:quickpick", map[string]string{"roomId": "room-1", "userId": "bot-1-0"})
	c.send("ping", nil)
	c.expect(events.Pong)

	h.bots.mu.Lock()
	defer h.bots.mu.Unlock()
	assert.Equal(t, []string{"room-1/bot-1-0"}, h.bots.nudges)
}

func TestStatsHandler(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, "u1")
	c.joinRoom("room-1")

	resp, err := http.Get(h.srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.Topics["room-1"])
}
