// Package gateway is the realtime surface of the draft: a topic-based
// websocket hub and the dispatcher for client messages, presence and
// reconnect grace.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/draft/events"
	"github.com/mcdev12/puckdraft/go/internal/lobby"
	"github.com/mcdev12/puckdraft/go/internal/models"
)

// DefaultLobbyRoomID is the room every lobby:join lands in.
const DefaultLobbyRoomID = "main-draft-room"

// PauseReasonReconnect marks a pause taken while the active user reconnects.
const PauseReasonReconnect = "reconnect_wait"

// Nudger plays a bot's pending turn immediately.
type Nudger interface {
	Nudge(roomID, botID string) error
}

// GraceTimers tracks the reconnect window of the active user.
type GraceTimers interface {
	Arm(roomID, userID string, grace time.Duration)
	Cancel(roomID, userID string) bool
	Waiting(roomID string) (string, bool)
}

// Config holds the gateway's tunables. draft:start without a timerSec uses
// the service's default clock.
type Config struct {
	LobbyRoomID    string
	ReconnectGrace time.Duration
	LobbyShuffle   bool
	LobbyCountdown time.Duration
	LobbyTimerSec  float64
}

func (c Config) withDefaults() Config {
	if c.LobbyRoomID == "" {
		c.LobbyRoomID = DefaultLobbyRoomID
	}
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = 60 * time.Second
	}
	if c.LobbyCountdown <= 0 {
		c.LobbyCountdown = lobby.DefaultCountdown
	}
	if c.LobbyTimerSec <= 0 {
		c.LobbyTimerSec = lobby.DefaultTimerSec
	}
	return c
}

// Deps are the services the gateway dispatches to.
type Deps struct {
	Hub     *ConnectionManager
	Service *draft.Service
	Lobbies *lobby.Manager
	Bots    Nudger
	Grace   GraceTimers
	Admins  *auth.Admins
}

type handlerFunc func(conn *Connection, data json.RawMessage) error

// Gateway routes client messages to the draft service and lobby manager.
type Gateway struct {
	hub      *ConnectionManager
	svc      *draft.Service
	lobbies  *lobby.Manager
	bots     Nudger
	grace    GraceTimers
	admins   *auth.Admins
	presence *Presence
	cfg      Config

	handlers map[string]handlerFunc
}

// New wires a gateway onto deps.Hub.
func New(deps Deps, cfg Config) *Gateway {
	g := &Gateway{
		hub:      deps.Hub,
		svc:      deps.Service,
		lobbies:  deps.Lobbies,
		bots:     deps.Bots,
		grace:    deps.Grace,
		admins:   deps.Admins,
		presence: NewPresence(),
		cfg:      cfg.withDefaults(),
	}
	g.handlers = map[string]handlerFunc{
		"ping":          g.handlePing,
		"draft:join":    g.handleDraftJoin,
		"draft:start":   g.handleDraftStart,
		"draft:state":   g.handleDraftState,
		"draft:pick":    g.handleDraftPick,
		"draft:pause":   g.handleDraftPause,
		"draft:resume":  g.handleDraftResume,
		"lobby:join":    g.handleLobbyJoin,
		"lobby:ready":   g.handleLobbyReady,
		"lobby:addBots": g.handleLobbyAddBots,
		"lobby:kick":    g.handleLobbyKick,
		"lobby:start":   g.handleLobbyStart,
		"bot:quickpick": g.handleBotQuickPick,
	}
	g.hub.OnConnect(g.Connect)
	g.hub.OnMessage(g.Dispatch)
	g.hub.OnDisconnect(g.Disconnect)
	return g
}

// Connect registers the authenticated caller in the user table.
func (g *Gateway) Connect(conn *Connection) {
	g.svc.Store().EnsureUser(conn.UserID, "")
}

// Presence exposes who is connected to each room.
func (g *Gateway) Presence() *Presence { return g.presence }

// Dispatch runs the handler for msg. Failures go back to the sender only.
func (g *Gateway) Dispatch(conn *Connection, msg Inbound) {
	h, ok := g.handlers[msg.Type]
	if !ok {
		g.hub.Send(conn, events.DraftError, events.ErrorPayload{Message: "Unknown message type: " + msg.Type})
		return
	}
	if err := h(conn, msg.Data); err != nil {
		errType := events.DraftError
		if strings.HasPrefix(msg.Type, "lobby:") {
			errType = events.LobbyError
		}
		var d deniedError
		if !draft.IsValidation(err) && !errors.As(err, &d) {
			log.Warn().Err(err).Str("type", msg.Type).Str("user_id", conn.UserID).Msg("client message failed")
		}
		g.hub.Send(conn, errType, events.ErrorPayload{Message: draft.PublicMessage(err)})
	}
}

// deniedError is an authorization failure; its text goes to the client as is.
type deniedError string

func (e deniedError) Error() string { return string(e) }

type roomRequest struct {
	RoomID string `json:"roomId"`
}

func (r roomRequest) require() error {
	if r.RoomID == "" {
		return errors.New("roomId is required")
	}
	return nil
}

func (g *Gateway) handlePing(conn *Connection, _ json.RawMessage) error {
	g.hub.Send(conn, events.Pong, nil)
	return nil
}

func (g *Gateway) handleDraftJoin(conn *Connection, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.require(); err != nil {
		return err
	}
	if !g.hub.Joined(conn, req.RoomID) {
		if !g.hub.Join(conn, req.RoomID) {
			return nil
		}
		g.presence.Join(req.RoomID, conn.UserID)
	}
	g.broadcastPresence(req.RoomID)

	st, err := g.svc.State(req.RoomID)
	if err != nil {
		// The room may not exist yet; the client gets state once it starts.
		return nil
	}
	g.hub.Send(conn, events.DraftState, st)

	if waiting, ok := g.grace.Waiting(req.RoomID); ok && waiting == conn.UserID && g.grace.Cancel(req.RoomID, conn.UserID) {
		g.hub.Broadcast(req.RoomID, events.PlayerReconnected, events.ReconnectedPayload{RoomID: req.RoomID, UserID: conn.UserID})
		if _, err := g.svc.Resume(conn.Context(), req.RoomID); err != nil {
			return err
		}
		log.Info().Str("room_id", req.RoomID).Str("user_id", conn.UserID).Msg("player reconnected within grace")
	}
	return nil
}

type startRequest struct {
	RoomID    string   `json:"roomId"`
	PickOrder []string `json:"pickOrder"`
	TimerSec  float64  `json:"timerSec"`
}

func (g *Gateway) handleDraftStart(conn *Connection, data json.RawMessage) error {
	var req startRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.TimerSec < 0 {
		req.TimerSec = 0
	}
	if req.RoomID != "" && !g.hub.Joined(conn, req.RoomID) && g.hub.Join(conn, req.RoomID) {
		g.presence.Join(req.RoomID, conn.UserID)
	}
	_, err := g.svc.StartDraft(conn.Context(), draft.Config{
		RoomID:    req.RoomID,
		PickOrder: req.PickOrder,
		TimerSec:  req.TimerSec,
	})
	return err
}

func (g *Gateway) handleDraftState(conn *Connection, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := req.require(); err != nil {
		return err
	}
	st, err := g.svc.State(req.RoomID)
	if err != nil {
		return err
	}
	g.hub.Send(conn, events.DraftState, st)
	return nil
}

type pickRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

func (g *Gateway) handleDraftPick(conn *Connection, data json.RawMessage) error {
	var req pickRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" || req.PlayerID == "" {
		return errors.New("roomId and playerId are required")
	}
	_, _, err := g.svc.MakePick(conn.Context(), req.RoomID, conn.UserID, req.PlayerID)
	return err
}

func (g *Gateway) handleDraftPause(conn *Connection, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !g.admins.IsAdmin(conn.UserID) {
		return deniedError("Only admin can pause the draft")
	}
	if err := req.require(); err != nil {
		return err
	}
	_, err := g.svc.Pause(conn.Context(), req.RoomID, "admin")
	return err
}

func (g *Gateway) handleDraftResume(conn *Connection, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !g.admins.IsAdmin(conn.UserID) {
		return deniedError("Only admin can resume the draft")
	}
	if err := req.require(); err != nil {
		return err
	}
	_, err := g.svc.Resume(conn.Context(), req.RoomID)
	return err
}

type lobbyJoinRequest struct {
	Login    string `json:"login"`
	TeamName string `json:"teamName"`
}

func (g *Gateway) handleLobbyJoin(conn *Connection, data json.RawMessage) error {
	var req lobbyJoinRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	roomID := g.cfg.LobbyRoomID

	login, teamName := req.Login, req.TeamName
	if user, err := g.svc.Store().User(conn.UserID); err == nil {
		if login == "" {
			login = user.Login
		}
		if teamName == "" {
			teamName = user.TeamName
		}
	}
	if login == "" {
		login = conn.UserID
	}

	g.lobbies.CreateOrGet(roomID, conn.UserID)
	snap, err := g.lobbies.AddParticipant(roomID, lobby.Participant{
		UserID:   conn.UserID,
		Login:    login,
		TeamName: teamName,
	})
	if err != nil {
		return err
	}
	g.hub.Join(conn, events.LobbyTopic(roomID))
	g.hub.Broadcast(events.LobbyTopic(roomID), events.LobbyParticipants, snap)
	g.hub.Send(conn, events.LobbyRoomAssigned, events.RoomAssignedPayload{RoomID: roomID})
	return nil
}

type readyRequest struct {
	RoomID string `json:"roomId"`
	Ready  bool   `json:"ready"`
}

func (g *Gateway) handleLobbyReady(conn *Connection, data json.RawMessage) error {
	var req readyRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	roomID := g.lobbyRoom(req.RoomID)
	snap, err := g.lobbies.SetReady(roomID, conn.UserID, req.Ready)
	if err != nil {
		return err
	}
	g.hub.Broadcast(events.LobbyTopic(roomID), events.LobbyReady, events.LobbyReadyPayload{UserID: conn.UserID, Ready: req.Ready})
	g.hub.Broadcast(events.LobbyTopic(roomID), events.LobbyParticipants, snap)
	return nil
}

type addBotsRequest struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

func (g *Gateway) handleLobbyAddBots(conn *Connection, data json.RawMessage) error {
	var req addBotsRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !g.admins.IsAdmin(conn.UserID) {
		return deniedError("Only admins can add bots")
	}
	roomID := g.lobbyRoom(req.RoomID)
	if _, err := g.lobbies.AddBots(roomID, req.Count, g.svc.Store()); err != nil {
		return err
	}
	g.broadcastParticipants(roomID)
	return nil
}

type kickRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

func (g *Gateway) handleLobbyKick(conn *Connection, data json.RawMessage) error {
	var req kickRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	roomID := g.lobbyRoom(req.RoomID)
	if !g.canManageLobby(roomID, conn.UserID) {
		return deniedError("Only admin can kick participants")
	}
	snap, err := g.lobbies.Kick(roomID, req.UserID)
	if err != nil {
		return err
	}
	g.hub.Broadcast(events.LobbyTopic(roomID), events.LobbyParticipants, snap)
	g.hub.SendToUser(req.UserID, events.LobbyKicked, events.LobbyKickedPayload{RoomID: roomID})
	return nil
}

func (g *Gateway) handleLobbyStart(conn *Connection, data json.RawMessage) error {
	var req roomRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	roomID := g.lobbyRoom(req.RoomID)
	if !g.canManageLobby(roomID, conn.UserID) {
		return deniedError("Only admin can start the draft")
	}
	_, err := g.lobbies.Start(roomID, lobby.StartOptions{
		Shuffle:   g.cfg.LobbyShuffle,
		Countdown: g.cfg.LobbyCountdown,
		TimerSec:  g.cfg.LobbyTimerSec,
	})
	return err
}

type quickPickRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

func (g *Gateway) handleBotQuickPick(conn *Connection, data json.RawMessage) error {
	var req quickPickRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" || req.UserID == "" {
		return errors.New("roomId and userId are required")
	}
	if g.bots == nil {
		return errors.New("bots are not enabled")
	}
	return g.bots.Nudge(req.RoomID, req.UserID)
}

// Disconnect cleans up after a closed connection: lobby seats are released,
// presence is updated, and an active human drafter gets a grace window.
func (g *Gateway) Disconnect(conn *Connection, topics []string) {
	for _, topic := range topics {
		if roomID, ok := strings.CutPrefix(topic, "lobby:"); ok {
			if g.hub.UserInTopic(topic, conn.UserID) {
				continue
			}
			if _, ok := g.lobbies.RemoveParticipant(roomID, conn.UserID); ok {
				g.broadcastParticipants(roomID)
			}
			continue
		}

		if !g.presence.Leave(topic, conn.UserID) {
			continue
		}
		g.broadcastPresence(topic)
		g.startGrace(topic, conn.UserID)
	}
}

func (g *Gateway) startGrace(roomID, userID string) {
	st, err := g.svc.State(roomID)
	if err != nil {
		return
	}
	if !st.Started || st.Completed || st.Paused || st.ActiveUserID != userID || models.IsBot(userID) {
		return
	}
	if _, waiting := g.grace.Waiting(roomID); waiting {
		return
	}

	if _, err := g.svc.Pause(context.Background(), roomID, PauseReasonReconnect); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to pause for reconnect")
		return
	}
	g.grace.Arm(roomID, userID, g.cfg.ReconnectGrace)
	g.hub.Broadcast(roomID, events.DraftReconnectWait, events.ReconnectWaitPayload{
		RoomID:  roomID,
		UserID:  userID,
		GraceMs: g.cfg.ReconnectGrace.Milliseconds(),
	})

	log.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Dur("grace", g.cfg.ReconnectGrace).
		Msg("active drafter disconnected, waiting for reconnect")
}

func (g *Gateway) broadcastPresence(roomID string) {
	users := g.presence.Users(roomID)
	g.hub.Broadcast(roomID, events.DraftPresence, events.PresencePayload{
		RoomID: roomID,
		Users:  users,
		Count:  len(users),
	})
}

func (g *Gateway) broadcastParticipants(roomID string) {
	if snap, ok := g.lobbies.Get(roomID); ok {
		g.hub.Broadcast(events.LobbyTopic(roomID), events.LobbyParticipants, snap)
	}
}

func (g *Gateway) lobbyRoom(roomID string) string {
	if roomID == "" {
		return g.cfg.LobbyRoomID
	}
	return roomID
}

func (g *Gateway) canManageLobby(roomID, userID string) bool {
	if g.admins.IsAdmin(userID) {
		return true
	}
	snap, ok := g.lobbies.Get(roomID)
	return ok && snap.AdminID == userID
}
