// Package rpc serves DraftService over connect with a JSON codec.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/draft"
)

// ServiceName is the fully-qualified connect service name.
const ServiceName = "puckdraft.draft.v1.DraftService"

// Procedure paths, relative to the mount point.
const (
	ProcedureStartDraft    = "/" + ServiceName + "/StartDraft"
	ProcedureGetDraftState = "/" + ServiceName + "/GetDraftState"
	ProcedureMakePick      = "/" + ServiceName + "/MakePick"
	ProcedurePauseDraft    = "/" + ServiceName + "/PauseDraft"
	ProcedureResumeDraft   = "/" + ServiceName + "/ResumeDraft"
	ProcedureListRooms     = "/" + ServiceName + "/ListRooms"
	ProcedureGetHistory    = "/" + ServiceName + "/GetHistory"
)

// Service implements DraftService on top of the draft service.
type Service struct {
	svc    *draft.Service
	admins *auth.Admins
}

// NewService creates a new draft connect service
func NewService(svc *draft.Service, admins *auth.Admins) *Service {
	return &Service{svc: svc, admins: admins}
}

// NewHandler returns the mount path and handler for s, like generated
// connect code does.
func NewHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(ProcedureStartDraft, connect.NewUnaryHandler(ProcedureStartDraft, s.StartDraft, opts...))
	mux.Handle(ProcedureGetDraftState, connect.NewUnaryHandler(ProcedureGetDraftState, s.GetDraftState, opts...))
	mux.Handle(ProcedureMakePick, connect.NewUnaryHandler(ProcedureMakePick, s.MakePick, opts...))
	mux.Handle(ProcedurePauseDraft, connect.NewUnaryHandler(ProcedurePauseDraft, s.PauseDraft, opts...))
	mux.Handle(ProcedureResumeDraft, connect.NewUnaryHandler(ProcedureResumeDraft, s.ResumeDraft, opts...))
	mux.Handle(ProcedureListRooms, connect.NewUnaryHandler(ProcedureListRooms, s.ListRooms, opts...))
	mux.Handle(ProcedureGetHistory, connect.NewUnaryHandler(ProcedureGetHistory, s.GetHistory, opts...))
	return "/" + ServiceName + "/", mux
}

// StartDraft opens a room and starts its clock
func (s *Service) StartDraft(ctx context.Context, req *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error) {
	if _, err := s.caller(req.Header()); err != nil {
		return nil, err
	}
	st, err := s.svc.StartDraft(ctx, draft.Config{
		RoomID:     req.Msg.RoomID,
		PickOrder:  req.Msg.PickOrder,
		TimerSec:   req.Msg.TimerSec,
		SnakeDraft: req.Msg.SnakeDraft,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StartDraftResponse{DraftState: st}), nil
}

// GetDraftState returns a room's current state
func (s *Service) GetDraftState(ctx context.Context, req *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error) {
	if req.Msg.RoomID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("roomId is required"))
	}
	st, err := s.svc.State(req.Msg.RoomID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetDraftStateResponse{DraftState: st}), nil
}

// MakePick picks a player for the calling user
func (s *Service) MakePick(ctx context.Context, req *connect.Request[MakePickRequest]) (*connect.Response[MakePickResponse], error) {
	userID, err := s.caller(req.Header())
	if err != nil {
		return nil, err
	}
	if req.Msg.RoomID == "" || req.Msg.PlayerID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("roomId and playerId are required"))
	}
	st, team, err := s.svc.MakePick(ctx, req.Msg.RoomID, userID, req.Msg.PlayerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MakePickResponse{DraftState: st, Team: team}), nil
}

// PauseDraft freezes a room's clock. Admin only.
func (s *Service) PauseDraft(ctx context.Context, req *connect.Request[PauseDraftRequest]) (*connect.Response[PauseDraftResponse], error) {
	if err := s.requireAdmin(req.Header()); err != nil {
		return nil, err
	}
	st, err := s.svc.Pause(ctx, req.Msg.RoomID, "admin")
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PauseDraftResponse{DraftState: st}), nil
}

// ResumeDraft restarts a paused room's clock. Admin only.
func (s *Service) ResumeDraft(ctx context.Context, req *connect.Request[ResumeDraftRequest]) (*connect.Response[ResumeDraftResponse], error) {
	if err := s.requireAdmin(req.Header()); err != nil {
		return nil, err
	}
	st, err := s.svc.Resume(ctx, req.Msg.RoomID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ResumeDraftResponse{DraftState: st}), nil
}

// ListRooms lists persisted rooms
func (s *Service) ListRooms(ctx context.Context, req *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	if _, err := s.caller(req.Header()); err != nil {
		return nil, err
	}
	rooms, err := s.svc.Rooms(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListRoomsResponse{Rooms: rooms}), nil
}

// GetHistory lists a room's persisted picks
func (s *Service) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	if _, err := s.caller(req.Header()); err != nil {
		return nil, err
	}
	if req.Msg.RoomID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("roomId is required"))
	}
	picks, err := s.svc.History(ctx, req.Msg.RoomID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetHistoryResponse{RoomID: req.Msg.RoomID, Picks: picks}), nil
}

// caller resolves the authenticated user and registers them on first sight.
func (s *Service) caller(h http.Header) (string, error) {
	userID, err := auth.FromHeader(h, "")
	if err != nil {
		return "", connect.NewError(connect.CodeUnauthenticated, err)
	}
	s.svc.Store().EnsureUser(userID, "")
	return userID, nil
}

func (s *Service) requireAdmin(h http.Header) error {
	userID, err := s.caller(h)
	if err != nil {
		return err
	}
	if !s.admins.IsAdmin(userID) {
		return connect.NewError(connect.CodePermissionDenied, draft.ErrForbidden)
	}
	return nil
}

// toConnectError maps draft errors onto connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, draft.ErrRoomNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, draft.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case draft.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		log.Error().Err(err).Msg("rpc failed")
		return connect.NewError(connect.CodeInternal, err)
	}
}
