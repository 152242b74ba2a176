package rpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls DraftService. Every call uses the JSON codec.
type Client struct {
	startDraft    *connect.Client[StartDraftRequest, StartDraftResponse]
	getDraftState *connect.Client[GetDraftStateRequest, GetDraftStateResponse]
	makePick      *connect.Client[MakePickRequest, MakePickResponse]
	pauseDraft    *connect.Client[PauseDraftRequest, PauseDraftResponse]
	resumeDraft   *connect.Client[ResumeDraftRequest, ResumeDraftResponse]
	listRooms     *connect.Client[ListRoomsRequest, ListRoomsResponse]
	getHistory    *connect.Client[GetHistoryRequest, GetHistoryResponse]
}

// NewClient builds a client for the service mounted at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &Client{
		startDraft:    connect.NewClient[StartDraftRequest, StartDraftResponse](httpClient, baseURL+ProcedureStartDraft, opts...),
		getDraftState: connect.NewClient[GetDraftStateRequest, GetDraftStateResponse](httpClient, baseURL+ProcedureGetDraftState, opts...),
		makePick:      connect.NewClient[MakePickRequest, MakePickResponse](httpClient, baseURL+ProcedureMakePick, opts...),
		pauseDraft:    connect.NewClient[PauseDraftRequest, PauseDraftResponse](httpClient, baseURL+ProcedurePauseDraft, opts...),
		resumeDraft:   connect.NewClient[ResumeDraftRequest, ResumeDraftResponse](httpClient, baseURL+ProcedureResumeDraft, opts...),
		listRooms:     connect.NewClient[ListRoomsRequest, ListRoomsResponse](httpClient, baseURL+ProcedureListRooms, opts...),
		getHistory:    connect.NewClient[GetHistoryRequest, GetHistoryResponse](httpClient, baseURL+ProcedureGetHistory, opts...),
	}
}

func (c *Client) StartDraft(ctx context.Context, req *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error) {
	return c.startDraft.CallUnary(ctx, req)
}

func (c *Client) GetDraftState(ctx context.Context, req *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error) {
	return c.getDraftState.CallUnary(ctx, req)
}

func (c *Client) MakePick(ctx context.Context, req *connect.Request[MakePickRequest]) (*connect.Response[MakePickResponse], error) {
	return c.makePick.CallUnary(ctx, req)
}

func (c *Client) PauseDraft(ctx context.Context, req *connect.Request[PauseDraftRequest]) (*connect.Response[PauseDraftResponse], error) {
	return c.pauseDraft.CallUnary(ctx, req)
}

func (c *Client) ResumeDraft(ctx context.Context, req *connect.Request[ResumeDraftRequest]) (*connect.Response[ResumeDraftResponse], error) {
	return c.resumeDraft.CallUnary(ctx, req)
}

func (c *Client) ListRooms(ctx context.Context, req *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	return c.listRooms.CallUnary(ctx, req)
}

func (c *Client) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	return c.getHistory.CallUnary(ctx, req)
}
