package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// HistoryServiceClient calls a HistoryService over connect.
type HistoryServiceClient struct {
	refreshHistory *connect.Client[RefreshHistoryRequest, RefreshHistoryResponse]
	getHistory     *connect.Client[GetHistoryRequest, GetHistoryResponse]
	listHistory    *connect.Client[ListHistoryRequest, ListHistoryResponse]
	setListing     *connect.Client[SetListingRequest, SetListingResponse]
	deleteListing  *connect.Client[DeleteListingRequest, DeleteListingResponse]
}

// NewHistoryServiceClient creates a client for the service at baseUrl, accessToken may be
// empty when only GetHistory is used.
func NewHistoryServiceClient(httpClient connect.HTTPClient, baseUrl, accessToken string, opts ...connect.ClientOption) HistoryServiceClient {
	baseUrl = strings.TrimRight(baseUrl, "/")
	opts = append(
		[]connect.ClientOption{
			connect.WithCodec(jsonCodec{}),
			connect.WithInterceptors(bearerToken(accessToken)),
		},
		opts...,
	)

	return HistoryServiceClient{
		refreshHistory: connect.NewClient[RefreshHistoryRequest, RefreshHistoryResponse](
			httpClient, baseUrl+RefreshHistoryProcedure, opts...,
		),
		getHistory: connect.NewClient[GetHistoryRequest, GetHistoryResponse](
			httpClient, baseUrl+GetHistoryProcedure, opts...,
		),
		listHistory: connect.NewClient[ListHistoryRequest, ListHistoryResponse](
			httpClient, baseUrl+ListHistoryProcedure, opts...,
		),
		setListing: connect.NewClient[SetListingRequest, SetListingResponse](
			httpClient, baseUrl+SetListingProcedure, opts...,
		),
		deleteListing: connect.NewClient[DeleteListingRequest, DeleteListingResponse](
			httpClient, baseUrl+DeleteListingProcedure, opts...,
		),
	}
}

func (c HistoryServiceClient) RefreshHistory(ctx context.Context, req *RefreshHistoryRequest) (*RefreshHistoryResponse, error) {
	res, err := c.refreshHistory.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c HistoryServiceClient) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	res, err := c.getHistory.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c HistoryServiceClient) ListHistory(ctx context.Context, req *ListHistoryRequest) (*ListHistoryResponse, error) {
	res, err := c.listHistory.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c HistoryServiceClient) SetListing(ctx context.Context, req *SetListingRequest) (*SetListingResponse, error) {
	res, err := c.setListing.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c HistoryServiceClient) DeleteListing(ctx context.Context, req *DeleteListingRequest) (*DeleteListingResponse, error) {
	res, err := c.deleteListing.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
