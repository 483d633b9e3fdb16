package service

import (
	"net/http"

	"connectrpc.com/connect"
)

const HistoryServiceName = "automarket.history.v1.HistoryService"

const (
	RefreshHistoryProcedure = "/" + HistoryServiceName + "/RefreshHistory"
	GetHistoryProcedure     = "/" + HistoryServiceName + "/GetHistory"
	ListHistoryProcedure    = "/" + HistoryServiceName + "/ListHistory"
	SetListingProcedure     = "/" + HistoryServiceName + "/SetListing"
	DeleteListingProcedure  = "/" + HistoryServiceName + "/DeleteListing"
)

// NewHistoryServiceHandler returns the path to mount the service on and its handler.
// Every procedure but GetHistory requires the access token.
func NewHistoryServiceHandler(s HistoryService, accessToken string, opts ...connect.HandlerOption) (string, http.Handler) {
	public := append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	operator := append(
		append([]connect.HandlerOption{}, public...),
		connect.WithInterceptors(newGenericAuthInterceptor(accessTokenAuth(accessToken))),
	)

	mux := http.NewServeMux()
	mux.Handle(RefreshHistoryProcedure, connect.NewUnaryHandler(
		RefreshHistoryProcedure,
		s.RefreshHistory,
		operator...,
	))
	mux.Handle(GetHistoryProcedure, connect.NewUnaryHandler(
		GetHistoryProcedure,
		s.GetHistory,
		public...,
	))
	mux.Handle(ListHistoryProcedure, connect.NewUnaryHandler(
		ListHistoryProcedure,
		s.ListHistory,
		operator...,
	))
	mux.Handle(SetListingProcedure, connect.NewUnaryHandler(
		SetListingProcedure,
		s.SetListing,
		operator...,
	))
	mux.Handle(DeleteListingProcedure, connect.NewUnaryHandler(
		DeleteListingProcedure,
		s.DeleteListing,
		operator...,
	))

	return "/" + HistoryServiceName + "/", mux
}
