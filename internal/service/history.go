package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"automarket-backend/internal/db"
	"automarket-backend/internal/historyapi"
	"automarket-backend/internal/scrapers/registry"

	"connectrpc.com/connect"
)

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// toConnectError maps domain errors onto connect codes, anything unknown becomes an
// internal error without its detail.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, historyapi.ErrListingNotFound):
		return connect.NewError(connect.CodeNotFound, historyapi.ErrListingNotFound)
	case errors.Is(err, historyapi.ErrRecordNotFound):
		return connect.NewError(connect.CodeNotFound, historyapi.ErrRecordNotFound)
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// RefreshHistory implements the rpc method.
func (s HistoryService) RefreshHistory(ctx context.Context, req *connect.Request[RefreshHistoryRequest]) (*connect.Response[RefreshHistoryResponse], error) {
	listingId := req.Msg.ListingId
	if listingId <= 0 {
		return nil, invalidArgument("listing_id must be positive")
	}

	record, err := s.api.RefreshForListing(ctx, listingId)
	if err != nil {
		if !errors.Is(err, historyapi.ErrListingNotFound) {
			s.tel.ReportBroken(report_history_refresh, err, listingId)
		}
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&RefreshHistoryResponse{
		History: NewOperatorView(record),
	}), nil
}

// GetHistory implements the rpc method.
func (s HistoryService) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	listingId := req.Msg.ListingId
	if listingId <= 0 {
		return nil, invalidArgument("listing_id must be positive")
	}

	record, err := s.query.Reload(ctx, listingId)
	if errors.Is(err, historyapi.ErrRecordNotFound) {
		return connect.NewResponse(&GetHistoryResponse{}), nil
	}
	if err != nil {
		s.tel.ReportBroken(report_history_get, err, listingId)
		return nil, toConnectError(err)
	}

	view := NewPublicView(record)
	return connect.NewResponse(&GetHistoryResponse{History: &view}), nil
}

// ListHistory implements the rpc method.
func (s HistoryService) ListHistory(ctx context.Context, req *connect.Request[ListHistoryRequest]) (*connect.Response[ListHistoryResponse], error) {
	status := req.Msg.Status
	if status != "" && !status.Valid() {
		return nil, invalidArgument("unknown status %q", status)
	}

	records, err := s.query.List(ctx, status)
	if err != nil {
		s.tel.ReportBroken(report_history_list, err, status)
		return nil, toConnectError(err)
	}

	views := make([]OperatorView, len(records))
	for i, record := range records {
		views[i] = NewOperatorView(record)
	}
	return connect.NewResponse(&ListHistoryResponse{Histories: views}), nil
}

// SetListing implements the rpc method. It creates or updates a listing and refreshes its
// history when the identifying fields are complete and differ from what was stored.
func (s HistoryService) SetListing(ctx context.Context, req *connect.Request[SetListingRequest]) (*connect.Response[SetListingResponse], error) {
	if req.Msg.Id < 0 {
		return nil, invalidArgument("id must not be negative")
	}
	vehicle := registry.NormalizeVehicle(
		req.Msg.Vin,
		req.Msg.RegistrationNumber,
		req.Msg.FirstRegistrationDate,
	)

	listing, changed, err := s.saveListing(ctx, req.Msg.Id, vehicle)
	if err != nil {
		if !errors.Is(err, historyapi.ErrListingNotFound) {
			s.tel.ReportBroken(report_listing_set, err, req.Msg.Id)
		}
		return nil, toConnectError(err)
	}

	res := &SetListingResponse{Listing: listing}
	if changed && vehicle.Complete() {
		record, err := s.api.RefreshForListing(ctx, listing.Id)
		if err != nil {
			s.tel.ReportBroken(report_history_refresh, err, listing.Id)
			return nil, toConnectError(err)
		}
		view := NewOperatorView(record)
		res.History = &view
	}
	return connect.NewResponse(res), nil
}

func (s HistoryService) saveListing(ctx context.Context, id int64, vehicle registry.Vehicle) (ListingView, bool, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return ListingView{}, false, err
	}
	defer discard()

	now := s.time.Now().UnixMilli()
	view := ListingView{
		Id:                    id,
		Vin:                   vehicle.Vin,
		RegistrationNumber:    vehicle.RegistrationNumber,
		FirstRegistrationDate: vehicle.FirstRegistrationDate,
	}

	if id == 0 {
		view.Id, err = tx.CreateListing(ctx, db.CreateListingParams{
			Vin:                   vehicle.Vin,
			RegistrationNumber:    vehicle.RegistrationNumber,
			FirstRegistrationDate: vehicle.FirstRegistrationDate,
			Now:                   now,
		})
		if err != nil {
			return ListingView{}, false, fmt.Errorf("CreateListing: %w", err)
		}
		return view, true, commit()
	}

	existing, err := tx.GetListing(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ListingView{}, false, fmt.Errorf("%w: %d", historyapi.ErrListingNotFound, id)
	}
	if err != nil {
		return ListingView{}, false, fmt.Errorf("GetListing: %w", err)
	}
	previous := registry.NormalizeVehicle(existing.Vin, existing.RegistrationNumber, existing.FirstRegistrationDate)
	if previous == vehicle {
		return view, false, nil
	}

	_, err = tx.UpdateListing(ctx, db.UpdateListingParams{
		ID:                    id,
		Vin:                   vehicle.Vin,
		RegistrationNumber:    vehicle.RegistrationNumber,
		FirstRegistrationDate: vehicle.FirstRegistrationDate,
		Now:                   now,
	})
	if err != nil {
		return ListingView{}, false, fmt.Errorf("UpdateListing: %w", err)
	}
	return view, true, commit()
}

// DeleteListing implements the rpc method, the history of the listing goes with it.
func (s HistoryService) DeleteListing(ctx context.Context, req *connect.Request[DeleteListingRequest]) (*connect.Response[DeleteListingResponse], error) {
	id := req.Msg.Id
	if id <= 0 {
		return nil, invalidArgument("id must be positive")
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "BeginTx")
		return nil, toConnectError(err)
	}
	defer discard()

	err = tx.DeleteVehicleHistory(ctx, id)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteVehicleHistory", id)
		return nil, toConnectError(err)
	}
	affected, err := tx.DeleteListing(ctx, id)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteListing", id)
		return nil, toConnectError(err)
	}
	if affected == 0 {
		return nil, toConnectError(historyapi.ErrListingNotFound)
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_listing_delete, err, id)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteListingResponse{}), nil
}

// RetryFailed makes a new attempt for every listing whose last attempt failed, skipped
// listings are left alone since they need a listing or deployment change first.
//
// note: cron job point
func (s HistoryService) RetryFailed(ctx context.Context) error {
	records, err := s.query.List(ctx, historyapi.StatusFailed)
	if err != nil {
		s.tel.ReportBroken(report_history_retry_failed, err)
		return err
	}
	s.tel.ReportCount(report_history_retry_count, int64(len(records)))

	var errs []error
	for _, record := range records {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := s.api.RefreshForListing(ctx, record.ListingId)
		if err != nil {
			s.tel.ReportBroken(report_history_retry_failed, err, record.ListingId)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
