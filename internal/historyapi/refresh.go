package historyapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automarket-backend/internal/scrapers/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	messageMissingData = "missing required data"
	messageUnexpected  = "unexpected failure fetching history"
)

type outcome struct {
	status  Status
	payload *Payload
	// keepPayload leaves the payload of the previous attempt in place.
	keepPayload bool
	message     *string
}

func withMessage(msg string) *string {
	return &msg
}

// RefreshForListing makes a single attempt at fetching the history of a listing and
// returns the stored record. Every outcome of the attempt is recorded on the record,
// only an unknown listing (ErrListingNotFound) and persistence failures are returned
// as errors.
func (i Implementation) RefreshForListing(ctx context.Context, listingId int64) (Record, error) {
	attemptId := uuid.NewString()
	ctx, span := tracer.Start(ctx, "RefreshForListing")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("listing.id", listingId),
		attribute.String("attempt.id", attemptId),
	)

	record, err := i.refresh(ctx, attemptId, listingId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}
	span.SetAttributes(attribute.String("history.status", string(record.Status)))
	return record, nil
}

func (i Implementation) refresh(ctx context.Context, attemptId string, listingId int64) (Record, error) {
	listing, err := i.store.Listing(ctx, listingId)
	if err != nil {
		return Record{}, err
	}

	now := i.now()
	record, err := i.store.FindOrCreate(ctx, listingId, now)
	if err != nil {
		i.tel.ReportBroken(report_impl_refresh_for_listing, attemptId, fmt.Errorf("find or create record: %w", err))
		return Record{}, err
	}

	vehicle := registry.NormalizeVehicle(listing.Vin, listing.RegistrationNumber, listing.FirstRegistrationDate)
	record.Vin = vehicle.Vin
	record.RegistrationNumber = vehicle.RegistrationNumber
	record.FirstRegistrationDate = vehicle.FirstRegistrationDate
	record.Status = StatusPending
	record.LastErrorMessage = nil
	record.UpdatedAt = now
	err = i.store.Save(ctx, record)
	if err != nil {
		i.tel.ReportBroken(report_impl_refresh_for_listing, attemptId, fmt.Errorf("save pending record: %w", err))
		return Record{}, err
	}

	result := i.attempt(ctx, attemptId, listingId, vehicle)

	record.Status = result.status
	record.LastErrorMessage = result.message
	if !result.keepPayload {
		record.Payload = result.payload
	}
	completedAt := i.now()
	record.FetchedAt = nextFetchedAt(record.FetchedAt, completedAt)
	record.UpdatedAt = completedAt

	// the outcome is recorded even when the caller gave up during the fetch
	ctx = context.WithoutCancel(ctx)
	err = i.store.Save(ctx, record)
	if err != nil {
		i.tel.ReportBroken(report_impl_refresh_for_listing, attemptId, fmt.Errorf("save outcome: %w", err))
		return Record{}, err
	}
	return i.store.Reload(ctx, listingId)
}

func (i Implementation) now() time.Time {
	return time.UnixMilli(i.time.Now().UnixMilli()).UTC()
}

// nextFetchedAt keeps fetchedAt strictly increasing across the attempts of one listing
// even when the clock does not move forward between them.
func nextFetchedAt(previous, now time.Time) time.Time {
	if !previous.IsZero() && !now.After(previous) {
		return previous.Add(time.Millisecond)
	}
	return now
}

func (i Implementation) attempt(ctx context.Context, attemptId string, listingId int64, vehicle registry.Vehicle) (out outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		i.tel.ReportBroken(
			report_impl_fetch_unexpected,
			attemptId,
			listingId,
			fmt.Errorf("panic: %v", r),
		)
		out = outcome{status: StatusFailed, message: withMessage(messageUnexpected)}
	}()

	if !vehicle.Complete() {
		return outcome{
			status:      StatusSkipped,
			keepPayload: true,
			message:     withMessage(messageMissingData),
		}
	}

	fetcher, err := i.factory()
	if err != nil {
		return i.classify(attemptId, listingId, err)
	}
	result, err := fetcher.Fetch(ctx, vehicle.Vin, vehicle.RegistrationNumber, vehicle.FirstRegistrationDate)
	if err != nil {
		return i.classify(attemptId, listingId, err)
	}

	payload := &Payload{
		VehicleData:  result.VehicleData,
		TimelineData: result.TimelineData,
	}
	if payload.VehicleData == nil {
		payload.VehicleData = map[string]any{}
	}
	if payload.TimelineData == nil {
		payload.TimelineData = map[string]any{}
	}
	return outcome{status: StatusSuccess, payload: payload}
}

// classify maps a failed attempt onto an outcome and reports it with a severity that
// matches how actionable it is.
func (i Implementation) classify(attemptId string, listingId int64, err error) outcome {
	switch {
	case errors.Is(err, registry.ErrMissingConfiguration):
		i.tel.ReportInfo(report_impl_fetch_skipped, attemptId, listingId)
		return outcome{
			status:      StatusSkipped,
			keepPayload: true,
			message:     withMessage(err.Error()),
		}
	case errors.Is(err, registry.ErrRequestFailed), errors.Is(err, registry.ErrInvalidResponse):
		var uri, body string
		var status int
		var regErr *registry.Error
		if errors.As(err, &regErr) {
			uri = regErr.Uri
			status = regErr.Status
			body = regErr.BodySummary()
		}
		i.tel.ReportWarning(
			report_impl_fetch_failed,
			attemptId,
			listingId,
			err,
			uri,
			status,
			body,
		)
		return outcome{status: StatusFailed, message: withMessage(err.Error())}
	default:
		i.tel.ReportBroken(report_impl_fetch_unexpected, attemptId, listingId, err)
		return outcome{status: StatusFailed, message: withMessage(messageUnexpected)}
	}
}
