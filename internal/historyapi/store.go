package historyapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"automarket-backend/internal/db"
)

// Store is the persistence the orchestrator depends on.
//
// note: fault injection point
type Store interface {
	Listing(ctx context.Context, listingId int64) (Listing, error)
	// FindOrCreate returns the record of the listing, creating a pending one when there
	// is none. Calling it any number of times leaves exactly one record.
	FindOrCreate(ctx context.Context, listingId int64, now time.Time) (Record, error)
	Save(ctx context.Context, record Record) error
	Reload(ctx context.Context, listingId int64) (Record, error)
}

// DBStore implements Store over the sql database.
type DBStore struct {
	qry *db.Queries
}

func NewDBStore(qry *db.Queries) DBStore {
	return DBStore{qry: qry}
}

func (s DBStore) Listing(ctx context.Context, listingId int64) (Listing, error) {
	row, err := s.qry.GetListing(ctx, listingId)
	if errors.Is(err, sql.ErrNoRows) {
		return Listing{}, fmt.Errorf("%w: %d", ErrListingNotFound, listingId)
	}
	if err != nil {
		return Listing{}, err
	}
	return Listing{
		Id:                    row.ID,
		Vin:                   row.Vin,
		RegistrationNumber:    row.RegistrationNumber,
		FirstRegistrationDate: row.FirstRegistrationDate,
	}, nil
}

func (s DBStore) FindOrCreate(ctx context.Context, listingId int64, now time.Time) (Record, error) {
	err := s.qry.EnsureVehicleHistory(ctx, db.EnsureVehicleHistoryParams{
		ListingID: listingId,
		Now:       now.UnixMilli(),
	})
	if err != nil {
		return Record{}, err
	}
	return s.Reload(ctx, listingId)
}

func (s DBStore) Save(ctx context.Context, record Record) error {
	params := db.UpdateVehicleHistoryParams{
		ListingID:             record.ListingId,
		Vin:                   record.Vin,
		RegistrationNumber:    record.RegistrationNumber,
		FirstRegistrationDate: record.FirstRegistrationDate,
		Status:                string(record.Status),
		UpdatedAt:             record.UpdatedAt.UnixMilli(),
	}
	if record.Payload != nil {
		serialized, err := json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("serialize payload: %w", err)
		}
		params.Payload = sql.NullString{String: string(serialized), Valid: true}
	}
	if !record.FetchedAt.IsZero() {
		params.FetchedAt = sql.NullInt64{Int64: record.FetchedAt.UnixMilli(), Valid: true}
	}
	if record.LastErrorMessage != nil {
		params.LastErrorMessage = sql.NullString{String: *record.LastErrorMessage, Valid: true}
	}

	affected, err := s.qry.UpdateVehicleHistory(ctx, params)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, record.ListingId)
	}
	return nil
}

func (s DBStore) Reload(ctx context.Context, listingId int64) (Record, error) {
	row, err := s.qry.GetVehicleHistory(ctx, listingId)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, listingId)
	}
	if err != nil {
		return Record{}, err
	}
	return recordFromRow(row)
}

// List returns every record, or only those with the given status when it is not empty.
func (s DBStore) List(ctx context.Context, status Status) ([]Record, error) {
	var rows []db.VehicleHistory
	var err error
	if status == "" {
		rows, err = s.qry.ListVehicleHistory(ctx)
	} else {
		rows, err = s.qry.ListVehicleHistoryByStatus(ctx, string(status))
	}
	if err != nil {
		return nil, err
	}

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i], err = recordFromRow(row)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func recordFromRow(row db.VehicleHistory) (Record, error) {
	record := Record{
		ListingId:             row.ListingID,
		Vin:                   row.Vin,
		RegistrationNumber:    row.RegistrationNumber,
		FirstRegistrationDate: row.FirstRegistrationDate,
		Status:                Status(row.Status),
		CreatedAt:             time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:             time.UnixMilli(row.UpdatedAt).UTC(),
	}
	if row.Payload.Valid {
		var payload Payload
		err := json.Unmarshal([]byte(row.Payload.String), &payload)
		if err != nil {
			return Record{}, fmt.Errorf("deserialize payload of listing %d: %w", row.ListingID, err)
		}
		record.Payload = &payload
	}
	if row.FetchedAt.Valid {
		record.FetchedAt = time.UnixMilli(row.FetchedAt.Int64).UTC()
	}
	if row.LastErrorMessage.Valid {
		msg := row.LastErrorMessage.String
		record.LastErrorMessage = &msg
	}
	return record, nil
}
