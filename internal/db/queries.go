package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getListing = `
select id, vin, registration_number, first_registration_date, created_at, updated_at
from listing
where id = ?
`

func (q *Queries) GetListing(ctx context.Context, id int64) (Listing, error) {
	row := q.db.QueryRowContext(ctx, getListing, id)
	var i Listing
	err := row.Scan(
		&i.ID,
		&i.Vin,
		&i.RegistrationNumber,
		&i.FirstRegistrationDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createListing = `
insert into listing(vin, registration_number, first_registration_date, created_at, updated_at)
values (?, ?, ?, ?, ?)
returning id
`

type CreateListingParams struct {
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	Now                   int64
}

func (q *Queries) CreateListing(ctx context.Context, arg CreateListingParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createListing,
		arg.Vin,
		arg.RegistrationNumber,
		arg.FirstRegistrationDate,
		arg.Now,
		arg.Now,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateListing = `
update listing
set vin = ?, registration_number = ?, first_registration_date = ?, updated_at = ?
where id = ?
`

type UpdateListingParams struct {
	ID                    int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	Now                   int64
}

// UpdateListing returns the number of rows affected.
func (q *Queries) UpdateListing(ctx context.Context, arg UpdateListingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateListing,
		arg.Vin,
		arg.RegistrationNumber,
		arg.FirstRegistrationDate,
		arg.Now,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteListing = `
delete from listing where id = ?
`

// DeleteListing returns the number of rows affected.
func (q *Queries) DeleteListing(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteListing, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const vehicleHistoryColumns = `
id, listing_id, vin, registration_number, first_registration_date, status,
payload, fetched_at, last_error_message, created_at, updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanVehicleHistory(row scanner) (VehicleHistory, error) {
	var i VehicleHistory
	err := row.Scan(
		&i.ID,
		&i.ListingID,
		&i.Vin,
		&i.RegistrationNumber,
		&i.FirstRegistrationDate,
		&i.Status,
		&i.Payload,
		&i.FetchedAt,
		&i.LastErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getVehicleHistory = `
select ` + vehicleHistoryColumns + `
from vehicle_history
where listing_id = ?
`

func (q *Queries) GetVehicleHistory(ctx context.Context, listingID int64) (VehicleHistory, error) {
	row := q.db.QueryRowContext(ctx, getVehicleHistory, listingID)
	return scanVehicleHistory(row)
}

const ensureVehicleHistory = `
insert into vehicle_history(listing_id, status, created_at, updated_at)
values (?, 'pending', ?, ?)
on conflict(listing_id) do nothing
`

type EnsureVehicleHistoryParams struct {
	ListingID int64
	Now       int64
}

// EnsureVehicleHistory creates the history row of a listing if it does not exist yet.
func (q *Queries) EnsureVehicleHistory(ctx context.Context, arg EnsureVehicleHistoryParams) error {
	_, err := q.db.ExecContext(ctx, ensureVehicleHistory, arg.ListingID, arg.Now, arg.Now)
	return err
}

const updateVehicleHistory = `
update vehicle_history
set vin = ?,
    registration_number = ?,
    first_registration_date = ?,
    status = ?,
    payload = ?,
    fetched_at = ?,
    last_error_message = ?,
    updated_at = ?
where listing_id = ?
`

type UpdateVehicleHistoryParams struct {
	ListingID             int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	Status                string
	Payload               sql.NullString
	FetchedAt             sql.NullInt64
	LastErrorMessage      sql.NullString
	UpdatedAt             int64
}

// UpdateVehicleHistory returns the number of rows affected.
func (q *Queries) UpdateVehicleHistory(ctx context.Context, arg UpdateVehicleHistoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateVehicleHistory,
		arg.Vin,
		arg.RegistrationNumber,
		arg.FirstRegistrationDate,
		arg.Status,
		arg.Payload,
		arg.FetchedAt,
		arg.LastErrorMessage,
		arg.UpdatedAt,
		arg.ListingID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteVehicleHistory = `
delete from vehicle_history where listing_id = ?
`

func (q *Queries) DeleteVehicleHistory(ctx context.Context, listingID int64) error {
	_, err := q.db.ExecContext(ctx, deleteVehicleHistory, listingID)
	return err
}

const listVehicleHistory = `
select ` + vehicleHistoryColumns + `
from vehicle_history
order by listing_id
`

func (q *Queries) ListVehicleHistory(ctx context.Context) ([]VehicleHistory, error) {
	rows, err := q.db.QueryContext(ctx, listVehicleHistory)
	if err != nil {
		return nil, err
	}
	return collectVehicleHistory(rows)
}

const listVehicleHistoryByStatus = `
select ` + vehicleHistoryColumns + `
from vehicle_history
where status = ?
order by listing_id
`

func (q *Queries) ListVehicleHistoryByStatus(ctx context.Context, status string) ([]VehicleHistory, error) {
	rows, err := q.db.QueryContext(ctx, listVehicleHistoryByStatus, status)
	if err != nil {
		return nil, err
	}
	return collectVehicleHistory(rows)
}

func collectVehicleHistory(rows *sql.Rows) ([]VehicleHistory, error) {
	defer rows.Close()
	var items []VehicleHistory
	for rows.Next() {
		i, err := scanVehicleHistory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
