package db

import "database/sql"

type Listing struct {
	ID                    int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	CreatedAt             int64
	UpdatedAt             int64
}

type VehicleHistory struct {
	ID                    int64
	ListingID             int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	Status                string
	Payload               sql.NullString
	FetchedAt             sql.NullInt64
	LastErrorMessage      sql.NullString
	CreatedAt             int64
	UpdatedAt             int64
}
