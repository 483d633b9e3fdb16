package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t testing.TB) *sql.DB {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	dbtx, err := Open(ctx, Config{File: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dbtx.Close()
	})
	return dbtx
}

func countHistory(t testing.TB, dbtx *sql.DB, listingId int64) int {
	var count int
	err := dbtx.QueryRow("select count(*) from vehicle_history where listing_id = ?", listingId).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	return count
}

func TestVehicleHistoryLifecycle(t *testing.T) {
	dbtx := openTestDB(t)
	qry := New(dbtx)
	ctx := context.Background()

	listingId, err := qry.CreateListing(ctx, CreateListingParams{
		Vin:                   "WVWZZZ1JZXW000001",
		RegistrationNumber:    "WA12345",
		FirstRegistrationDate: "2015-04-01",
		Now:                   1,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = qry.GetVehicleHistory(ctx, listingId)
	require.ErrorIs(t, err, sql.ErrNoRows)

	for i := 0; i < 3; i++ {
		err = qry.EnsureVehicleHistory(ctx, EnsureVehicleHistoryParams{ListingID: listingId, Now: 2})
		if err != nil {
			t.Fatal(err)
		}
	}
	require.Equal(t, 1, countHistory(t, dbtx, listingId))

	row, err := qry.GetVehicleHistory(ctx, listingId)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "pending", row.Status)
	require.False(t, row.Payload.Valid)
	require.False(t, row.FetchedAt.Valid)

	affected, err := qry.UpdateVehicleHistory(ctx, UpdateVehicleHistoryParams{
		ListingID:             listingId,
		Vin:                   "WVWZZZ1JZXW000001",
		RegistrationNumber:    "WA12345",
		FirstRegistrationDate: "2015-04-01",
		Status:                "success",
		Payload:               sql.NullString{String: `{"vehicleData":{},"timelineData":{}}`, Valid: true},
		FetchedAt:             sql.NullInt64{Int64: 3, Valid: true},
		UpdatedAt:             3,
	})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, int64(1), affected)

	rows, err := qry.ListVehicleHistoryByStatus(ctx, "success")
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0].FetchedAt.Int64)

	rows, err = qry.ListVehicleHistoryByStatus(ctx, "failed")
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, rows, 0)
}

func TestVehicleHistoryRejectsUnknownStatus(t *testing.T) {
	dbtx := openTestDB(t)
	qry := New(dbtx)
	ctx := context.Background()

	listingId, err := qry.CreateListing(ctx, CreateListingParams{Now: 1})
	if err != nil {
		t.Fatal(err)
	}
	err = qry.EnsureVehicleHistory(ctx, EnsureVehicleHistoryParams{ListingID: listingId, Now: 1})
	if err != nil {
		t.Fatal(err)
	}

	_, err = qry.UpdateVehicleHistory(ctx, UpdateVehicleHistoryParams{
		ListingID: listingId,
		Status:    "exploded",
		UpdatedAt: 2,
	})
	require.Error(t, err)
}

func TestDeleteListingCascades(t *testing.T) {
	dbtx := openTestDB(t)
	qry := New(dbtx)
	ctx := context.Background()

	listingId, err := qry.CreateListing(ctx, CreateListingParams{Vin: "VIN", Now: 1})
	if err != nil {
		t.Fatal(err)
	}
	err = qry.EnsureVehicleHistory(ctx, EnsureVehicleHistoryParams{ListingID: listingId, Now: 1})
	if err != nil {
		t.Fatal(err)
	}

	affected, err := qry.DeleteListing(ctx, listingId)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, int64(1), affected)
	require.Equal(t, 0, countHistory(t, dbtx, listingId))

	_, err = qry.GetListing(ctx, listingId)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMakeTx(t *testing.T) {
	dbtx := openTestDB(t)
	makeTx := NewMakeTx(dbtx)
	ctx := context.Background()

	{
		tx, discard, _, err := makeTx(ctx)
		if err != nil {
			t.Fatal(err)
		}
		_, err = tx.CreateListing(ctx, CreateListingParams{Vin: "DISCARDED", Now: 1})
		if err != nil {
			t.Fatal(err)
		}
		require.NoError(t, discard())
	}

	var listingId int64
	{
		tx, discard, commit, err := makeTx(ctx)
		if err != nil {
			t.Fatal(err)
		}
		defer discard()
		listingId, err = tx.CreateListing(ctx, CreateListingParams{Vin: "KEPT", Now: 1})
		if err != nil {
			t.Fatal(err)
		}
		require.NoError(t, commit())
		require.NoError(t, discard())
	}

	var count int
	err := dbtx.QueryRow("select count(*) from listing").Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, count)

	listing, err := New(dbtx).GetListing(ctx, listingId)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "KEPT", listing.Vin)
}
