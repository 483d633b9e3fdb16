package service

import (
	"time"

	"automarket-backend/internal/historyapi"
)

// PublicView is what end users see of a history, the recorded error message is replaced
// with a generic explanation.
type PublicView struct {
	Status      historyapi.Status   `json:"status"`
	Label       string              `json:"label"`
	Explanation string              `json:"explanation,omitempty"`
	FetchedAt   *time.Time          `json:"fetched_at"`
	Payload     *historyapi.Payload `json:"payload"`
}

// OperatorView is the full record, including the raw error message of the last attempt.
type OperatorView struct {
	ListingId             int64               `json:"listing_id"`
	Vin                   string              `json:"vin"`
	RegistrationNumber    string              `json:"registration_number"`
	FirstRegistrationDate string              `json:"first_registration_date"`
	Status                historyapi.Status   `json:"status"`
	Label                 string              `json:"label"`
	FetchedAt             *time.Time          `json:"fetched_at"`
	LastErrorMessage      *string             `json:"last_error_message"`
	Payload               *historyapi.Payload `json:"payload"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func fetchedAt(record historyapi.Record) *time.Time {
	if record.FetchedAt.IsZero() {
		return nil
	}
	t := record.FetchedAt
	return &t
}

func NewPublicView(record historyapi.Record) PublicView {
	return PublicView{
		Status:      record.Status,
		Label:       record.Status.Label(),
		Explanation: record.Status.Explanation(),
		FetchedAt:   fetchedAt(record),
		Payload:     record.Payload,
	}
}

func NewOperatorView(record historyapi.Record) OperatorView {
	return OperatorView{
		ListingId:             record.ListingId,
		Vin:                   record.Vin,
		RegistrationNumber:    record.RegistrationNumber,
		FirstRegistrationDate: record.FirstRegistrationDate,
		Status:                record.Status,
		Label:                 record.Status.Label(),
		FetchedAt:             fetchedAt(record),
		LastErrorMessage:      record.LastErrorMessage,
		Payload:               record.Payload,
		CreatedAt:             record.CreatedAt,
		UpdatedAt:             record.UpdatedAt,
	}
}

type ListingView struct {
	Id                    int64  `json:"id"`
	Vin                   string `json:"vin"`
	RegistrationNumber    string `json:"registration_number"`
	FirstRegistrationDate string `json:"first_registration_date"`
}

type RefreshHistoryRequest struct {
	ListingId int64 `json:"listing_id"`
}

type RefreshHistoryResponse struct {
	History OperatorView `json:"history"`
}

type GetHistoryRequest struct {
	ListingId int64 `json:"listing_id"`
}

type GetHistoryResponse struct {
	// History is nil when no history was ever requested for the listing.
	History *PublicView `json:"history"`
}

type ListHistoryRequest struct {
	// Status filters the records, empty lists every record.
	Status historyapi.Status `json:"status"`
}

type ListHistoryResponse struct {
	Histories []OperatorView `json:"histories"`
}

type SetListingRequest struct {
	// Id is 0 to create a listing.
	Id                    int64  `json:"id"`
	Vin                   string `json:"vin"`
	RegistrationNumber    string `json:"registration_number"`
	FirstRegistrationDate string `json:"first_registration_date"`
}

type SetListingResponse struct {
	Listing ListingView `json:"listing"`
	// History is set when saving the listing triggered a refresh.
	History *OperatorView `json:"history"`
}

type DeleteListingRequest struct {
	Id int64 `json:"id"`
}

type DeleteListingResponse struct{}
