package historyapi

import (
	"errors"
	"time"
)

var (
	ErrListingNotFound = errors.New("historyapi: listing not found")
	// ErrRecordNotFound means a history was never requested for the listing.
	ErrRecordNotFound = errors.New("historyapi: history record not found")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Label is the badge shown to end users.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSuccess:
		return "Available"
	case StatusFailed:
		return "Unavailable"
	case StatusSkipped:
		return "Not checked"
	}
	return ""
}

// Explanation is the line shown to end users next to the badge, it never contains the
// recorded error message. A skip can come from the listing or from the deployment so the
// skipped line names neither.
func (s Status) Explanation() string {
	switch s {
	case StatusFailed:
		return "The vehicle history could not be retrieved from the registry, try again later."
	case StatusSkipped:
		return "The vehicle history was not checked."
	}
	return ""
}

// Payload is what the registry returned, both documents are kept as they were received.
type Payload struct {
	VehicleData  map[string]any `json:"vehicleData"`
	TimelineData map[string]any `json:"timelineData"`
}

// Listing holds the identifying fields of a listing a history is fetched for.
type Listing struct {
	Id                    int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
}

// Record is the persisted outcome of the latest history attempt for a listing.
type Record struct {
	ListingId             int64
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
	Status                Status
	Payload               *Payload
	// FetchedAt is zero until an attempt completes.
	FetchedAt        time.Time
	LastErrorMessage *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
