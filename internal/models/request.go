package models

import "time"

// FirstReportYear is the earliest year a report can be requested for
const FirstReportYear = 2008

// RequestStatus is the lifecycle state of a report request
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// ReportRequest tracks a requested (username, year) fetch
type ReportRequest struct {
	ReportKey
	BaseModel
	Status    RequestStatus `json:"status" db:"status"`
	Timezone  string        `json:"timezone,omitempty" db:"timezone"`
	LastError string        `json:"last_error,omitempty" db:"last_error"`
}

// CachedReport is a stored report row
type CachedReport struct {
	ReportKey
	Report    []byte    `json:"-" db:"report"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
