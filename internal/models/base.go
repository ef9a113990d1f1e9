package models

import "time"

// BaseModel contains the timestamps shared by persisted rows
type BaseModel struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReportKey identifies one cached report
type ReportKey struct {
	Username string `json:"username" db:"username"`
	Year     int    `json:"year" db:"year"`
}
