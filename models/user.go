package models

import (
	"time"
)

// User holds the denormalized credit balance the ledger reads and writes.
// Registration, auth and profile data live outside this service.
type User struct {
	ID        string    `json:"id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
