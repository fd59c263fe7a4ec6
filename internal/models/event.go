package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a calendar entry, optionally linked to a lead.
type Event struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	OwnerID   uuid.UUID  `json:"owner_id" db:"owner_id"`
	LeadID    *uuid.UUID `json:"lead_id" db:"lead_id"`
	Title     string     `json:"title" db:"title"`
	Location  *string    `json:"location" db:"location"`
	StartsAt  time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time  `json:"ends_at" db:"ends_at"`
	AllDay    bool       `json:"all_day" db:"all_day"`
	Notes     *string    `json:"notes" db:"notes"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
