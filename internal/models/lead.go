package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline stages for the prospect board, in board order.
const (
	StageNew       = "new"
	StageContacted = "contacted"
	StageQualified = "qualified"
	StageProposal  = "proposal"
	StageWon       = "won"
	StageLost      = "lost"
)

type Lead struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	OwnerID   uuid.UUID  `json:"owner_id" db:"owner_id"`
	Name      string     `json:"name" db:"name"`
	Company   *string    `json:"company" db:"company"`
	Email     *string    `json:"email" db:"email"`
	Phone     *string    `json:"phone" db:"phone"`
	Stage     string     `json:"stage" db:"stage"`
	Position  int        `json:"position" db:"position"`
	Value     float64    `json:"value" db:"value"`
	Source    *string    `json:"source" db:"source"`
	Notes     *string    `json:"notes" db:"notes"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// StageSummary is one row of the pipeline report: lead count and total
// deal value for a stage.
type StageSummary struct {
	Stage      string  `json:"stage"`
	LeadCount  int     `json:"lead_count"`
	TotalValue float64 `json:"total_value"`
}
