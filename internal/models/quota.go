package models

import (
	"time"

	"github.com/google/uuid"
)

// QuotaRecord tracks the monthly creation allowance for a tenant.
// One record per tenant; the record is created lazily on the first
// consumption attempt and lives forever, cycling periods.
type QuotaRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	TenantID        uuid.UUID `json:"tenant_id" db:"tenant_id"`
	TokensRemaining int       `json:"tokens_remaining" db:"tokens_remaining"`
	TokensTotal     int       `json:"tokens_total" db:"tokens_total"`
	PeriodKey       string    `json:"period_key" db:"period_key"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TokensUsed returns how many tokens were consumed in the current period.
func (q *QuotaRecord) TokensUsed() int {
	return q.TokensTotal - q.TokensRemaining
}
