package repositories

import (
	"context"
	"errors"

	"pipecrm/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrQuotaNotFound is returned when a tenant has no quota record yet.
var ErrQuotaNotFound = errors.New("quota record not found")

// ErrQuotaExhausted is returned by ConsumeTx when the remaining balance is
// insufficient for the requested cost. The stored record is not mutated.
var ErrQuotaExhausted = errors.New("quota exhausted")

type QuotaRepository interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*models.QuotaRecord, error)
	Create(ctx context.Context, record *models.QuotaRecord) error
	Update(ctx context.Context, record *models.QuotaRecord) error
	// ConsumeTx atomically debits cost tokens for the tenant, creating the
	// record at full allowance if absent and applying period rollover first.
	// Returns the balance after the debit, or the untouched balance together
	// with ErrQuotaExhausted.
	ConsumeTx(ctx context.Context, tenantID uuid.UUID, cost, total int, periodKey string) (int, error)
	// RestoreTx atomically credits amount tokens back, clamped to total.
	// Rollover applies before the credit so a restore into a fresh period
	// never exceeds the allowance.
	RestoreTx(ctx context.Context, tenantID uuid.UUID, amount, total int, periodKey string) (int, error)
}

type quotaRepo struct {
	db Database
}

func NewQuotaRepo(db Database) QuotaRepository {
	return &quotaRepo{db: db}
}

func (r *quotaRepo) Get(ctx context.Context, tenantID uuid.UUID) (*models.QuotaRecord, error) {
	record := &models.QuotaRecord{}
	query := `
		SELECT id, tenant_id, tokens_remaining, tokens_total, period_key, created_at, updated_at
		FROM quota_records
		WHERE tenant_id = $1
	`
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&record.ID, &record.TenantID, &record.TokensRemaining, &record.TokensTotal, &record.PeriodKey, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuotaNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *quotaRepo) Create(ctx context.Context, record *models.QuotaRecord) error {
	query := `
		INSERT INTO quota_records (id, tenant_id, tokens_remaining, tokens_total, period_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, record.ID, record.TenantID, record.TokensRemaining, record.TokensTotal, record.PeriodKey)
	return err
}

func (r *quotaRepo) Update(ctx context.Context, record *models.QuotaRecord) error {
	query := `
		UPDATE quota_records
		SET tokens_remaining = $1, tokens_total = $2, period_key = $3, updated_at = NOW()
		WHERE tenant_id = $4
	`
	_, err := r.db.Exec(ctx, query, record.TokensRemaining, record.TokensTotal, record.PeriodKey, record.TenantID)
	return err
}

func (r *quotaRepo) ConsumeTx(ctx context.Context, tenantID uuid.UUID, cost, total int, periodKey string) (int, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lazy create at full allowance; a concurrent first consumer loses the
	// insert and proceeds through the locked select below.
	insertQuery := `
		INSERT INTO quota_records (id, tenant_id, tokens_remaining, tokens_total, period_key, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $4, NOW(), NOW())
		ON CONFLICT (tenant_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertQuery, uuid.New(), tenantID, total, periodKey); err != nil {
		return 0, err
	}

	var remaining int
	var storedPeriod string
	selectQuery := `
		SELECT tokens_remaining, period_key
		FROM quota_records
		WHERE tenant_id = $1
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, selectQuery, tenantID).Scan(&remaining, &storedPeriod); err != nil {
		return 0, err
	}

	if storedPeriod != periodKey {
		remaining = total
	}
	if remaining < cost {
		return remaining, ErrQuotaExhausted
	}
	remaining -= cost

	updateQuery := `
		UPDATE quota_records
		SET tokens_remaining = $1, tokens_total = $2, period_key = $3, updated_at = NOW()
		WHERE tenant_id = $4
	`
	if _, err := tx.Exec(ctx, updateQuery, remaining, total, periodKey, tenantID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *quotaRepo) RestoreTx(ctx context.Context, tenantID uuid.UUID, amount, total int, periodKey string) (int, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var remaining int
	var storedPeriod string
	selectQuery := `
		SELECT tokens_remaining, period_key
		FROM quota_records
		WHERE tenant_id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, selectQuery, tenantID).Scan(&remaining, &storedPeriod)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaNotFound
		}
		return 0, err
	}

	if storedPeriod != periodKey {
		remaining = total
	} else {
		remaining += amount
		if remaining > total {
			remaining = total
		}
	}

	updateQuery := `
		UPDATE quota_records
		SET tokens_remaining = $1, tokens_total = $2, period_key = $3, updated_at = NOW()
		WHERE tenant_id = $4
	`
	if _, err := tx.Exec(ctx, updateQuery, remaining, total, periodKey, tenantID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}
