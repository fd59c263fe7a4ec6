package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
)

// QuotaConfig holds the deploy-time quota constants. Passed explicitly to
// the constructor so there is no package-level mutable state.
type QuotaConfig struct {
	TokensPerPeriod int
	CostPerAction   int
	// Strict selects the transactional consume path. Disable only for a
	// backing store without a transactional primitive; the fallback path
	// admits a lost update between two concurrent consumers.
	Strict bool
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

const (
	DefaultTokensPerPeriod = 100
	DefaultCostPerAction   = 1
)

// ConsumeResult reports the outcome of a quota debit. Exhaustion is a normal
// result, not an error: Success is false and Error carries the user-facing
// usage summary.
type ConsumeResult struct {
	Success         bool   `json:"success"`
	TokensRemaining int    `json:"tokens_remaining"`
	Error           string `json:"error,omitempty"`
}

// QuotaService is the per-tenant monthly creation-credit ledger.
type QuotaService interface {
	// Get returns the tenant's quota record, lazily creating it at full
	// allowance and lazily resetting it across a period boundary.
	Get(ctx context.Context, tenantID uuid.UUID) (*models.QuotaRecord, error)
	// Consume debits cost tokens (CostPerAction when cost <= 0). The
	// returned error is infrastructure-only (*QuotaError); insufficient
	// balance comes back in the result.
	Consume(ctx context.Context, tenantID uuid.UUID, cost int) (*ConsumeResult, error)
	// Restore credits tokens back after a dependent action failed, clamped
	// to the allowance. Failures are logged; the caller may ignore the
	// returned error.
	Restore(ctx context.Context, tenantID uuid.UUID, amount int) error
}

type quotaService struct {
	repo     repositories.QuotaRepository
	cfg      QuotaConfig
	strategy consumeStrategy
}

func NewQuotaService(repo repositories.QuotaRepository, cfg QuotaConfig) QuotaService {
	if cfg.TokensPerPeriod <= 0 {
		cfg.TokensPerPeriod = DefaultTokensPerPeriod
	}
	if cfg.CostPerAction <= 0 {
		cfg.CostPerAction = DefaultCostPerAction
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &quotaService{repo: repo, cfg: cfg}
	if cfg.Strict {
		s.strategy = &strictTransactional{repo: repo}
	} else {
		s.strategy = &bestEffortReadModifyWrite{repo: repo}
	}
	return s
}

// PeriodKey tags the monthly allowance window, e.g. "2026-08".
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (s *quotaService) currentPeriod() string {
	return PeriodKey(s.cfg.Now())
}

func (s *quotaService) Get(ctx context.Context, tenantID uuid.UUID) (*models.QuotaRecord, error) {
	period := s.currentPeriod()
	record, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, repositories.ErrQuotaNotFound) {
		record = &models.QuotaRecord{
			ID:              uuid.New(),
			TenantID:        tenantID,
			TokensRemaining: s.cfg.TokensPerPeriod,
			TokensTotal:     s.cfg.TokensPerPeriod,
			PeriodKey:       period,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, s.storeError("create quota record", err)
		}
		return record, nil
	}
	if err != nil {
		return nil, s.storeError("read quota record", err)
	}
	if record.PeriodKey != period {
		// Stored balance is stale across the boundary; never serve it.
		record.TokensRemaining = s.cfg.TokensPerPeriod
		record.TokensTotal = s.cfg.TokensPerPeriod
		record.PeriodKey = period
		if err := s.repo.Update(ctx, record); err != nil {
			return nil, s.storeError("reset quota record", err)
		}
	}
	return record, nil
}

func (s *quotaService) Consume(ctx context.Context, tenantID uuid.UUID, cost int) (*ConsumeResult, error) {
	// A missing tenant id is a caller defect, not a store fault; keep it
	// out of the retryable error kinds.
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant id is required")
	}
	if cost <= 0 {
		cost = s.cfg.CostPerAction
	}
	period := s.currentPeriod()

	remaining, err := s.strategy.consume(ctx, tenantID, cost, s.cfg.TokensPerPeriod, period)
	if errors.Is(err, repositories.ErrQuotaExhausted) {
		used := s.cfg.TokensPerPeriod - remaining
		return &ConsumeResult{
			Success:         false,
			TokensRemaining: remaining,
			Error:           fmt.Sprintf("Quota mensuel atteint : %d/%d fiches utilisées ce mois-ci. Réinitialisation le mois prochain.", used, s.cfg.TokensPerPeriod),
		}, nil
	}
	if err != nil {
		return nil, s.storeError("consume quota", err)
	}
	return &ConsumeResult{Success: true, TokensRemaining: remaining}, nil
}

func (s *quotaService) Restore(ctx context.Context, tenantID uuid.UUID, amount int) error {
	if amount <= 0 {
		amount = s.cfg.CostPerAction
	}
	period := s.currentPeriod()
	_, err := s.repo.RestoreTx(ctx, tenantID, amount, s.cfg.TokensPerPeriod, period)
	if errors.Is(err, repositories.ErrQuotaNotFound) {
		// Nothing to credit; the consume that preceded this restore created
		// the record, so this only happens if it was purged out of band.
		return nil
	}
	if err != nil {
		// Bounded loss: the tenant is out one credit. Not escalated.
		log.Printf("WARN: failed to restore %d token(s) for tenant %s: %v", amount, tenantID, err)
		return s.storeError("restore quota", err)
	}
	return nil
}

func (s *quotaService) storeError(op string, err error) *QuotaError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newQuotaError(QuotaOutcomeUnknown, fmt.Sprintf("%s: outcome unknown", op), err)
	}
	return newQuotaError(QuotaStoreUnavailable, fmt.Sprintf("%s: backing store unavailable", op), err)
}

// consumeStrategy abstracts how the debit is applied. The strict strategy
// relies on the store's transaction; the best-effort strategy is a plain
// read-then-write kept for stores that cannot do better.
type consumeStrategy interface {
	consume(ctx context.Context, tenantID uuid.UUID, cost, total int, periodKey string) (int, error)
}

type strictTransactional struct {
	repo repositories.QuotaRepository
}

func (s *strictTransactional) consume(ctx context.Context, tenantID uuid.UUID, cost, total int, periodKey string) (int, error) {
	return s.repo.ConsumeTx(ctx, tenantID, cost, total, periodKey)
}

type bestEffortReadModifyWrite struct {
	repo repositories.QuotaRepository
}

func (s *bestEffortReadModifyWrite) consume(ctx context.Context, tenantID uuid.UUID, cost, total int, periodKey string) (int, error) {
	record, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, repositories.ErrQuotaNotFound) {
		record = &models.QuotaRecord{
			ID:              uuid.New(),
			TenantID:        tenantID,
			TokensRemaining: total - cost,
			TokensTotal:     total,
			PeriodKey:       periodKey,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return 0, err
		}
		return record.TokensRemaining, nil
	}
	if err != nil {
		return 0, err
	}
	if record.PeriodKey != periodKey {
		record.TokensRemaining = total
		record.TokensTotal = total
		record.PeriodKey = periodKey
	}
	if record.TokensRemaining < cost {
		return record.TokensRemaining, repositories.ErrQuotaExhausted
	}
	// Two interleaved consumers can both pass the check here and lose one
	// update. Accepted: this path only runs when the store has no
	// transactional primitive.
	record.TokensRemaining -= cost
	if err := s.repo.Update(ctx, record); err != nil {
		return 0, err
	}
	return record.TokensRemaining, nil
}
