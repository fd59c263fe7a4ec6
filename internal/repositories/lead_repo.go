package repositories

import (
	"context"

	"pipecrm/internal/models"

	"github.com/google/uuid"
)

type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	UpdateStage(ctx context.Context, tenantID, id uuid.UUID, stage string, position int) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Lead, error)
	ListByStage(ctx context.Context, tenantID uuid.UUID, stage string) ([]*models.Lead, error)
	StageSummaries(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error)
}

type leadRepo struct {
	db Database
}

func NewLeadRepo(db Database) LeadRepository {
	return &leadRepo{db: db}
}

func (r *leadRepo) Create(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (id, tenant_id, owner_id, name, company, email, phone, stage, position, value, source, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, lead.ID, lead.TenantID, lead.OwnerID, lead.Name, lead.Company, lead.Email, lead.Phone, lead.Stage, lead.Position, lead.Value, lead.Source, lead.Notes)
	return err
}

func (r *leadRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	lead := &models.Lead{}
	query := `
		SELECT id, tenant_id, owner_id, name, company, email, phone, stage, position, value, source, notes, created_at, updated_at
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.Name, &lead.Company, &lead.Email, &lead.Phone, &lead.Stage, &lead.Position, &lead.Value, &lead.Source, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *leadRepo) Update(ctx context.Context, lead *models.Lead) error {
	query := `
		UPDATE leads
		SET name = $1, company = $2, email = $3, phone = $4, stage = $5, position = $6, value = $7, source = $8, notes = $9, updated_at = NOW()
		WHERE tenant_id = $10 AND id = $11
	`
	_, err := r.db.Exec(ctx, query, lead.Name, lead.Company, lead.Email, lead.Phone, lead.Stage, lead.Position, lead.Value, lead.Source, lead.Notes, lead.TenantID, lead.ID)
	return err
}

func (r *leadRepo) UpdateStage(ctx context.Context, tenantID, id uuid.UUID, stage string, position int) error {
	query := `
		UPDATE leads
		SET stage = $1, position = $2, updated_at = NOW()
		WHERE tenant_id = $3 AND id = $4
	`
	_, err := r.db.Exec(ctx, query, stage, position, tenantID, id)
	return err
}

func (r *leadRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM leads WHERE tenant_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, tenantID, id)
	return err
}

func (r *leadRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Lead, error) {
	query := `
		SELECT id, tenant_id, owner_id, name, company, email, phone, stage, position, value, source, notes, created_at, updated_at
		FROM leads
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead := &models.Lead{}
		if err := rows.Scan(&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.Name, &lead.Company, &lead.Email, &lead.Phone, &lead.Stage, &lead.Position, &lead.Value, &lead.Source, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *leadRepo) ListByStage(ctx context.Context, tenantID uuid.UUID, stage string) ([]*models.Lead, error) {
	query := `
		SELECT id, tenant_id, owner_id, name, company, email, phone, stage, position, value, source, notes, created_at, updated_at
		FROM leads
		WHERE tenant_id = $1 AND stage = $2
		ORDER BY position ASC, created_at DESC
	`
	rows, err := r.db.Query(ctx, query, tenantID, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead := &models.Lead{}
		if err := rows.Scan(&lead.ID, &lead.TenantID, &lead.OwnerID, &lead.Name, &lead.Company, &lead.Email, &lead.Phone, &lead.Stage, &lead.Position, &lead.Value, &lead.Source, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (r *leadRepo) StageSummaries(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	query := `
		SELECT stage, COUNT(*), COALESCE(SUM(value), 0)
		FROM leads
		WHERE tenant_id = $1
		GROUP BY stage
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.StageSummary
	for rows.Next() {
		summary := &models.StageSummary{}
		if err := rows.Scan(&summary.Stage, &summary.LeadCount, &summary.TotalValue); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
