package repositories

import (
	"context"
	"time"

	"pipecrm/internal/models"

	"github.com/google/uuid"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.Event, error)
}

type eventRepo struct {
	db Database
}

func NewEventRepo(db Database) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, tenant_id, owner_id, lead_id, title, location, starts_at, ends_at, all_day, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, event.ID, event.TenantID, event.OwnerID, event.LeadID, event.Title, event.Location, event.StartsAt, event.EndsAt, event.AllDay, event.Notes)
	return err
}

func (r *eventRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, tenant_id, owner_id, lead_id, title, location, starts_at, ends_at, all_day, notes, created_at, updated_at
		FROM events
		WHERE tenant_id = $1 AND id = $2
	`
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&event.ID, &event.TenantID, &event.OwnerID, &event.LeadID, &event.Title, &event.Location, &event.StartsAt, &event.EndsAt, &event.AllDay, &event.Notes, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *eventRepo) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET lead_id = $1, title = $2, location = $3, starts_at = $4, ends_at = $5, all_day = $6, notes = $7, updated_at = NOW()
		WHERE tenant_id = $8 AND id = $9
	`
	_, err := r.db.Exec(ctx, query, event.LeadID, event.Title, event.Location, event.StartsAt, event.EndsAt, event.AllDay, event.Notes, event.TenantID, event.ID)
	return err
}

func (r *eventRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `DELETE FROM events WHERE tenant_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, tenantID, id)
	return err
}

func (r *eventRepo) ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.Event, error) {
	query := `
		SELECT id, tenant_id, owner_id, lead_id, title, location, starts_at, ends_at, all_day, notes, created_at, updated_at
		FROM events
		WHERE tenant_id = $1 AND starts_at < $3 AND ends_at >= $2
		ORDER BY starts_at ASC
	`
	rows, err := r.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(&event.ID, &event.TenantID, &event.OwnerID, &event.LeadID, &event.Title, &event.Location, &event.StartsAt, &event.EndsAt, &event.AllDay, &event.Notes, &event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
