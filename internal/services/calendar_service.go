package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
)

type CreateEventRequest struct {
	LeadID   *uuid.UUID `json:"lead_id"`
	Title    string     `json:"title"`
	Location *string    `json:"location"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   time.Time  `json:"ends_at"`
	AllDay   bool       `json:"all_day"`
	Notes    *string    `json:"notes"`
}

type CalendarService interface {
	Create(ctx context.Context, tenantID, ownerID uuid.UUID, req *CreateEventRequest) (*models.Event, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, tenantID uuid.UUID, event *models.Event) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.Event, error)
}

type calendarService struct {
	eventRepo repositories.EventRepository
}

func NewCalendarService(eventRepo repositories.EventRepository) CalendarService {
	return &calendarService{eventRepo: eventRepo}
}

func validateEventTimes(startsAt, endsAt time.Time, allDay bool) error {
	if startsAt.IsZero() {
		return fmt.Errorf("event start time is required")
	}
	if !allDay && endsAt.Before(startsAt) {
		return fmt.Errorf("event end time cannot be before start time")
	}
	return nil
}

func (s *calendarService) Create(ctx context.Context, tenantID, ownerID uuid.UUID, req *CreateEventRequest) (*models.Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("event title is required")
	}
	if err := validateEventTimes(req.StartsAt, req.EndsAt, req.AllDay); err != nil {
		return nil, err
	}
	endsAt := req.EndsAt
	if req.AllDay {
		// Midnight boundaries in the event's own zone; Truncate would cut
		// against the UTC epoch and shift the day for non-UTC starts.
		year, month, day := req.StartsAt.Date()
		endsAt = time.Date(year, month, day, 0, 0, 0, 0, req.StartsAt.Location()).AddDate(0, 0, 1)
	}

	event := &models.Event{
		ID:       uuid.New(),
		TenantID: tenantID,
		OwnerID:  ownerID,
		LeadID:   req.LeadID,
		Title:    strings.TrimSpace(req.Title),
		Location: req.Location,
		StartsAt: req.StartsAt,
		EndsAt:   endsAt,
		AllDay:   req.AllDay,
		Notes:    req.Notes,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("persist event: %w", err)
	}
	return event, nil
}

func (s *calendarService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Event, error) {
	return s.eventRepo.GetByID(ctx, tenantID, id)
}

func (s *calendarService) Update(ctx context.Context, tenantID uuid.UUID, event *models.Event) error {
	if event.TenantID != tenantID {
		return fmt.Errorf("event does not belong to tenant")
	}
	if strings.TrimSpace(event.Title) == "" {
		return fmt.Errorf("event title is required")
	}
	if err := validateEventTimes(event.StartsAt, event.EndsAt, event.AllDay); err != nil {
		return err
	}
	return s.eventRepo.Update(ctx, event)
}

func (s *calendarService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.eventRepo.Delete(ctx, tenantID, id)
}

func (s *calendarService) ListRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.Event, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end cannot be before range start")
	}
	return s.eventRepo.ListRange(ctx, tenantID, from, to)
}
