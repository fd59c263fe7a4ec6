package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"pipecrm/internal/caching"
	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
)

// ErrSubmissionInFlight is returned when a second create arrives for the
// same tenant while the first is still awaiting the quota debit.
var ErrSubmissionInFlight = errors.New("a creation request is already in flight for this tenant")

type CreateLeadRequest struct {
	Name    string  `json:"name"`
	Company *string `json:"company"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Stage   string  `json:"stage"`
	Value   float64 `json:"value"`
	Source  *string `json:"source"`
	Notes   *string `json:"notes"`
}

type ImportRowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int              `json:"imported"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

type LeadService interface {
	// Create debits one creation credit, persists the lead, and restores
	// the credit if persistence fails. Quota exhaustion and infrastructure
	// faults come back as *QuotaError so callers can word them apart.
	Create(ctx context.Context, tenantID, ownerID uuid.UUID, req *CreateLeadRequest) (*models.Lead, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Lead, error)
	Board(ctx context.Context, tenantID uuid.UUID) (map[string][]*models.Lead, error)
	Update(ctx context.Context, tenantID uuid.UUID, lead *models.Lead) error
	MoveStage(ctx context.Context, tenantID, id uuid.UUID, stage string, position int) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ImportCSV(ctx context.Context, tenantID, ownerID uuid.UUID, r io.Reader) (*ImportResult, error)
}

type leadService struct {
	leadRepo repositories.LeadRepository
	quotaSvc QuotaService
	cacheSvc caching.CacheService

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLeadService(leadRepo repositories.LeadRepository, quotaSvc QuotaService, cacheSvc caching.CacheService) LeadService {
	return &leadService{
		leadRepo: leadRepo,
		quotaSvc: quotaSvc,
		cacheSvc: cacheSvc,
		inFlight: make(map[string]struct{}),
	}
}

var validStages = map[string]bool{
	models.StageNew:       true,
	models.StageContacted: true,
	models.StageQualified: true,
	models.StageProposal:  true,
	models.StageWon:       true,
	models.StageLost:      true,
}

// acquire registers an in-flight action for the tenant so a double submit
// is rejected locally before it reaches the quota store.
func (s *leadService) acquire(tenantID uuid.UUID, action string) (func(), bool) {
	key := tenantID.String() + ":" + action
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inFlight[key]; held {
		return nil, false
	}
	s.inFlight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}, true
}

func (s *leadService) Create(ctx context.Context, tenantID, ownerID uuid.UUID, req *CreateLeadRequest) (*models.Lead, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("lead name is required")
	}
	stage := req.Stage
	if stage == "" {
		stage = models.StageNew
	}
	if !validStages[stage] {
		return nil, fmt.Errorf("invalid stage: %s", stage)
	}

	release, ok := s.acquire(tenantID, "lead_create")
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	defer release()

	result, err := s.quotaSvc.Consume(ctx, tenantID, 0)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, newQuotaError(QuotaExceeded, result.Error, nil)
	}

	lead := &models.Lead{
		ID:       uuid.New(),
		TenantID: tenantID,
		OwnerID:  ownerID,
		Name:     strings.TrimSpace(req.Name),
		Company:  req.Company,
		Email:    req.Email,
		Phone:    req.Phone,
		Stage:    stage,
		Value:    req.Value,
		Source:   req.Source,
		Notes:    req.Notes,
	}
	if err := s.leadRepo.Create(ctx, lead); err != nil {
		// Compensate the debit; a failed restore only costs one credit.
		if restoreErr := s.quotaSvc.Restore(ctx, tenantID, 0); restoreErr != nil {
			log.Printf("WARN: compensation failed for tenant %s: %v", tenantID, restoreErr)
		}
		return nil, fmt.Errorf("persist lead: %w", err)
	}

	s.invalidatePipeline(ctx, tenantID)
	return lead, nil
}

func (s *leadService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Lead, error) {
	if cached, err := s.cacheSvc.GetLead(ctx, tenantID, id); err == nil && cached != nil {
		return cached, nil
	}
	lead, err := s.leadRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.cacheSvc.SetLead(ctx, tenantID, lead, 5*time.Minute); err != nil {
		log.Printf("WARN: failed to cache lead %s: %v", lead.ID, err)
	}
	return lead, nil
}

func (s *leadService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.leadRepo.List(ctx, tenantID, limit, offset)
}

// Board returns the pipeline grouped by stage, ordered for display.
func (s *leadService) Board(ctx context.Context, tenantID uuid.UUID) (map[string][]*models.Lead, error) {
	board := make(map[string][]*models.Lead)
	for _, stage := range []string{models.StageNew, models.StageContacted, models.StageQualified, models.StageProposal, models.StageWon, models.StageLost} {
		leads, err := s.leadRepo.ListByStage(ctx, tenantID, stage)
		if err != nil {
			return nil, err
		}
		board[stage] = leads
	}
	return board, nil
}

func (s *leadService) Update(ctx context.Context, tenantID uuid.UUID, lead *models.Lead) error {
	if lead.TenantID != tenantID {
		return fmt.Errorf("lead does not belong to tenant")
	}
	if !validStages[lead.Stage] {
		return fmt.Errorf("invalid stage: %s", lead.Stage)
	}
	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return err
	}
	s.invalidateLead(ctx, tenantID, lead.ID)
	return nil
}

func (s *leadService) MoveStage(ctx context.Context, tenantID, id uuid.UUID, stage string, position int) error {
	if !validStages[stage] {
		return fmt.Errorf("invalid stage: %s", stage)
	}
	if position < 0 {
		position = 0
	}
	if err := s.leadRepo.UpdateStage(ctx, tenantID, id, stage, position); err != nil {
		return err
	}
	s.invalidateLead(ctx, tenantID, id)
	return nil
}

func (s *leadService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.leadRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidateLead(ctx, tenantID, id)
	return nil
}

// ImportCSV ingests rows of "name,company,email,phone,value,source". Every
// row goes through the quota-gated Create; the import stops as soon as the
// quota is exhausted or the store becomes unavailable.
func (s *leadService) ImportCSV(ctx context.Context, tenantID, ownerID uuid.UUID, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	result := &ImportResult{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Line: line, Error: err.Error()})
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue // header row
		}
		req := rowToRequest(record)
		if _, err := s.Create(ctx, tenantID, ownerID, req); err != nil {
			var qe *QuotaError
			if errors.As(err, &qe) {
				// Exhausted or store down: the remaining rows cannot fare
				// better, stop here and report how far we got.
				result.Errors = append(result.Errors, ImportRowError{Line: line, Error: qe.Message})
				return result, nil
			}
			result.Errors = append(result.Errors, ImportRowError{Line: line, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result, nil
}

func rowToRequest(record []string) *CreateLeadRequest {
	field := func(i int) *string {
		if i < len(record) {
			v := strings.TrimSpace(record[i])
			if v != "" {
				return &v
			}
		}
		return nil
	}
	req := &CreateLeadRequest{Stage: models.StageNew}
	if len(record) > 0 {
		req.Name = strings.TrimSpace(record[0])
	}
	req.Company = field(1)
	req.Email = field(2)
	req.Phone = field(3)
	if v := field(4); v != nil {
		if parsed, err := strconv.ParseFloat(*v, 64); err == nil {
			req.Value = parsed
		}
	}
	req.Source = field(5)
	return req
}

func (s *leadService) invalidateLead(ctx context.Context, tenantID, id uuid.UUID) {
	if err := s.cacheSvc.DeleteLead(ctx, tenantID, id); err != nil {
		log.Printf("WARN: failed to invalidate lead cache: %v", err)
	}
	s.invalidatePipeline(ctx, tenantID)
}

func (s *leadService) invalidatePipeline(ctx context.Context, tenantID uuid.UUID) {
	if err := s.cacheSvc.DeletePipelineSummary(ctx, tenantID); err != nil {
		log.Printf("WARN: failed to invalidate pipeline cache: %v", err)
	}
}
