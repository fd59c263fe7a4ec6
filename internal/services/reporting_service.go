package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"pipecrm/internal/caching"
	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const reportsBucket = "reports"

// ReportExport describes a rendered report stored in object storage.
type ReportExport struct {
	ObjectName string `json:"object_name"`
	URL        string `json:"url"`
}

type ReportingService interface {
	// PipelineSummary returns per-stage lead counts and deal values,
	// served from cache when fresh.
	PipelineSummary(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error)
	// RefreshPipelineSummary recomputes and re-caches the summary.
	RefreshPipelineSummary(ctx context.Context, tenantID uuid.UUID) error
	// ExportPDF renders the pipeline summary to PDF, uploads it, and
	// returns a presigned download link.
	ExportPDF(ctx context.Context, tenantID uuid.UUID) (*ReportExport, error)
}

type reportingService struct {
	leadRepo repositories.LeadRepository
	cacheSvc caching.CacheService
	minioSvc MinioService
}

func NewReportingService(leadRepo repositories.LeadRepository, cacheSvc caching.CacheService, minioSvc MinioService) ReportingService {
	return &reportingService{
		leadRepo: leadRepo,
		cacheSvc: cacheSvc,
		minioSvc: minioSvc,
	}
}

func (s *reportingService) PipelineSummary(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	if cached, err := s.cacheSvc.GetPipelineSummary(ctx, tenantID); err == nil && cached != nil {
		return cached, nil
	}
	return s.computeAndCache(ctx, tenantID)
}

func (s *reportingService) RefreshPipelineSummary(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.computeAndCache(ctx, tenantID)
	return err
}

func (s *reportingService) computeAndCache(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	summaries, err := s.leadRepo.StageSummaries(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("compute pipeline summary: %w", err)
	}
	if err := s.cacheSvc.SetPipelineSummary(ctx, tenantID, summaries, 15*time.Minute); err != nil {
		log.Printf("WARN: failed to cache pipeline summary for tenant %s: %v", tenantID, err)
	}
	return summaries, nil
}

func (s *reportingService) ExportPDF(ctx context.Context, tenantID uuid.UUID) (*ReportExport, error) {
	summaries, err := s.PipelineSummary(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(190, 10, "Pipeline commercial")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Genere le %s", time.Now().UTC().Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(70, 8, "Etape", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Fiches", "1", 0, "R", false, 0, "")
	pdf.CellFormat(60, 8, "Valeur totale", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	var totalCount int
	var totalValue float64
	for _, summary := range summaries {
		pdf.CellFormat(70, 8, summary.Stage, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", summary.LeadCount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(60, 8, fmt.Sprintf("%.2f", summary.TotalValue), "1", 1, "R", false, 0, "")
		totalCount += summary.LeadCount
		totalValue += summary.TotalValue
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(70, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("%d", totalCount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(60, 8, fmt.Sprintf("%.2f", totalValue), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report PDF: %w", err)
	}

	if err := s.minioSvc.EnsureBucketExists(ctx, reportsBucket); err != nil {
		return nil, fmt.Errorf("ensure reports bucket: %w", err)
	}
	objectName := fmt.Sprintf("%s/pipeline-%s.pdf", tenantID.String(), time.Now().UTC().Format("20060102-150405"))
	if err := s.minioSvc.UploadObject(ctx, reportsBucket, objectName, "application/pdf", &buf, int64(buf.Len())); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	url, err := s.minioSvc.GetPresignedURL(reportsBucket, objectName, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("presign report url: %w", err)
	}
	return &ReportExport{ObjectName: objectName, URL: url}, nil
}
