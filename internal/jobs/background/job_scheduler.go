package background

import (
	"context"
	"log"
	"sync"
	"time"

	"pipecrm/internal/repositories"
	"pipecrm/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler manages background jobs for the dashboard.
type JobScheduler struct {
	scheduler    gocron.Scheduler
	reportingSvc services.ReportingService
	quotaSvc     services.QuotaService
	tenantRepo   repositories.TenantRepository
	jobs         map[string]gocron.Job
	mu           sync.RWMutex
}

func NewJobScheduler(reportingSvc services.ReportingService, quotaSvc services.QuotaService,
	tenantRepo repositories.TenantRepository) *JobScheduler {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:    scheduler,
		reportingSvc: reportingSvc,
		quotaSvc:     quotaSvc,
		tenantRepo:   tenantRepo,
		jobs:         make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	// Pipeline report cache refresh - every 15 minutes
	reportJob, err := js.scheduler.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(js.refreshPipelineSummaries, context.Background()),
		gocron.WithName("pipeline-summary-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create pipeline summary job: %v", err)
	} else {
		js.setJob("pipeline-summary", reportJob)
	}

	// Quota prewarm shortly after midnight so dashboards show reset
	// balances at the month boundary without waiting for the first
	// consume. Lazy rollover in the quota service stays the correctness
	// mechanism; this is only warm-up.
	quotaJob, err := js.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(js.prewarmQuotas, context.Background()),
		gocron.WithName("quota-period-prewarm"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create quota prewarm job: %v", err)
	} else {
		js.setJob("quota-prewarm", quotaJob)
	}
}

func (js *JobScheduler) setJob(name string, job gocron.Job) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[name] = job
}

func (js *JobScheduler) refreshPipelineSummaries(ctx context.Context) {
	tenants, err := js.tenantRepo.List(ctx, 1000, 0)
	if err != nil {
		log.Printf("WARN: pipeline summary refresh: failed to list tenants: %v", err)
		return
	}
	for _, tenant := range tenants {
		if err := js.reportingSvc.RefreshPipelineSummary(ctx, tenant.ID); err != nil {
			log.Printf("WARN: pipeline summary refresh failed for tenant %s: %v", tenant.ID, err)
		}
	}
}

func (js *JobScheduler) prewarmQuotas(ctx context.Context) {
	tenants, err := js.tenantRepo.List(ctx, 1000, 0)
	if err != nil {
		log.Printf("WARN: quota prewarm: failed to list tenants: %v", err)
		return
	}
	for _, tenant := range tenants {
		if _, err := js.quotaSvc.Get(ctx, tenant.ID); err != nil {
			log.Printf("WARN: quota prewarm failed for tenant %s: %v", tenant.ID, err)
		}
	}
}
