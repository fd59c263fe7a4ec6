package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "pipecrm/docs"
	"pipecrm/internal/caching"
	"pipecrm/internal/config"
	"pipecrm/internal/handlers"
	"pipecrm/internal/jobs/background"
	"pipecrm/internal/middleware"
	"pipecrm/internal/repositories"
	"pipecrm/internal/services"
	"pipecrm/pkg/database"
)

const version = "1.0.0"

func main() {
	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Auth configuration: JWKS endpoint of the identity provider, or a
	// shared HS256 secret for local development.
	jwksURL := os.Getenv("AUTH_JWKS_URL")
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwksURL == "" && jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret: %s", jwtSecret)
	}

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if redisDBStr := os.Getenv("REDIS_DB"); redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin" // Default for development
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin" // Default for development
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	minioSvc, err := services.NewMinioService(minioEndpoint, minioAccessKey, minioSecretKey, useSSL)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO service: %v", err)
	}

	// Quota configuration (deploy-time constants)
	quotaCfg := services.QuotaConfig{
		TokensPerPeriod: services.DefaultTokensPerPeriod,
		CostPerAction:   services.DefaultCostPerAction,
		Strict:          os.Getenv("QUOTA_STRICT") != "false",
	}
	if v := os.Getenv("TOKENS_PER_PERIOD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			quotaCfg.TokensPerPeriod = n
		}
	}
	if v := os.Getenv("COST_PER_ACTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			quotaCfg.CostPerAction = n
		}
	}

	// External provider configuration: optional TOML file, env fallback.
	paymentAPIKey := os.Getenv("PAYMENT_API_KEY")
	paymentBaseURL := os.Getenv("PAYMENT_BASE_URL")
	extractionAPIKey := os.Getenv("EXTRACTION_API_KEY")
	extractionBaseURL := os.Getenv("EXTRACTION_BASE_URL")
	extractionModel := os.Getenv("EXTRACTION_MODEL")
	if configFile := os.Getenv("PROVIDERS_CONFIG"); configFile != "" {
		providersCfg, err := config.LoadProvidersConfig(configFile)
		if err != nil {
			log.Fatalf("Failed to load providers config: %v", err)
		}
		if providersCfg.Payment.APIKey != "" {
			paymentAPIKey = providersCfg.Payment.APIKey
		}
		if providersCfg.Payment.BaseURL != "" {
			paymentBaseURL = providersCfg.Payment.BaseURL
		}
		if providersCfg.Extraction.APIKey != "" {
			extractionAPIKey = providersCfg.Extraction.APIKey
		}
		if providersCfg.Extraction.BaseURL != "" {
			extractionBaseURL = providersCfg.Extraction.BaseURL
		}
		if providersCfg.Extraction.Model != "" {
			extractionModel = providersCfg.Extraction.Model
		}
	}
	if extractionModel == "" {
		extractionModel = "vision-extract-1"
	}

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	quotaRepo := repositories.NewQuotaRepo(pool)
	leadRepo := repositories.NewLeadRepo(pool)
	eventRepo := repositories.NewEventRepo(pool)
	subscriptionRepo := repositories.NewSubscriptionRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Create services
	quotaSvc := services.NewQuotaService(quotaRepo, quotaCfg)
	leadSvc := services.NewLeadService(leadRepo, quotaSvc, cacheSvc)
	calendarSvc := services.NewCalendarService(eventRepo)
	reportingSvc := services.NewReportingService(leadRepo, cacheSvc, minioSvc)
	paymentSvc := services.NewPaymentService(paymentAPIKey, paymentBaseURL)
	subscriptionSvc := services.NewSubscriptionService(subscriptionRepo, paymentSvc)
	extractionSvc := services.NewExtractionService(extractionAPIKey, extractionBaseURL, extractionModel)

	// Auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(userRepo, jwtSecret, jwksURL)
	if err != nil {
		log.Fatalf("Failed to initialize auth middleware: %v", err)
	}

	// Create handlers
	quotaHandlers := handlers.NewQuotaHandlers(quotaSvc)
	leadHandlers := handlers.NewLeadHandlers(leadSvc, extractionSvc)
	calendarHandlers := handlers.NewCalendarHandlers(calendarSvc)
	reportHandlers := handlers.NewReportHandlers(reportingSvc)
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantRepo)
	userHandlers := handlers.NewUserHandlers(userRepo)

	// Background jobs
	jobScheduler := background.NewJobScheduler(reportingSvc, quotaSvc, tenantRepo)
	if err := jobScheduler.Start(); err != nil {
		log.Printf("WARNING: failed to start job scheduler: %v", err)
	}
	defer func() {
		_ = jobScheduler.Stop()
	}()

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", handlers.HealthCheck)
	e.GET("/health/ready", handlers.ReadinessCheck)
	e.GET("/health/detailed", func(c echo.Context) error {
		return handlers.HealthCheckDetailed(c, pool)
	})

	// API docs
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API routes (require a valid provider token)
	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(authMiddleware.JWTConfig()))
	v1.Use(authMiddleware.ResolveTenant)

	// Quota
	v1.GET("/quota", quotaHandlers.GetQuota)

	// Profile
	v1.GET("/me", userHandlers.Me)
	v1.GET("/users", userHandlers.ListUsers)
	v1.POST("/users", userHandlers.CreateUser)
	v1.DELETE("/users/:id", userHandlers.DeleteUser)

	// Tenant
	v1.GET("/tenant", tenantHandlers.GetTenant)
	v1.PUT("/tenant", tenantHandlers.UpdateTenant)

	// Prospect pipeline
	v1.GET("/leads", leadHandlers.ListLeads)
	v1.POST("/leads", leadHandlers.CreateLead)
	v1.POST("/leads/import", leadHandlers.ImportLeads)
	v1.POST("/leads/extract", leadHandlers.ExtractLead)
	v1.GET("/leads/board", leadHandlers.GetBoard)
	v1.GET("/leads/stages", leadHandlers.Stages)
	v1.GET("/leads/:id", leadHandlers.GetLead)
	v1.PUT("/leads/:id", leadHandlers.UpdateLead)
	v1.PUT("/leads/:id/stage", leadHandlers.MoveStage)
	v1.DELETE("/leads/:id", leadHandlers.DeleteLead)

	// Calendar
	v1.GET("/events", calendarHandlers.ListEvents)
	v1.POST("/events", calendarHandlers.CreateEvent)
	v1.GET("/events/:id", calendarHandlers.GetEvent)
	v1.PUT("/events/:id", calendarHandlers.UpdateEvent)
	v1.DELETE("/events/:id", calendarHandlers.DeleteEvent)

	// Reporting
	v1.GET("/reports/pipeline", reportHandlers.GetPipelineSummary)
	v1.POST("/reports/pipeline/export", reportHandlers.ExportPipelinePDF)

	// Subscriptions
	v1.GET("/plans", subscriptionHandlers.ListPlans)
	v1.GET("/subscriptions", subscriptionHandlers.ListSubscriptions)
	v1.POST("/subscriptions", subscriptionHandlers.CreateSubscription)
	v1.GET("/subscriptions/:id/status", subscriptionHandlers.GetSubscriptionStatus)

	// Start server
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("Invalid port %s: %v", portStr, err)
	}

	log.Printf("pipecrm server v%s starting on port %d", version, port)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", port)))
}
