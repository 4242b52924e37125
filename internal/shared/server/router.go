package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"textlens-backend/internal/analysis"
	googleauth "textlens-backend/internal/auth"
	"textlens-backend/internal/billing"
	"textlens-backend/internal/broadcast"
	"textlens-backend/internal/credits"
	"textlens-backend/internal/documents"
	"textlens-backend/internal/provider"
	"textlens-backend/internal/shared/config"
	"textlens-backend/internal/shared/metrics"
	"textlens-backend/internal/shared/server/middleware"
	"textlens-backend/internal/shared/server/respond"
	"textlens-backend/internal/shared/storage/db"
	localstore "textlens-backend/internal/shared/storage/object/local"
	"textlens-backend/internal/users"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT":         {Rate: 20, Burst: 40},
				"ANALYSIS_CREATE": {Rate: 0.2, Burst: 3},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses" {
					return "ANALYSIS_CREATE"
				}
				return ""
			},
		}),
	)

	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else if err := db.RunMigrations(context.Background(), conn); err != nil {
			log.Printf("failed to run migrations, falling back to memory: %v", err)
		} else {
			sqlDB = conn
		}
	}

	store := localstore.New(cfg.LocalStoreDir)

	var docRepo documents.DocumentsRepo
	if sqlDB != nil {
		docRepo = &documents.PGRepo{DB: sqlDB}
	} else {
		docRepo = documents.NewMemoryRepo()
	}
	docSvc := &documents.Service{Store: store, Repo: docRepo}
	docHandler := documents.NewHandler(docSvc)

	creditCosts := credits.NewCosts(cfg.CreditCosts)
	var creditSvc *credits.Service
	if sqlDB != nil {
		creditSvc = credits.NewPostgresService(credits.NewPGStore(sqlDB), creditCosts)
	} else {
		creditSvc = credits.NewService(creditCosts)
	}
	creditHandler := credits.NewHandler(creditSvc)

	var analysisRepo analysis.Repo
	if sqlDB != nil {
		analysisRepo = &analysis.PGRepo{DB: sqlDB}
	} else {
		analysisRepo = analysis.NewMemoryRepo()
	}

	registry := broadcast.NewRegistry()
	providerClient := provider.NewClient(provider.Config{
		APIKeys: cfg.ProviderAPIKeys,
		Models:  cfg.ProviderModels,
		Timeout: cfg.ProviderTimeout,
	})
	orchestrator := &analysis.Orchestrator{
		Repo:       analysisRepo,
		Credits:    creditSvc,
		Provider:   providerClient,
		Registry:   registry,
		BatchDelay: cfg.BatchDelay,
		DelayTick:  cfg.DelayTick,
	}
	analysisSvc := &analysis.Service{
		Repo:         analysisRepo,
		Credits:      creditSvc,
		Registry:     registry,
		Orchestrator: orchestrator,
		Documents:    docSvc,
	}
	analysisHandler := analysis.NewHandler(analysisSvc, registry)

	var userRepo users.Repo
	if sqlDB != nil {
		userRepo = &users.PGRepo{DB: sqlDB}
	} else {
		userRepo = users.NewMemoryRepo()
	}
	userSvc := users.NewService(userRepo)
	userHandler := users.NewHandler(userSvc)
	googleAuthSvc := googleauth.NewGoogleService(
		cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.UIRedirectURL, userSvc)

	billingSvc := billing.NewService(billing.Config{
		APIKey:        cfg.StripeAPIKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
		Packs:         billing.DefaultPacks(),
	}, creditSvc)
	billingHandler := billing.NewHandler(billingSvc)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	googleAuthSvc.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	docHandler.RegisterRoutes(api)
	analysisHandler.RegisterRoutes(api)
	creditHandler.RegisterRoutes(api)
	billingHandler.RegisterRoutes(api)
	if cfg.Env == "dev" {
		dev := api.Group("/dev")
		creditHandler.RegisterDevRoutes(dev)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
