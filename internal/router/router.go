package router

import (
	"time"

	"possync/internal/config"
	"possync/internal/handler"
	"possync/internal/infra"
	"possync/internal/middleware"
	"possync/internal/repository"
	"possync/internal/service"
	"possync/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// rdb and smtpCB may be nil; caching and notifications are then disabled.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, smtpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	prefRepo := repository.NewAlertPreferenceRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.ReportTimezone).Msg("unknown REPORT_TIMEZONE, using UTC")
		loc = time.UTC
	}
	cache := service.NewAnalyticsCache(rdb, time.Duration(cfg.AnalyticsCacheTTLSeconds)*time.Second)

	// Notifications need the Redis queue; keep the interface nil without it.
	var notifier service.LowStockNotifier
	if rdb != nil {
		notifier = worker.NewDispatcher(rdb)
	}

	inventorySvc := service.NewInventoryService(productRepo, movementRepo, alertRepo, prefRepo, notifier, cache)
	saleSvc := service.NewSaleService(saleRepo, productRepo, inventorySvc, cache)
	analyticsSvc := service.NewAnalyticsService(productRepo, saleRepo, cache, loc)
	alertSvc := service.NewAlertService(alertRepo, prefRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	salesH := handler.NewSalesHandler(saleSvc)
	analyticsH := handler.NewAnalyticsHandler(analyticsSvc)
	alertsH := handler.NewAlertsHandler(alertSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.POST("/sales", salesH.SubmitSale)
		v1.POST("/sales/sync-batch", salesH.SyncBatch)
		v1.GET("/sales", salesH.ListSales)
		v1.GET("/sales/:id", salesH.GetSale)

		v1.GET("/analytics/products/:id", analyticsH.ProductAnalytics)

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", alertsH.ListActive)
			alerts.GET("/history", alertsH.History)
			alerts.POST("/acknowledge", alertsH.Acknowledge)
			alerts.GET("/settings", alertsH.GetSettings)
			alerts.PUT("/settings", alertsH.UpdateSettings)
		}

		v1.GET("/inventory/movements", inventoryH.ListMovements)
		v1.POST("/inventory/movements", inventoryH.CreateMovement)
	}

	// Swagger UI outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
