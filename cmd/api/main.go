package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanlanch/leadpilot/config"
	"github.com/jordanlanch/leadpilot/pkg/api/handlers"
	"github.com/jordanlanch/leadpilot/pkg/cache"
	"github.com/jordanlanch/leadpilot/pkg/database"
	"github.com/jordanlanch/leadpilot/pkg/domain"
	"github.com/jordanlanch/leadpilot/pkg/email"
	"github.com/jordanlanch/leadpilot/pkg/emailgen"
	"github.com/jordanlanch/leadpilot/pkg/followup"
	"github.com/jordanlanch/leadpilot/pkg/jobs"
	"github.com/jordanlanch/leadpilot/pkg/lifecycle"
	"github.com/jordanlanch/leadpilot/pkg/logger"
	"github.com/jordanlanch/leadpilot/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadpilot/pkg/middleware"
	"github.com/jordanlanch/leadpilot/pkg/replydetect"
	"github.com/jordanlanch/leadpilot/pkg/store"
)

func main() {
	// Load configuration
	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel)
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New(prometheus.DefaultRegisterer)
	log.Printf("✅ Prometheus metrics initialized")

	// Stores
	campaignStore := store.NewCampaignStore(db.DB)
	leadStore := store.NewLeadStore(db.DB)
	userStore := store.NewUserStore(db.DB)

	// Email delivery and content generation
	sender := email.NewSender(cfg.SendGridAPIKey, cfg.BaseURL)
	generator := emailgen.New(emailgen.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	}, appLog)

	// Follow-up scheduler
	scheduler := followup.NewScheduler(campaignStore, leadStore, userStore, sender, generator, prometheusMetrics, appLog, followup.Options{
		MaxFollowUpsPerLead:   cfg.MaxFollowUpsPerLead,
		RecentReplyWindowDays: cfg.RecentReplyWindowDays,
		Tone:                  cfg.EmailTone,
		FromEmail:             cfg.EmailFrom,
	})

	// Reply detection over IMAP (optional: without credentials the poll
	// cycle is a no-op and replies can only be recorded manually)
	var detector domain.ReplyDetector
	if cfg.IMAPHost != "" {
		imapPort, _ := strconv.Atoi(cfg.IMAPPort)
		detector = replydetect.NewDetector(replydetect.Config{
			Host:     cfg.IMAPHost,
			Port:     imapPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Mailbox:  cfg.IMAPMailbox,
		}, appLog)
		log.Printf("✅ IMAP reply detection enabled (%s)", cfg.IMAPHost)
	} else {
		log.Printf("ℹ️  IMAP reply detection disabled (no host configured)")
	}

	// Lifecycle reconciler
	reconciler := lifecycle.NewReconciler(campaignStore, leadStore, redisClient, detector, prometheusMetrics, appLog, cfg.ReplyLookbackWindow)

	// Background jobs: follow-up tick and reply poll
	cronManager := jobs.NewCronManager(scheduler, reconciler, cfg.FollowUpTickInterval, cfg.ReplyPollInterval, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Info("request", "method", c.Request().Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "LeadPilot API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Handlers
	campaignHandler := handlers.NewCampaignHandler(campaignStore, leadStore, scheduler, reconciler, sender, appLog, cfg.EmailFrom, cfg.EmailFromName)
	leadHandler := handlers.NewLeadHandler(leadStore, appLog)
	trackingHandler := handlers.NewTrackingHandler(reconciler, appLog)

	// Tracking endpoints are hit by mail clients: no rate limit, no auth
	e.GET("/email/track-open/:trackingId", trackingHandler.TrackOpen)
	e.GET("/email/track-click/:trackingId", trackingHandler.TrackClick)

	// API v1 routes
	v1 := e.Group("/api/v1", rateLimiter.Middleware())

	campaignsGroup := v1.Group("/campaigns")
	{
		campaignsGroup.POST("", campaignHandler.CreateCampaign)
		campaignsGroup.GET("/:id", campaignHandler.GetCampaign)
		campaignsGroup.POST("/:id/schedule-followup", campaignHandler.ScheduleFollowUp)
		campaignsGroup.DELETE("/:id/cancel-followups", campaignHandler.CancelFollowUps)
		campaignsGroup.POST("/:id/mark-replied", campaignHandler.MarkReplied)
	}

	leadsGroup := v1.Group("/leads")
	{
		leadsGroup.POST("", leadHandler.CreateLead)
		leadsGroup.GET("", leadHandler.ListLeads)
		leadsGroup.GET("/:id", leadHandler.GetLead)
		leadsGroup.POST("/:id/cancel-followups", campaignHandler.CancelLeadFollowUps)
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 LeadPilot API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	log.Printf("⏰ Follow-up tick: %s, reply poll: %s", cfg.FollowUpTickInterval, cfg.ReplyPollInterval)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Stop background jobs before the HTTP server so in-flight sends finish
	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
