package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/applytrack-api/internal/ai"
	"github.com/yourusername/applytrack-api/internal/config"
	"github.com/yourusername/applytrack-api/internal/fit"
	"github.com/yourusername/applytrack-api/internal/handler"
	"github.com/yourusername/applytrack-api/internal/llm"
	"github.com/yourusername/applytrack-api/internal/metrics"
	"github.com/yourusername/applytrack-api/internal/middleware"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/notify"
	"github.com/yourusername/applytrack-api/internal/repository"
	"github.com/yourusername/applytrack-api/internal/scheduler"
	"github.com/yourusername/applytrack-api/internal/service"
	"github.com/yourusername/applytrack-api/internal/sources"
	"github.com/yourusername/applytrack-api/internal/storage"
)

func main() {
	// ── Logging ──────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// ── Config ───────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("Starting ApplyTrack API")

	// ── Database ─────────────────────────────────────────
	ctx := context.Background()
	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database connected")

	// ── Repositories ─────────────────────────────────────
	userRepo := repository.NewUserRepo(pool)
	appRepo := repository.NewApplicationRepo(pool)
	oppRepo := repository.NewOpportunityRepo(pool)
	interviewRepo := repository.NewInterviewRepo(pool)
	contactRepo := repository.NewContactRepo(pool)
	followUpRepo := repository.NewFollowUpRepo(pool)
	resumeRepo := repository.NewResumeRepo(pool)
	letterRepo := repository.NewCoverLetterRepo(pool)
	skillRepo := repository.NewSkillRepo(pool)
	sourceRepo := repository.NewSourceRepo(pool)
	alertRepo := repository.NewAlertRepo(pool)
	runRepo := repository.NewScanRunRepo(pool)
	custRepo := repository.NewStripeCustomerRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	refRepo := repository.NewRefRepo(pool)

	// ── Services ─────────────────────────────────────────
	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure LLM provider")
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}
	aiService := ai.NewService(provider)

	var scorer *fit.Scorer
	if aiService != nil {
		scorer = fit.NewScorer(aiService)
		log.Info().Str("provider", aiService.ProviderName()).Msg("AI features enabled")
	} else {
		scorer = fit.NewScorer(nil)
		log.Warn().Msg("No LLM configured, AI features disabled and fit uses rules only")
	}

	bus := EventBus.New()
	scanService := service.NewScanService(service.ScanRepos{
		Users:         userRepo,
		Sources:       sourceRepo,
		Opportunities: oppRepo,
		Alerts:        alertRepo,
		Runs:          runRepo,
		Skills:        skillRepo,
		Resumes:       resumeRepo,
		FollowUps:     followUpRepo,
		Interviews:    interviewRepo,
	}, sources.NewRegistry(cfg), scorer, bus, clockwork.NewRealClock(), cfg.ScanThrottle)

	if cfg.TelegramBotToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, userRepo, cfg.FrontendURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start Telegram notifier, alerts stay in-app only")
		} else if err := notifier.Subscribe(bus); err != nil {
			log.Error().Err(err).Msg("Failed to subscribe Telegram notifier")
		}
	}

	billingService := service.NewBillingService(cfg, custRepo, subRepo, userRepo)
	if !billingService.Enabled() {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, billing disabled and every user is pro")
	}

	uploads, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("Failed to prepare upload directory")
	}

	sched, err := scheduler.New(scanService, cfg.ScanSchedule, cfg.ReminderSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}
	sched.Start()

	// ── Handlers ─────────────────────────────────────────
	if err := handler.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register validators")
	}

	authHandler := handler.NewAuthHandler(userRepo)
	profileHandler := handler.NewProfileHandler(userRepo)
	settingsHandler := handler.NewSettingsHandler(userRepo, cfg.PublicBaseURL)
	dashHandler := handler.NewDashboardHandler(appRepo, oppRepo, interviewRepo, followUpRepo, alertRepo)
	appHandler := handler.NewApplicationHandler(appRepo, refRepo)
	oppHandler := handler.NewOpportunityHandler(oppRepo, appRepo, userRepo, scanService)
	bookmarkletHandler := handler.NewBookmarkletHandler(oppHandler, aiService)
	interviewHandler := handler.NewInterviewHandler(interviewRepo, appRepo, refRepo)
	followUpHandler := handler.NewFollowUpHandler(followUpRepo, refRepo)
	contactHandler := handler.NewContactHandler(contactRepo, refRepo)
	resumeHandler := handler.NewResumeHandler(resumeRepo, userRepo, skillRepo, oppRepo, uploads, aiService, cfg.MaxUploadBytes)
	letterHandler := handler.NewCoverLetterHandler(letterRepo, resumeRepo, appRepo, oppRepo, userRepo, aiService)
	skillHandler := handler.NewSkillHandler(skillRepo)
	sourceHandler := handler.NewSourceHandler(sourceRepo, runRepo, scanService)
	alertHandler := handler.NewAlertHandler(alertRepo)
	billingHandler := handler.NewBillingHandler(billingService)
	cronHandler := handler.NewCronHandler(scanService)

	// ── Middleware ────────────────────────────────────────
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.FirebaseProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Firebase auth")
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	requirePro := middleware.RequirePlan(model.PlanPro, billingService)

	// ── Router ───────────────────────────────────────────
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics())
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// The bookmarklet runs on job-board pages, so any origin may call it
	r.Use(routeCORS("/bookmarklet/",
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "X-Bookmarklet-Token"},
			MaxAge:          12 * time.Hour,
		}),
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	))

	// Health check (unauthenticated)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "applytrack-api",
			"ai":      aiService.ProviderName(),
			"billing": billingService.Enabled(),
			"time":    time.Now().UTC(),
		})
	})

	r.Static("/uploads", uploads.Root())
	r.POST("/billing/webhook", billingHandler.HandleWebhook)

	cron := r.Group("/cron", middleware.CronSecret(cfg.CronSecret))
	{
		cron.POST("/scan", cronHandler.Scan)
		cron.POST("/reminders", cronHandler.Reminders)
	}

	r.POST("/bookmarklet/capture", rateLimiter.Limit(), middleware.BookmarkletToken(userRepo), bookmarkletHandler.Capture)

	// ── Authenticated Routes ─────────────────────────────
	api := r.Group("/", authMiddleware.Authenticate(), middleware.ResolveUser(userRepo), rateLimiter.Limit())
	{
		// Auth & profile
		api.POST("/auth/google", authHandler.GoogleSignIn)
		api.GET("/profile", profileHandler.GetProfile)
		api.PUT("/profile", profileHandler.UpdateProfile)

		// Settings
		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Update)
		api.GET("/settings/bookmarklet", settingsHandler.Bookmarklet)
		api.POST("/settings/bookmarklet/rotate", settingsHandler.RotateBookmarklet)

		// Dashboard
		api.GET("/dashboard/summary", dashHandler.Summary)

		// Applications
		api.GET("/applications", appHandler.List)
		api.POST("/applications", appHandler.Create)
		api.GET("/applications/:id", appHandler.Get)
		api.PUT("/applications/:id", appHandler.Update)
		api.DELETE("/applications/:id", appHandler.Delete)
		api.PUT("/applications/:id/status", appHandler.UpdateStatus)
		api.GET("/applications/:id/history", appHandler.History)
		api.POST("/applications/:id/archive", appHandler.Archive)
		api.POST("/applications/:id/unarchive", appHandler.Unarchive)
		api.GET("/applications/:id/interviews", interviewHandler.ListForApplication)
		api.POST("/applications/:id/interviews", interviewHandler.Create)

		// Opportunities
		api.GET("/opportunities", oppHandler.List)
		api.POST("/opportunities", oppHandler.Create)
		api.GET("/opportunities/:id", oppHandler.Get)
		api.PUT("/opportunities/:id/status", oppHandler.UpdateStatus)
		api.POST("/opportunities/:id/score", oppHandler.Score)
		api.POST("/opportunities/:id/apply", oppHandler.Apply)
		api.DELETE("/opportunities/:id", oppHandler.Delete)

		// Interviews
		api.GET("/interviews", interviewHandler.List)
		api.GET("/interviews/:id", interviewHandler.Get)
		api.PUT("/interviews/:id", interviewHandler.Update)
		api.DELETE("/interviews/:id", interviewHandler.Delete)
		api.POST("/interviews/:id/interviewers", interviewHandler.AddInterviewer)
		api.DELETE("/interviews/:id/interviewers/:interviewerId", interviewHandler.RemoveInterviewer)

		// Follow-ups
		api.GET("/follow-ups", followUpHandler.List)
		api.POST("/follow-ups", followUpHandler.Create)
		api.PUT("/follow-ups/:id", followUpHandler.Update)
		api.DELETE("/follow-ups/:id", followUpHandler.Delete)
		api.POST("/follow-ups/:id/complete", followUpHandler.Complete)

		// Contacts
		api.GET("/contacts", contactHandler.List)
		api.POST("/contacts", contactHandler.Create)
		api.POST("/contacts/import", contactHandler.Import)
		api.PUT("/contacts/:id", contactHandler.Update)
		api.DELETE("/contacts/:id", contactHandler.Delete)

		// Resumes
		api.GET("/resumes", resumeHandler.List)
		api.POST("/resumes", resumeHandler.Upload)
		api.GET("/resumes/:id", resumeHandler.Get)
		api.DELETE("/resumes/:id", resumeHandler.Delete)
		api.POST("/resumes/:id/primary", resumeHandler.SetPrimary)
		api.POST("/resumes/:id/extract-profile", resumeHandler.ExtractProfile)
		api.POST("/resumes/:id/tailor", requirePro, resumeHandler.Tailor)

		// Cover letters
		api.GET("/cover-letters", letterHandler.List)
		api.POST("/cover-letters/generate", requirePro, letterHandler.Generate)
		api.GET("/cover-letters/:id", letterHandler.Get)
		api.PUT("/cover-letters/:id", letterHandler.Update)
		api.DELETE("/cover-letters/:id", letterHandler.Delete)

		// Skills
		api.GET("/skills", skillHandler.List)
		api.POST("/skills", skillHandler.Create)
		api.PUT("/skills/:id", skillHandler.Update)
		api.DELETE("/skills/:id", skillHandler.Delete)
		api.GET("/skill-categories", skillHandler.ListCategories)
		api.POST("/skill-categories", skillHandler.CreateCategory)
		api.PUT("/skill-categories/:id", skillHandler.UpdateCategory)
		api.DELETE("/skill-categories/:id", skillHandler.DeleteCategory)

		// Sources & scans
		api.GET("/sources", sourceHandler.List)
		api.POST("/sources", sourceHandler.Create)
		api.POST("/sources/scan", sourceHandler.Scan)
		api.GET("/sources/runs", sourceHandler.Runs)
		api.PUT("/sources/:id", sourceHandler.Update)
		api.DELETE("/sources/:id", sourceHandler.Delete)

		// Alerts
		api.GET("/alerts", alertHandler.List)
		api.POST("/alerts/read-all", alertHandler.MarkAllRead)
		api.POST("/alerts/:id/read", alertHandler.MarkRead)
		api.DELETE("/alerts/:id", alertHandler.Delete)

		// Billing
		api.GET("/billing/subscription", billingHandler.GetSubscription)
		api.POST("/billing/checkout", billingHandler.CreateCheckout)
		api.POST("/billing/portal", billingHandler.CreatePortal)
	}

	// ── Server ───────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("ApplyTrack API server running")

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()
	rateLimiter.Close()
	bus.WaitAsync()

	log.Info().Msg("Server stopped")
}

// routeCORS applies open CORS under prefix and the app's CORS policy elsewhere.
// It runs globally so preflights for unmatched routes still get headers.
func routeCORS(prefix string, open, app gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			open(c)
			return
		}
		app(c)
	}
}
