package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"meetsched-service/internal/app"
	"meetsched-service/internal/config"
	"meetsched-service/internal/gcal"
	"meetsched-service/internal/notify"
	"meetsched-service/internal/scheduling"
	"meetsched-service/internal/server"
	"meetsched-service/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	pool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := storage.NewStore(pool)

	calClient := gcal.New(gcal.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, store, logger)
	if !calClient.Configured() {
		logger.Info("google calendar integration disabled")
	}

	var sender notify.Sender
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	mailer := notify.NewMailer(sender, logger)

	engine := scheduling.NewEngine(store, store, store, store, calClient, logger,
		scheduling.WithSlotStep(cfg.SlotStep))
	booker := scheduling.NewBooker(store, store, store, calClient, mailer, logger)

	reminders := notify.NewReminderScheduler(store, mailer, logger)
	if err := reminders.Start(); err != nil {
		logger.Error("reminder scheduler failed to start", "err", err)
		os.Exit(1)
	}
	defer reminders.Stop()

	var limiter app.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		limiter = app.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
	} else {
		limiter = app.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	a := &app.App{
		Store:    store,
		Engine:   engine,
		Booker:   booker,
		Calendar: calClient,
		Logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(app.RateLimitMiddleware(limiter, logger))

	// OAuth2 callback and the booking page are public.
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)
	router.GET("/public/:username", a.PublicProfileHandler)

	api := router.Group("/api")
	api.Use(app.AuthMiddleware(cfg.JWTSecret, cfg.StaticTokens))
	{
		users := api.Group("/users")
		{
			users.POST("/:id/availability", a.ReplaceAvailabilityHandler)
			users.GET("/:id/availability", a.ListAvailabilityHandler)
			users.POST("/:id/meeting-types", a.CreateMeetingTypeHandler)
			users.GET("/:id/meeting-types", a.ListMeetingTypesHandler)
			users.PUT("/:id/meeting-types/:mt_id", a.UpdateMeetingTypeHandler)
			users.DELETE("/:id/meeting-types/:mt_id", a.DeleteMeetingTypeHandler)
			users.GET("/:id/meeting-types/:mt_id/slots", a.GetSlotsHandler)
			users.POST("/:id/meeting-types/:mt_id/bookings", a.CreateBookingHandler)
			users.GET("/:id/bookings", a.ListBookingsHandler)
			users.DELETE("/:id/bookings/:booking_id", a.CancelBookingHandler)
		}

		calendar := api.Group("/calendar")
		{
			calendar.GET("/auth", a.GoogleAuthHandler)
		}
	}

	if err := server.Run(ctx, router, cfg.Port, logger); err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}
