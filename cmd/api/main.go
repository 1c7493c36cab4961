package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fieldserve/booking-api/internal/config"
	bookingHandler "github.com/fieldserve/booking-api/internal/handler/booking"
	draftHandler "github.com/fieldserve/booking-api/internal/handler/draft"
	healthHandler "github.com/fieldserve/booking-api/internal/handler/health"
	technicianHandler "github.com/fieldserve/booking-api/internal/handler/technician"
	"github.com/fieldserve/booking-api/internal/middleware"
	"github.com/fieldserve/booking-api/internal/reminder"
	"github.com/fieldserve/booking-api/internal/repository/postgres"
	"github.com/fieldserve/booking-api/internal/router"
	assignmentService "github.com/fieldserve/booking-api/internal/service/assignment"
	availabilityService "github.com/fieldserve/booking-api/internal/service/availability"
	bookingService "github.com/fieldserve/booking-api/internal/service/booking"
	catalogService "github.com/fieldserve/booking-api/internal/service/catalog"
	draftService "github.com/fieldserve/booking-api/internal/service/draft"
	eventService "github.com/fieldserve/booking-api/internal/service/event"
	"github.com/fieldserve/booking-api/pkg/logger"
	"github.com/fieldserve/booking-api/pkg/metrics"
	"github.com/fieldserve/booking-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics(cfg.Metrics.Namespace)

	db, err := postgres.NewDB(postgres.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	draftRepo := postgres.NewDraftRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	technicianRepo := postgres.NewTechnicianRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	redisOpt, err := asynq.ParseRedisURI(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse Redis URL")
	}
	reminderScheduler := reminder.NewAsynqScheduler(redisOpt.(asynq.RedisClientOpt), appMetrics)

	availabilitySvc := availabilityService.NewService(slotRepo, bookingRepo)
	assignmentSvc := assignmentService.NewService(technicianRepo, bookingRepo, availabilitySvc, appMetrics)
	catalogSvc := catalogService.NewService(catalogRepo)
	eventSvc := eventService.NewService(outboxRepo)
	bookingSvc := bookingService.NewService(
		bookingService.Config{
			CancellationWindow: cfg.Booking.CancellationWindow,
			ReminderLead:       cfg.Booking.ReminderLead,
		},
		bookingRepo,
		technicianRepo,
		userRepo,
		catalogSvc,
		availabilitySvc,
		eventSvc,
		reminderScheduler,
		appMetrics,
		appLogger,
	)
	draftSvc := draftService.NewService(
		draftService.Config{TTL: cfg.Booking.DraftTTL},
		draftRepo,
		userRepo,
		catalogSvc,
		assignmentSvc,
		availabilitySvc,
		bookingSvc,
		appMetrics,
		appLogger,
	)

	v := validator.New()
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		technicianHandler.NewHandler(availabilitySvc),
		draftHandler.NewHandler(draftSvc, v),
		bookingHandler.NewHandler(bookingSvc, v),
		router.Config{
			RateLimit: rate.Limit(cfg.Server.RateLimit),
			RateBurst: cfg.Server.RateBurst,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
