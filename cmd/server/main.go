package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/client"
	"github.com/alawael/be-rehab-core/internal/config"
	"github.com/alawael/be-rehab-core/internal/database"
	"github.com/alawael/be-rehab-core/internal/handler"
	"github.com/alawael/be-rehab-core/internal/repository"
	"github.com/alawael/be-rehab-core/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := newLogger(cfg)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting rehabilitation core service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	workflowRepo := repository.NewWorkflowRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	delegateRepo := repository.NewDelegateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)

	// Connect NATS for notification fan-out (optional; notifications degrade
	// to stored-only when disabled or unreachable)
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notifications will be stored but not published")
		} else {
			defer nc.Drain()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}

	notifier := client.NewNotificationDispatcher(notificationRepo, nc, log)

	// Initialize services
	approvalService := service.NewApprovalService(workflowRepo, requestRepo, delegateRepo, notifier, log)
	assessmentService := service.NewAssessmentService(assessmentRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, log)

	// Background expiry sweep over pending approval requests
	go func() {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := approvalService.ProcessExpiredRequests(ctx); err != nil {
					log.Error().Err(err).Msg("Expiry sweep failed")
				}
			}
		}
	}()

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, assessmentService, notificationService, log)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("POST /api/v1/workflows", httpHandler.CreateWorkflow)

	mux.HandleFunc("POST /api/v1/approvals/submit", httpHandler.SubmitRequest)
	mux.HandleFunc("POST /api/v1/approvals/approve", httpHandler.ApproveRequest)
	mux.HandleFunc("POST /api/v1/approvals/reject", httpHandler.RejectRequest)
	mux.HandleFunc("POST /api/v1/approvals/delegate", httpHandler.DelegateApproval)
	mux.HandleFunc("POST /api/v1/approvals/cancel", httpHandler.CancelRequest)
	mux.HandleFunc("GET /api/v1/approvals/get", httpHandler.GetRequest)
	mux.HandleFunc("GET /api/v1/approvals/pending", httpHandler.GetPending)
	mux.HandleFunc("GET /api/v1/approvals/history", httpHandler.GetHistory)

	mux.HandleFunc("POST /api/v1/delegations", httpHandler.GrantDelegation)
	mux.HandleFunc("POST /api/v1/delegations/revoke", httpHandler.RevokeDelegation)

	mux.HandleFunc("GET /api/v1/notifications", httpHandler.ListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/read", httpHandler.MarkNotificationRead)

	mux.HandleFunc("POST /api/v1/assessments/score", httpHandler.ScoreAssessment)
	mux.HandleFunc("POST /api/v1/assessments", httpHandler.CreateAssessment)
	mux.HandleFunc("GET /api/v1/assessments/get", httpHandler.GetAssessment)
	mux.HandleFunc("GET /api/v1/assessments", httpHandler.ListAssessments)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// newLogger builds the service logger: console output in development, JSON
// elsewhere.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Service.Environment == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out})
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", cfg.Service.Name).
		Logger()
}
