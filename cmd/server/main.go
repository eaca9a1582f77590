package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"afyacal/internal/agent"
	"afyacal/internal/config"
	"afyacal/internal/consultation"
	"afyacal/internal/intake"
	"afyacal/internal/platform/kafka"
	"afyacal/internal/platform/logging"
	"afyacal/internal/platform/scheduler"
	"afyacal/internal/platform/telegram"
	"afyacal/internal/report"
	"afyacal/internal/triage"
)

// aiClient is what both the triage and consultation services need from the
// generative backend.
type aiClient interface {
	triage.AIClient
	consultation.Summarizer
}

type publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

func main() {
	config.LoadEnv()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Infrastructure
	db := connectDB(cfg.DatabaseURL, logger)
	if db != nil {
		defer db.Close()
		runMigrations(cfg.MigrationsPath, cfg.DatabaseURL, logger)
	}

	var events publisher
	if cfg.KafkaBroker != "" {
		producer := kafka.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, logger)
		defer producer.Close()
		events = producer
		logger.WithField("Topic", cfg.KafkaTopic).Info("Publishing lifecycle events to Kafka")
	}

	// 2. Clients
	ai, err := newAIClient(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create AI client")
	}

	var reports consultation.ReportSender
	if cfg.TelegramToken != "" {
		if cfg.DoctorChatID == 0 {
			logger.Warn("DOCTOR_CHAT_ID is not set or invalid. Reports will not be sent.")
		}
		reports = report.NewService(telegram.NewClient(cfg.TelegramToken), cfg.DoctorChatID, logger)
	}

	// 3. Services
	triageRepo := triage.NewMemoryRepository()
	consultationRepo := consultation.NewMemoryRepository()
	if db != nil {
		triageRepo = triage.NewRepository(db)
		consultationRepo = consultation.NewRepository(db)
	}

	triageSvc := triage.NewService(ai, triageRepo, events, logger)
	flows := intake.NewStore()
	consultationSvc := consultation.NewService(consultationRepo, ai, reports, events, consultation.RoomConfig{
		ConnectDelay: cfg.ConnectDelay,
		ReplyDelay:   cfg.ReplyDelay,
	}, logger)

	// 4. Background sweeps
	sched := scheduler.New(logger)
	if _, err := sched.Add("sweep-intake", cfg.SweepSpec, func(context.Context) {
		if n := flows.Sweep(cfg.IntakeTTL); n > 0 {
			logger.WithField("Cancelled", n).Info("Swept abandoned intake flows")
		}
	}); err != nil {
		logger.WithError(err).Fatal("Failed to schedule intake sweep")
	}
	if _, err := sched.Add("sweep-consultations", cfg.SweepSpec, func(ctx context.Context) {
		if n := consultationSvc.Sweep(ctx, cfg.IntakeTTL); n > 0 {
			logger.WithField("Cancelled", n).Info("Swept idle consultation rooms")
		}
	}); err != nil {
		logger.WithError(err).Fatal("Failed to schedule consultation sweep")
	}
	sched.Start()

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		intake.RegisterRoutes(r, intake.NewHandler(flows, triageSvc, logger))
		consultation.RegisterRoutes(r, consultation.NewHandler(consultationSvc, logger))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("Port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	sched.Stop(shutdownCtx)
}

// connectDB returns nil when the database is unset or unreachable; the server
// then keeps records in memory.
func connectDB(dsn string, logger *logrus.Logger) *sql.DB {
	if dsn == "" {
		logger.Warn("DATABASE_URL is not set, using in-memory repositories")
		return nil
	}

	var db *sql.DB
	var err error
	// Simple retry logic for DB connection
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			logger.Info("Connected to Database.")
			return db
		}
		if db != nil {
			db.Close()
		}
		logger.WithFields(logrus.Fields{"Attempt": i + 1, "Error": err}).Info("Waiting for DB...")
		time.Sleep(time.Second)
	}

	logger.WithError(err).Warn("Could not connect to DB, using in-memory repositories")
	return nil
}

func runMigrations(path, dsn string, logger *logrus.Logger) {
	m, err := migrate.New(path, dsn)
	if err != nil {
		logger.WithError(err).Error("Migration init failed")
		return
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.WithError(err).Error("Migration up failed")
		return
	}
	logger.Info("Migrations applied successfully!")
}

func newAIClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (aiClient, error) {
	if cfg.UseMockAI {
		logger.Info("Using mock AI client")
		return agent.NewMockClient(), nil
	}
	client, err := agent.NewGeminiClient(ctx, agent.GeminiConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.ModelName,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("Model", cfg.ModelName).Info("Using Gemini client")
	return client, nil
}
