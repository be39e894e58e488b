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
	_ "time/tzdata"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"municipal-portal/internal/audit"
	"municipal-portal/internal/auth"
	"municipal-portal/internal/config"
	ledgerapp "municipal-portal/internal/ledger/application"
	ledger "municipal-portal/internal/ledger/domain"
	"municipal-portal/internal/ledger/infrastructure/memory"
	"municipal-portal/internal/ledger/infrastructure/postgres"
	ledgerhttp "municipal-portal/internal/ledger/interfaces"
	"municipal-portal/internal/logging"
	"municipal-portal/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatalf("billing timezone error: %v", err)
	}

	var (
		store       ledger.Store
		auditLogger audit.Logger = audit.NewLogLogger(logger)
		db          *sql.DB
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.Store.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		store = postgres.NewStore(db)
		auditLogger = audit.NewRepository(db)
	case config.DriverMemory:
		mem := memory.NewStore()
		if cfg.Store.SeedFile != "" {
			mem, err = memory.LoadFile(cfg.Store.SeedFile, loc)
			if err != nil {
				logger.Fatalf("seed load error: %v", err)
			}
		} else {
			logger.Warn("memory store started without a seed file")
		}
		store = mem
	}
	metrics.Init(db, logger)

	calculator, err := ledgerapp.NewCalculator(store)
	if err != nil {
		logger.Fatalf("calculator error: %v", err)
	}
	aggregator, err := ledgerapp.NewAggregator(store, logger)
	if err != nil {
		logger.Fatalf("aggregator error: %v", err)
	}
	assembler, err := ledgerapp.NewAssembler(store, logger, ledgerapp.WithBillingLocation(loc))
	if err != nil {
		logger.Fatalf("assembler error: %v", err)
	}
	years, err := ledgerapp.NewYearSummarizer(store, loc, nil)
	if err != nil {
		logger.Fatalf("year summarizer error: %v", err)
	}
	sweep, err := ledgerapp.NewConsistencySweep(store, aggregator, logger, loc)
	if err != nil {
		logger.Fatalf("consistency sweep error: %v", err)
	}

	statementHandler, err := ledgerhttp.NewStatementHandler(assembler, calculator, years, logger,
		ledgerhttp.WithLocation(loc),
		ledgerhttp.WithTimeout(cfg.Billing.StatementTimeout),
		ledgerhttp.WithAuditLogger(auditLogger),
		ledgerhttp.WithAuthorizer(auth.OwnerOrStaff{}),
	)
	if err != nil {
		logger.Fatalf("statement handler error: %v", err)
	}
	sweepHandler, err := ledgerhttp.NewSweepHandler(sweep, logger, loc)
	if err != nil {
		logger.Fatalf("sweep handler error: %v", err)
	}

	var scheduler *ledgerapp.Scheduler
	if cfg.Sweep.Schedule != "" {
		scheduler, err = ledgerapp.NewScheduler(cfg.Sweep.Schedule, sweep, logger, loc, cfg.Sweep.Timeout)
		if err != nil {
			logger.Fatalf("sweep scheduler error: %v", err)
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Sweep.Schedule).Info("consistency sweep scheduled")
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), policy)

	router := mux.NewRouter()
	statementHandler.Register(router)
	sweepHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders: []string{logging.RequestIDHeader, "Content-Disposition"},
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           logging.Middleware(corsMiddleware.Handler(authMiddleware.Wrap(router)), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     cfg.HTTP.Addr,
			"store":    cfg.Store.Driver,
			"timezone": loc.String(),
		}).Info("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("consistency sweep still running at shutdown")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown error")
	}
}
