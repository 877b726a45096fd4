package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/metrocheck/crb-service/internal"
	"github.com/metrocheck/crb-service/internal/auth"
	"github.com/metrocheck/crb-service/internal/core/events"
	"github.com/metrocheck/crb-service/internal/entitlement"
	entitlementpg "github.com/metrocheck/crb-service/internal/entitlement/postgres"
	"github.com/metrocheck/crb-service/internal/gateway"
	"github.com/metrocheck/crb-service/internal/lender"
	lenderpg "github.com/metrocheck/crb-service/internal/lender/postgres"
	"github.com/metrocheck/crb-service/internal/observability"
	"github.com/metrocheck/crb-service/internal/payment"
	paymentpg "github.com/metrocheck/crb-service/internal/payment/postgres"
	"github.com/metrocheck/crb-service/internal/report"
	reportpg "github.com/metrocheck/crb-service/internal/report/postgres"
	"github.com/metrocheck/crb-service/internal/transport/rest"
	"github.com/metrocheck/crb-service/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	GormDB   *gorm.DB
	Router   *chi.Mux
	Handlers rest.Handlers
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Config, deps.Handlers, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	bus := events.NewEventBus(lg)
	observability.RegisterEventHandlers(bus)

	gatewayClient := gateway.NewClient(config.Gateway, lg)

	grantRepo := entitlementpg.NewGrantRepository(gormDB)
	entitlementService := entitlement.NewService(grantRepo, lg)

	paymentRepo := paymentpg.NewPaymentRepository(gormDB)
	paymentService := payment.NewService(paymentRepo, gatewayClient, entitlementService, bus, lg)
	verifier := payment.NewSignatureVerifier(config.Webhook)

	reportRepo := reportpg.NewReportRepository(gormDB)
	reportService := report.NewService(reportRepo, entitlementService, lg)

	lenderRepo := lenderpg.NewConnectionRepository(gormDB)
	lenderService := lender.NewService(lenderRepo, entitlementService, lg)

	authService := auth.NewService(config.Security)

	handlers := rest.Handlers{
		Auth:        auth.NewHandler(authService),
		Payment:     payment.NewHandler(paymentService),
		Webhook:     payment.NewWebhookHandler(paymentService, verifier),
		Entitlement: entitlement.NewHandler(entitlementService, paymentService),
		Report:      report.NewHandler(reportService),
		Lender:      lender.NewHandler(lenderService),
	}

	return &Dependencies{
		Config:   config,
		DB:       db,
		GormDB:   gormDB,
		Router:   chi.NewRouter(),
		Handlers: handlers,
		Logger:   lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
