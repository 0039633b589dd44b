package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/robalyx/socialgraph/internal/database"
	"github.com/robalyx/socialgraph/internal/database/migrations"
	"github.com/robalyx/socialgraph/internal/export"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/graph/memory"
	"github.com/robalyx/socialgraph/internal/redis"
	"github.com/robalyx/socialgraph/internal/setup/config"
	"github.com/robalyx/socialgraph/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config        *config.Config       // Application configuration
	Logger        *zap.Logger          // Main application logger
	DBLogger      *zap.Logger          // Database-specific logger
	DB            database.Client      // Database connection pool (nil for the memory backend)
	Store         graph.Store          // Member and mention storage
	RedisManager  *redis.Manager       // Redis connection manager
	Exporter      *export.Exporter     // Graph file writer
	Pseudonymizer *graph.Pseudonymizer // Anonymous id mapping (nil when anonymous mode is off)
	Engine        *graph.Engine        // Mention graph engine
	LogManager    *telemetry.Manager   // Log management system
	tracing       bool
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	tracing := setupTracing(&cfg.Common.Tracing, logger)

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Storage backend holds members and mentions
	var (
		db    database.Client
		store graph.Store
	)

	switch cfg.Common.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory storage, the graph is lost on restart")

		store = memory.NewStore()
	default:
		db, err = checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
		if err != nil {
			return nil, err
		}

		store = db.Store()
	}

	// Anonymous mode requires a valid secret; a bad secret must stop startup
	var pseudonymizer *graph.Pseudonymizer

	if cfg.Bot.Graph.PseudonymSecret != "" {
		pseudonymizer, err = graph.NewPseudonymizer(cfg.Bot.Graph.PseudonymSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pseudonymizer: %w", err)
		}
	} else {
		logger.Info("No pseudonym secret configured, anonymous mode is disabled")
	}

	exporter, err := export.New(export.Config{
		OutputDir: cfg.Bot.Export.OutputDir,
		Formats:   cfg.Bot.Export.Formats,
		Minify:    cfg.Bot.Export.Minify,
	}, logger)
	if err != nil {
		return nil, err
	}

	engine := graph.NewEngine(store, exporter, pseudonymizer, graph.Config{
		Policy: graph.Policy{
			AutoOptIn:     cfg.Bot.Graph.AutoOptIn,
			DeleteOnLeave: cfg.Bot.Graph.DeleteOnLeave,
		},
		Threshold:      cfg.Bot.Graph.Threshold,
		AnonymousLabel: cfg.Bot.Graph.AnonymousLabel,
	}, logger)

	// Bundle all initialized components
	return &App{
		Config:        cfg,
		Logger:        logger,
		DBLogger:      dbLogger.Named("database"),
		DB:            db,
		Store:         store,
		RedisManager:  redisManager,
		Exporter:      exporter,
		Pseudonymizer: pseudonymizer,
		Engine:        engine,
		LogManager:    logManager,
		tracing:       tracing,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Flush pending spans
	if s.tracing {
		if err := uptrace.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown tracing", zap.Error(err))
		}
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// setupTracing configures the OpenTelemetry exporter when a DSN is set.
func setupTracing(cfg *config.Tracing, logger *zap.Logger) bool {
	if cfg.UptraceDSN == "" {
		return false
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(config.RepositoryVersion),
	)

	logger.Info("Tracing enabled", zap.String("service_name", cfg.ServiceName))

	return true
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	// A fresh database has no migration tables yet
	if err := migrator.Init(ctx); err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	unapplied := ms.Unapplied()
	if len(unapplied) == 0 {
		return tempDB, nil
	}

	log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		tempDB.Close()
		return nil, fmt.Errorf("%w: %d pending", ErrMigrationsPending, len(unapplied))
	}

	tempDB.Close()

	return database.NewConnection(ctx, cfg, dbLogger, true)
}
