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

	"github.com/rmaulana/iam-service/internal"
	"github.com/rmaulana/iam-service/internal/accessprofile"
	accessprofilePostgres "github.com/rmaulana/iam-service/internal/accessprofile/postgres"
	"github.com/rmaulana/iam-service/internal/auth"
	authPostgres "github.com/rmaulana/iam-service/internal/auth/postgres"
	"github.com/rmaulana/iam-service/internal/core/events"
	"github.com/rmaulana/iam-service/internal/modcontrol"
	modcontrolPostgres "github.com/rmaulana/iam-service/internal/modcontrol/postgres"
	"github.com/rmaulana/iam-service/internal/permission"
	permissionPostgres "github.com/rmaulana/iam-service/internal/permission/postgres"
	"github.com/rmaulana/iam-service/internal/transport/rest"
	"github.com/rmaulana/iam-service/internal/user"
	userPostgres "github.com/rmaulana/iam-service/internal/user/postgres"
	"github.com/rmaulana/iam-service/pkg/logger"
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
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	bus := events.NewEventBus(deps.Logger)
	registerAuditSubscriber(bus, deps.Logger)

	moduleRepo := modcontrolPostgres.NewModuleRepository(deps.GormDB)
	moduleService := modcontrol.NewService(moduleRepo, deps.Logger)
	moduleHandler := modcontrol.NewHandler(moduleService)

	permissionRepo := permissionPostgres.NewPermissionRepository(deps.GormDB)
	permissionService := permission.NewService(permissionRepo, moduleService, bus, deps.Logger)
	permissionHandler := permission.NewHandler(permissionService)

	profileRepo := accessprofilePostgres.NewAccessProfileRepository(deps.GormDB)
	profileService := accessprofile.NewService(profileRepo, permissionService, moduleService, bus, deps.Logger)
	profileHandler := accessprofile.NewHandler(profileService)

	userRepo := userPostgres.NewUserRepository(deps.GormDB)
	userService := user.NewService(userRepo, bus, deps.Config.Security.BCryptCost, deps.Logger)
	userHandler := user.NewHandler(userService)

	authRepo := authPostgres.NewRepository(deps.GormDB)
	tokenGenerator := auth.NewJWTTokenGenerator(deps.Config.Security)
	authService := auth.NewService(authRepo, tokenGenerator)
	authHandler := auth.NewHandler(authService)

	rest.RegisterAllRoutes(
		deps.Router,
		deps.DB.DB,
		authHandler,
		permissionService,
		userHandler,
		profileHandler,
		permissionHandler,
		moduleHandler,
		deps.Logger,
	)
}

// registerAuditSubscriber mirrors every grant mutation event into the log so
// changes leave a trail even without an external audit sink.
func registerAuditSubscriber(bus *events.EventBus, lg *slog.Logger) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) error {
		lg.Info("audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	})
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Level, config.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}
