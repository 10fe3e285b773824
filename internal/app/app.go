// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/electromart/notification-service/internal/config"
	"github.com/electromart/notification-service/internal/notifications"
	"github.com/electromart/notification-service/internal/notifications/email"
	notificationspostgres "github.com/electromart/notification-service/internal/notifications/postgres"
	"github.com/electromart/notification-service/internal/notifications/push"
	"github.com/electromart/notification-service/internal/notifications/sms"
	"github.com/electromart/notification-service/internal/pkg/ctxlog"
	"github.com/electromart/notification-service/internal/pkg/httputil"
	"github.com/electromart/notification-service/internal/pkg/metrics"
	"github.com/electromart/notification-service/internal/pkg/postgres"
	"github.com/electromart/notification-service/internal/users"
	"github.com/electromart/notification-service/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config         *config.Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	server         *http.Server
	metricsServer  *http.Server
	metricsCancel  context.CancelFunc
	deliveryWorker *notifications.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, deliveryWorker, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.deliveryWorker = deliveryWorker

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the delivery worker first so no dispatch races the pool close
	if a.deliveryWorker != nil {
		a.deliveryWorker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectStatusMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			counts, err := repo.CountByStatus(ctx)
			if err != nil {
				slog.Error("failed to count notifications by status", "error", err)
				continue
			}
			notifications.RecordStatusCounts(counts)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// DeliveryWorker returns the delivery worker instance. Used in tests
// to access worker state.
func (a *App) DeliveryWorker() *notifications.Worker {
	return a.deliveryWorker
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *notifications.Worker, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	repo := notificationspostgres.NewRepository(a.db)
	prefsRepo := notificationspostgres.NewPreferenceRepository(a.db)
	gate := notifications.NewGate(prefsRepo)
	renderer := notifications.NewRenderer()

	emailSender, err := email.NewSender(email.Config{
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
		DialTimeout:  a.config.Notifications.Email.DialTimeout,
	}, renderer)
	if err != nil {
		return nil, nil, fmt.Errorf("create email sender: %w", err)
	}

	smsSender, err := sms.NewSender(sms.Config{
		APIURL:     a.config.Notifications.SMS.APIURL,
		AccountSID: a.config.Notifications.SMS.AccountSID,
		AuthToken:  a.config.Notifications.SMS.AuthToken,
		FromNumber: a.config.Notifications.SMS.FromNumber,
		RateLimit:  a.config.Notifications.SMS.RateLimit,
		Timeout:    a.config.Notifications.SMS.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create sms sender: %w", err)
	}

	dispatcher := notifications.NewDispatcher(emailSender, smsSender, push.NewSender())

	userClient, err := users.NewClient(users.Config{
		BaseURL: a.config.UserService.BaseURL,
		Timeout: a.config.UserService.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create user service client: %w", err)
	}

	orchestrator := notifications.NewOrchestrator(repo, dispatcher, userClient, notifications.RetryConfig{
		MaxRetries:  a.config.Notifications.MaxRetries,
		BackoffUnit: a.config.Notifications.BackoffUnit,
		MaxBackoff:  a.config.Notifications.MaxBackoff,
	})

	worker := notifications.NewWorker(notifications.WorkerConfig{
		NumWorkers: a.config.Notifications.Worker.NumWorkers,
		QueueSize:  a.config.Notifications.Worker.QueueSize,
	}, repo, orchestrator)
	worker.Start(ctx)

	go a.collectStatusMetrics(ctx, repo)

	service := notifications.NewService(repo, prefsRepo, gate, worker, a.config.Notifications.MaxRetries)
	handler := notifications.NewHandler(service)

	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return r, worker, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
