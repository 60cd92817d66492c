package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hrportal/internal/domain/attendance"
	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/fuel"
	"hrportal/internal/domain/leave"
	"hrportal/internal/domain/notifications"
	"hrportal/internal/domain/overtime"
	"hrportal/internal/domain/users"
	"hrportal/internal/platform/config"
	"hrportal/internal/platform/crypto"
	"hrportal/internal/platform/db"
	"hrportal/internal/platform/email"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
	"hrportal/internal/platform/realtime"
	"hrportal/internal/platform/telemetry"
	"hrportal/internal/transport/http/api"
	attendancehandler "hrportal/internal/transport/http/handlers/attendance"
	audithandler "hrportal/internal/transport/http/handlers/audit"
	authhandler "hrportal/internal/transport/http/handlers/auth"
	fuelhandler "hrportal/internal/transport/http/handlers/fuel"
	leavehandler "hrportal/internal/transport/http/handlers/leave"
	notificationshandler "hrportal/internal/transport/http/handlers/notifications"
	overtimehandler "hrportal/internal/transport/http/handlers/overtime"
	usershandler "hrportal/internal/transport/http/handlers/users"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

// Services are the collaborators the router dispatches to.
type Services struct {
	Auth          authhandler.AuthService
	Users         usershandler.Directory
	Leave         leavehandler.Workflow
	Attendance    attendancehandler.Tracker
	Overtime      overtimehandler.Claims
	Fuel          fuelhandler.Requisitions
	Notifications notificationshandler.Inbox
	Auditor       shared.Auditor
	AuditTrail    audithandler.Trail
	Idempotency   middleware.IdempotencyKeys
	Hub           *realtime.Hub
	Metrics       *metrics.Collector
	Ready         func(ctx context.Context) error
}

func NewRouter(cfg config.Config, svc Services) http.Handler {
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(svc.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := svc.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.With(middleware.RequireAuth, middleware.RequirePermission(auth.PermSystemAdmin, perms)).
		Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, svc.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})

	if svc.Hub != nil {
		router.Get("/ws", svc.Hub.ServeWs(cfg.JWTSecret))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.RouteRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(svc.Auth, svc.Users, cfg.IsProduction()).RegisterRoutes(r)
		usershandler.NewHandler(svc.Users, perms, svc.Auditor).RegisterRoutes(r)
		leavehandler.NewHandler(svc.Leave, perms, svc.Auditor, svc.Idempotency).RegisterRoutes(r)
		attendancehandler.NewHandler(svc.Attendance, perms, svc.Auditor, cfg.AttendanceAllowedIPs).RegisterRoutes(r)
		overtimehandler.NewHandler(svc.Overtime, perms, svc.Auditor).RegisterRoutes(r)
		fuelhandler.NewHandler(svc.Fuel, perms, svc.Auditor).RegisterRoutes(r)
		notificationshandler.NewHandler(svc.Notifications).RegisterRoutes(r)
		audithandler.NewHandler(svc.AuditTrail, perms).RegisterRoutes(r)
	})

	return router
}

// Run wires the application against Postgres and serves until ctx is
// cancelled or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, cfg config.Config) error {
	shutdownTelemetry := telemetry.Setup(ctx, cfg)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	box, err := crypto.NewBox(cfg.DataEncryptionKey)
	if err != nil {
		return err
	}

	collector := metrics.New()
	hub := realtime.NewHub(cfg.CORSAllowedOrigins)
	worker := jobs.New(pool, collector, cfg.NotificationQueueSize)
	mailer := email.New(cfg)

	usersSvc := users.NewService(users.NewStore(pool))
	notifySvc := notifications.New(notifications.NewStore(pool), hub, mailer, usersSvc, worker, collector)
	leaveSvc := leave.NewService(leave.NewStore(pool), usersSvc, notifySvc)
	attendanceSvc := attendance.NewService(attendance.NewStore(pool), usersSvc, hub)
	overtimeSvc := overtime.NewService(overtime.NewStore(pool), notifySvc)
	fuelSvc := fuel.NewService(fuel.NewStore(pool), notifySvc)
	authSvc := auth.NewService(auth.NewStore(pool), mailer, box, cfg.JWTSecret, cfg.JWTTTL)
	auditSvc := audit.New(pool)

	worker.Every(jobs.JobOTPCleanup, cfg.OTPCleanupInterval, func(ctx context.Context) (any, error) {
		purged, err := authSvc.PurgeExpiredOTPs(ctx)
		return map[string]int64{"purged": purged}, err
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(runCtx)
	worker.Start(runCtx)

	router := NewRouter(cfg, Services{
		Auth:          authSvc,
		Users:         usersSvc,
		Leave:         leaveSvc,
		Attendance:    attendanceSvc,
		Overtime:      overtimeSvc,
		Fuel:          fuelSvc,
		Notifications: notifySvc,
		Auditor:       auditSvc,
		AuditTrail:    auditSvc,
		Idempotency:   middleware.NewIdempotencyStore(pool),
		Hub:           hub,
		Metrics:       collector,
		Ready:         pool.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hr portal listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-runCtx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
