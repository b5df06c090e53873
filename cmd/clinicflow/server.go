package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/mailer"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/tracer"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const metricsNamespace = "clinicflow"

// app holds the wired service graph shared by serve and seed-admin.
type app struct {
	auth     *service.AuthService
	audit    *service.AuditService
	handlers v1.Handlers
	metrics  *metrics.Collector
}

func newApp(cfg *config.Config, log *zap.Logger, db *gorm.DB, rdb *redis.Client) *app {
	var revoked auth.RevocationStore
	if rdb != nil {
		revoked = auth.NewRedisRevocationStore(rdb)
	} else {
		log.Warn("redis disabled, token revocation is process-local")
		revoked = auth.NewMemoryRevocationStore()
	}

	collector := metrics.NewCollector(metricsNamespace, prometheus.DefaultRegisterer)
	loc := cfg.App.Location()

	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	professionalRepo := postgres.NewProfessionalRepository(db)
	secretaryRepo := postgres.NewSecretaryRepository(db)
	staffWriter := postgres.NewStaffWriter(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)

	scopes := service.NewAccessResolver(appointmentRepo, secretaryRepo)
	auditSvc := service.NewAuditService(auditRepo, collector, log)
	notifier := mailer.NewNotifier(mailer.New(cfg.Mail, log), loc)

	authSvc := service.NewAuthService(
		userRepo,
		service.NewStaffLookup(professionalRepo, secretaryRepo),
		auth.NewJWTManager(cfg.JWT),
		revoked,
		auditSvc,
		cfg.App.Name,
		log,
	)
	staffSvc := service.NewStaffService(userRepo, staffWriter, professionalRepo, secretaryRepo, scopes, auditSvc, log)
	patientSvc := service.NewPatientService(patientRepo, scopes, auditSvc, collector, log)
	appointmentSvc := service.NewAppointmentService(
		appointmentRepo, patientRepo, professionalRepo, scopes, notifier, auditSvc, collector, log,
	)
	historySvc := service.NewHistoryService(historyRepo, patientRepo, scopes, auditSvc, log)
	prescriptionSvc := service.NewPrescriptionService(
		prescriptionRepo, patientRepo, appointmentRepo, scopes, auditSvc, collector, log,
	)
	inventorySvc := service.NewInventoryService(inventoryRepo, scopes, cfg.Inventory.CodeScope, auditSvc, collector, log)
	dashboardSvc := service.NewDashboardService(
		patientRepo, professionalRepo, secretaryRepo, historyRepo, appointmentRepo, inventoryRepo, scopes, loc,
	)

	return &app{
		auth:    authSvc,
		audit:   auditSvc,
		metrics: collector,
		handlers: v1.Handlers{
			Auth:         v1.NewAuthHandler(authSvc),
			Staff:        v1.NewStaffHandler(staffSvc),
			Patients:     v1.NewPatientHandler(patientSvc),
			Appointments: v1.NewAppointmentHandler(appointmentSvc),
			Clinical:     v1.NewClinicalHandler(historySvc, prescriptionSvc),
			Inventory:    v1.NewInventoryHandler(inventorySvc),
			Dashboard:    v1.NewDashboardHandler(dashboardSvc),
		},
	}
}

// close drains the audit queue.
func (a *app) close() {
	a.audit.Shutdown()
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("initialising tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	if err := database.Migrate(db, cfg.Inventory.CodeScope, log); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	}

	a := newApp(cfg, log, db, rdb)
	defer a.close()

	router := v1.NewRouter(v1.RouterConfig{
		App:           cfg.App,
		CORS:          cfg.CORS,
		RateLimit:     cfg.RateLimit,
		Authenticator: a.auth,
		Metrics:       a.metrics,
		Gatherer:      prometheus.DefaultGatherer,
		Ready:         readyCheck(db, rdb),
		Log:           log,
	}, a.handlers)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func readyCheck(db *gorm.DB, rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
