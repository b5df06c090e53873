package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

type Handlers struct {
	Auth         *AuthHandler
	Staff        *StaffHandler
	Patients     *PatientHandler
	Appointments *AppointmentHandler
	Clinical     *ClinicalHandler
	Inventory    *InventoryHandler
	Dashboard    *DashboardHandler
}

type RouterConfig struct {
	App       config.AppConfig
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig

	Authenticator middleware.Authenticator
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	// Ready reports whether dependencies (database, redis) are reachable.
	Ready func(ctx context.Context) error
	Log   *zap.Logger
}

// NewRouter assembles the middleware chain and every /api/v1 route.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(cfg.Log),
		middleware.Tracing(cfg.App.Name),
		middleware.Logger(cfg.Log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORS),
	)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", readiness(cfg.Ready))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.MetricsHandler(cfg.Gatherer)))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize))

	authLimit := middleware.AuthRateLimit(cfg.RateLimit.AuthRequestsPerMinute)
	requireAuth := middleware.Auth(cfg.Authenticator)
	adminOnly := middleware.RequireRoles(domain.RoleAdmin)

	public := api.Group("/auth", authLimit)
	{
		public.POST("/login", h.Auth.Login)
		public.POST("/refresh", h.Auth.Refresh)
	}

	authed := api.Group("", requireAuth)

	account := authed.Group("/auth")
	{
		account.POST("/logout", h.Auth.Logout)
		account.GET("/me", h.Auth.Me)
		account.PUT("/password", authLimit, h.Auth.ChangePassword)
		account.POST("/mfa/enroll", h.Auth.EnrollMFA)
		account.POST("/mfa/verify", authLimit, h.Auth.VerifyMFA)
	}

	professionals := authed.Group("/professionals")
	{
		professionals.POST("", adminOnly, h.Staff.CreateProfessional)
		professionals.GET("", h.Staff.ListProfessionals)
		professionals.GET("/specialties", h.Staff.Specialties)
		professionals.GET("/:id", h.Staff.GetProfessional)
		professionals.PATCH("/:id/activate", adminOnly, h.Staff.ActivateProfessional)
		professionals.PATCH("/:id/deactivate", adminOnly, h.Staff.DeactivateProfessional)
	}

	secretaries := authed.Group("/secretaries")
	{
		secretaries.POST("", adminOnly, h.Staff.CreateSecretary)
		secretaries.GET("", h.Staff.ListSecretaries)
		secretaries.GET("/:id", h.Staff.GetSecretary)
		secretaries.POST("/:id/professionals/:professionalId", adminOnly, h.Staff.LinkSecretary)
		secretaries.DELETE("/:id/professionals/:professionalId", adminOnly, h.Staff.UnlinkSecretary)
		secretaries.PATCH("/:id/activate", adminOnly, h.Staff.ActivateSecretary)
		secretaries.PATCH("/:id/deactivate", adminOnly, h.Staff.DeactivateSecretary)
	}

	patients := authed.Group("/patients")
	{
		patients.POST("", h.Patients.Create)
		patients.GET("", h.Patients.List)
		patients.GET("/cpf/:cpf", h.Patients.GetByCPF)
		patients.GET("/:id", h.Patients.Get)
		patients.PUT("/:id", h.Patients.Update)
		patients.DELETE("/:id", h.Patients.Delete)
	}

	appointments := authed.Group("/appointments")
	{
		appointments.POST("", h.Appointments.Schedule)
		appointments.GET("/period", h.Appointments.ListByPeriod)
		appointments.GET("/upcoming", h.Appointments.ListUpcoming)
		appointments.GET("/patient/:patientId", h.Appointments.ListByPatient)
		appointments.GET("/professional/:professionalId", h.Appointments.ListByProfessional)
		appointments.GET("/:id", h.Appointments.Get)
		appointments.PUT("/:id", h.Appointments.Reschedule)
		appointments.PATCH("/:id/status", h.Appointments.ChangeStatus)
		appointments.PATCH("/:id/confirm", h.Appointments.Confirm)
		appointments.PATCH("/:id/cancel", h.Appointments.Cancel)
		appointments.PATCH("/:id/complete", h.Appointments.Complete)
	}

	hist := authed.Group("/history")
	{
		hist.POST("", h.Clinical.CreateEntry)
		hist.GET("", h.Clinical.ListEntries)
		hist.GET("/patient/:patientId", h.Clinical.ListEntriesByPatient)
		hist.GET("/:id", h.Clinical.GetEntry)
		hist.PUT("/:id", h.Clinical.UpdateEntry)
		hist.DELETE("/:id", h.Clinical.DeleteEntry)
	}

	rx := authed.Group("/prescriptions")
	{
		rx.POST("", h.Clinical.CreatePrescription)
		rx.GET("/patient/:patientId", h.Clinical.ListPrescriptionsByPatient)
		rx.GET("/:id", h.Clinical.GetPrescription)
	}

	inv := authed.Group("/inventory")
	{
		inv.POST("", h.Inventory.Create)
		inv.GET("", h.Inventory.List)
		inv.GET("/simple", h.Inventory.ListSimple)
		inv.GET("/search", h.Inventory.Search)
		inv.GET("/export", h.Inventory.Export)
		inv.GET("/counts", h.Inventory.Counts)
		inv.GET("/categories", h.Inventory.Categories)
		inv.GET("/category/:category", h.Inventory.ListByCategory)
		inv.GET("/code/:code", h.Inventory.GetByCode)
		inv.GET("/alerts/low", h.Inventory.LowStock)
		inv.GET("/alerts/depleted", h.Inventory.Depleted)
		inv.GET("/:id", h.Inventory.Get)
		inv.PUT("/:id", h.Inventory.Update)
		inv.PATCH("/:id/quantity", h.Inventory.SetQuantity)
		inv.PATCH("/:id/add", h.Inventory.AddQuantity)
		inv.PATCH("/:id/remove", h.Inventory.RemoveQuantity)
		inv.PATCH("/:id/activate", h.Inventory.Activate)
		inv.PATCH("/:id/deactivate", h.Inventory.Deactivate)
	}

	dash := authed.Group("/dashboard")
	{
		dash.GET("/stats", h.Dashboard.Stats)
		dash.GET("/stats/patients", h.Dashboard.PatientStats)
		dash.GET("/stats/appointments", h.Dashboard.AppointmentStats)
		dash.GET("/stats/financial", h.Dashboard.FinancialStats)
	}

	return r
}

func readiness(ready func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
