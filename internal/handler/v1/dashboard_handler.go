package v1

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/gin-gonic/gin"
)

type DashboardService interface {
	Stats(ctx context.Context, caller domain.Identity) (*service.DashboardStats, error)
	PatientStats(ctx context.Context, caller domain.Identity) (*service.PatientStats, error)
	AppointmentStats(ctx context.Context, caller domain.Identity) (*service.AppointmentStats, error)
	FinancialStats(ctx context.Context, caller domain.Identity) (*service.FinancialStats, error)
}

type DashboardHandler struct {
	svc DashboardService
}

func NewDashboardHandler(svc DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	respondStats(c, h.svc.Stats)
}

func (h *DashboardHandler) PatientStats(c *gin.Context) {
	respondStats(c, h.svc.PatientStats)
}

func (h *DashboardHandler) AppointmentStats(c *gin.Context) {
	respondStats(c, h.svc.AppointmentStats)
}

func (h *DashboardHandler) FinancialStats(c *gin.Context) {
	respondStats(c, h.svc.FinancialStats)
}

func respondStats[T any](c *gin.Context, op func(context.Context, domain.Identity) (*T, error)) {
	id, ok := caller(c)
	if !ok {
		return
	}
	stats, err := op(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, stats)
}
