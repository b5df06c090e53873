package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultUpcomingLimit = 10

type AppointmentService interface {
	Schedule(ctx context.Context, caller domain.Identity, cmd *appointment.ScheduleCommand) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *appointment.RescheduleCommand) (*appointment.Appointment, error)
	ChangeStatus(ctx context.Context, caller domain.Identity, id uuid.UUID, newStatus appointment.Status, reason string) (*appointment.Appointment, error)
	Confirm(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, caller domain.Identity, id uuid.UUID, reason string) (*appointment.Appointment, error)
	Complete(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error)
	ListByProfessionalAndPeriod(ctx context.Context, caller domain.Identity, professionalID uuid.UUID, from, to time.Time, page, pageSize int) (*appointment.PagedAppointments, error)
	ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID, page, pageSize int) (*appointment.PagedAppointments, error)
	ListByPeriod(ctx context.Context, caller domain.Identity, from, to time.Time, status *appointment.Status, page, pageSize int) (*appointment.PagedAppointments, error)
	ListUpcoming(ctx context.Context, caller domain.Identity, limit int) ([]*appointment.Appointment, error)
}

type AppointmentHandler struct {
	svc AppointmentService
}

func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

func (h *AppointmentHandler) Schedule(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.svc.Schedule(c.Request.Context(), id, &appointment.ScheduleCommand{
		PatientID:       req.PatientID,
		ProfessionalID:  req.ProfessionalID,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		ValueCents:      req.ValueCents,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	apptID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id, apptID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	apptID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.svc.Reschedule(c.Request.Context(), id, apptID, &appointment.RescheduleCommand{
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		ProfessionalID:  req.ProfessionalID,
		PatientID:       req.PatientID,
		ValueCents:      req.ValueCents,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) ChangeStatus(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	apptID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.svc.ChangeStatus(c.Request.Context(), id, apptID, req.Status, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	h.transition(c, h.svc.Confirm)
}

func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.transition(c, h.svc.Complete)
}

// Cancel takes an optional {"reason": "..."} body.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, who domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
		return h.svc.Cancel(ctx, who, id, req.Reason)
	})
}

func (h *AppointmentHandler) transition(c *gin.Context, op func(context.Context, domain.Identity, uuid.UUID) (*appointment.Appointment, error)) {
	id, ok := caller(c)
	if !ok {
		return
	}
	apptID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := op(c.Request.Context(), id, apptID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponse(a))
}

func (h *AppointmentHandler) ListByPatient(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.svc.ListByPatient(c.Request.Context(), id, patientID, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondAppointments(c, res)
}

// ListByProfessional requires from and to query parameters.
func (h *AppointmentHandler) ListByProfessional(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	profID, ok := parseUUID(c, "professionalId")
	if !ok {
		return
	}
	from, ok := parseQueryTime(c, "from")
	if !ok {
		return
	}
	to, ok := parseQueryTime(c, "to")
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.svc.ListByProfessionalAndPeriod(c.Request.Context(), id, profID, from, to, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondAppointments(c, res)
}

func (h *AppointmentHandler) ListByPeriod(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	from, ok := parseQueryTime(c, "from")
	if !ok {
		return
	}
	to, ok := parseQueryTime(c, "to")
	if !ok {
		return
	}
	var status *appointment.Status
	if raw := c.Query("status"); raw != "" {
		s := appointment.Status(raw)
		if !s.IsValid() {
			respondError(c, http.StatusBadRequest, "invalid status: "+raw)
			return
		}
		status = &s
	}
	page, size := pageParams(c)
	res, err := h.svc.ListByPeriod(c.Request.Context(), id, from, to, status, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondAppointments(c, res)
}

func (h *AppointmentHandler) ListUpcoming(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	limit := parseQueryInt(c, "limit", defaultUpcomingLimit)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	list, err := h.svc.ListUpcoming(c.Request.Context(), id, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toAppointmentResponses(list))
}

func respondAppointments(c *gin.Context, res *appointment.PagedAppointments) {
	respondPaged(c, toAppointmentResponses(res.Appointments), Pagination{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
	})
}
