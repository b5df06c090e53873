package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PatientService interface {
	CreatePatient(ctx context.Context, caller domain.Identity, cmd *patient.CreatePatientCommand) (*patient.Patient, error)
	GetPatient(ctx context.Context, caller domain.Identity, id uuid.UUID) (*patient.Patient, error)
	GetPatientByCPF(ctx context.Context, caller domain.Identity, cpf string) (*patient.Patient, error)
	UpdatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error)
	DeactivatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID) error
	ListPatients(ctx context.Context, caller domain.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error)
}

type PatientHandler struct {
	svc PatientService
	now func() time.Time
}

func NewPatientHandler(svc PatientService) *PatientHandler {
	return &PatientHandler{svc: svc, now: time.Now}
}

func (h *PatientHandler) Create(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreatePatient(c.Request.Context(), id, &patient.CreatePatientCommand{
		Name:      req.Name,
		CPF:       req.CPF,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		BirthDate: req.BirthDate.Time,
		CreatedBy: id.UserID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPatientResponse(p, h.now()))
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetPatient(c.Request.Context(), id, patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p, h.now()))
}

// GetByCPF accepts the CPF with or without punctuation.
func (h *PatientHandler) GetByCPF(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	p, err := h.svc.GetPatientByCPF(c.Request.Context(), id, c.Param("cpf"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p, h.now()))
}

func (h *PatientHandler) Update(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdatePatient(c.Request.Context(), id, patientID, &patient.UpdatePatientCommand{
		Name:      req.Name,
		CPF:       req.CPF,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		BirthDate: datePtr(req.BirthDate),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPatientResponse(p, h.now()))
}

// Delete soft-deletes the patient by clearing the active flag.
func (h *PatientHandler) Delete(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivatePatient(c.Request.Context(), id, patientID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PatientHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.svc.ListPatients(c.Request.Context(), id, &patient.ListPatientsQuery{
		Search:          c.Query("search"),
		IncludeInactive: queryBool(c, "include_inactive"),
		Page:            page,
		PageSize:        size,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	now := h.now()
	out := make([]patientResponse, 0, len(res.Patients))
	for _, p := range res.Patients {
		out = append(out, toPatientResponse(p, now))
	}
	respondPaged(c, out, Pagination{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
	})
}
