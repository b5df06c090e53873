package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StaffService interface {
	CreateProfessional(ctx context.Context, caller domain.Identity, cmd *professional.CreateProfessionalCommand) (*professional.Profile, error)
	GetProfessional(ctx context.Context, caller domain.Identity, id uuid.UUID) (*professional.Profile, error)
	ListProfessionals(ctx context.Context, caller domain.Identity, q *professional.ListProfessionalsQuery) ([]*professional.Profile, error)
	Specialties(ctx context.Context) ([]string, error)
	SetProfessionalActive(ctx context.Context, caller domain.Identity, id uuid.UUID, active bool) (*professional.Profile, error)

	CreateSecretary(ctx context.Context, caller domain.Identity, cmd *secretary.CreateSecretaryCommand) (*secretary.Profile, error)
	GetSecretary(ctx context.Context, caller domain.Identity, id uuid.UUID) (*secretary.Profile, error)
	ListSecretaries(ctx context.Context, caller domain.Identity, q *secretary.ListSecretariesQuery) ([]*secretary.Profile, error)
	SetSecretaryActive(ctx context.Context, caller domain.Identity, id uuid.UUID, active bool) (*secretary.Profile, error)
	LinkSecretary(ctx context.Context, caller domain.Identity, secretaryID, professionalID uuid.UUID) error
	UnlinkSecretary(ctx context.Context, caller domain.Identity, secretaryID, professionalID uuid.UUID) error
}

type StaffHandler struct {
	svc StaffService
}

func NewStaffHandler(svc StaffService) *StaffHandler {
	return &StaffHandler{svc: svc}
}

func (h *StaffHandler) CreateProfessional(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createProfessionalRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreateProfessional(c.Request.Context(), id, &professional.CreateProfessionalCommand{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		BirthDate:     req.BirthDate.Time,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toProfessionalResponse(p))
}

func (h *StaffHandler) GetProfessional(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	profID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProfessional(c.Request.Context(), id, profID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toProfessionalResponse(p))
}

func (h *StaffHandler) ListProfessionals(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListProfessionals(c.Request.Context(), id, &professional.ListProfessionalsQuery{
		Search:          c.Query("search"),
		Specialty:       c.Query("specialty"),
		IncludeInactive: queryBool(c, "include_inactive"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]professionalResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProfessionalResponse(p))
	}
	respondOK(c, out)
}

func (h *StaffHandler) Specialties(c *gin.Context) {
	list, err := h.svc.Specialties(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	respondOK(c, list)
}

func (h *StaffHandler) ActivateProfessional(c *gin.Context)   { h.setProfessionalActive(c, true) }
func (h *StaffHandler) DeactivateProfessional(c *gin.Context) { h.setProfessionalActive(c, false) }

func (h *StaffHandler) setProfessionalActive(c *gin.Context, active bool) {
	id, ok := caller(c)
	if !ok {
		return
	}
	profID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.SetProfessionalActive(c.Request.Context(), id, profID, active)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toProfessionalResponse(p))
}

func (h *StaffHandler) CreateSecretary(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createSecretaryRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.svc.CreateSecretary(c.Request.Context(), id, &secretary.CreateSecretaryCommand{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		BirthDate: req.BirthDate.Time,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toSecretaryResponse(s))
}

func (h *StaffHandler) GetSecretary(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	secID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.GetSecretary(c.Request.Context(), id, secID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toSecretaryResponse(s))
}

func (h *StaffHandler) ListSecretaries(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.ListSecretaries(c.Request.Context(), id, &secretary.ListSecretariesQuery{
		Search:          c.Query("search"),
		IncludeInactive: queryBool(c, "include_inactive"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]secretaryResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSecretaryResponse(s))
	}
	respondOK(c, out)
}

func (h *StaffHandler) ActivateSecretary(c *gin.Context)   { h.setSecretaryActive(c, true) }
func (h *StaffHandler) DeactivateSecretary(c *gin.Context) { h.setSecretaryActive(c, false) }

func (h *StaffHandler) setSecretaryActive(c *gin.Context, active bool) {
	id, ok := caller(c)
	if !ok {
		return
	}
	secID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.SetSecretaryActive(c.Request.Context(), id, secID, active)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toSecretaryResponse(s))
}

func (h *StaffHandler) LinkSecretary(c *gin.Context) {
	h.link(c, h.svc.LinkSecretary, http.StatusCreated)
}

func (h *StaffHandler) UnlinkSecretary(c *gin.Context) {
	h.link(c, h.svc.UnlinkSecretary, http.StatusNoContent)
}

func (h *StaffHandler) link(c *gin.Context, op func(context.Context, domain.Identity, uuid.UUID, uuid.UUID) error, status int) {
	id, ok := caller(c)
	if !ok {
		return
	}
	secID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	profID, ok := parseUUID(c, "professionalId")
	if !ok {
		return
	}
	if err := op(c.Request.Context(), id, secID, profID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(status)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
