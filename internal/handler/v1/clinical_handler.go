package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HistoryService interface {
	CreateEntry(ctx context.Context, caller domain.Identity, cmd *history.CreateEntryCommand) (*history.Entry, error)
	GetEntry(ctx context.Context, caller domain.Identity, id uuid.UUID) (*history.Entry, error)
	UpdateEntry(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *history.UpdateEntryCommand) (*history.Entry, error)
	DeleteEntry(ctx context.Context, caller domain.Identity, id uuid.UUID) error
	ListEntries(ctx context.Context, caller domain.Identity, q *history.ListEntriesQuery) (*history.PagedEntries, error)
	ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID, page, pageSize int) (*history.PagedEntries, error)
}

type PrescriptionService interface {
	CreatePrescription(ctx context.Context, caller domain.Identity, cmd *prescription.CreatePrescriptionCommand) (*prescription.Prescription, error)
	GetPrescription(ctx context.Context, caller domain.Identity, id uuid.UUID) (*prescription.Prescription, error)
	ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID) ([]*prescription.Prescription, error)
}

// ClinicalHandler serves medical history entries and prescriptions.
type ClinicalHandler struct {
	history       HistoryService
	prescriptions PrescriptionService
	now           func() time.Time
}

func NewClinicalHandler(historySvc HistoryService, prescriptionSvc PrescriptionService) *ClinicalHandler {
	return &ClinicalHandler{history: historySvc, prescriptions: prescriptionSvc, now: time.Now}
}

func (h *ClinicalHandler) CreateEntry(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createHistoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := &history.CreateEntryCommand{
		PatientID:    req.PatientID,
		Description:  req.Description,
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
	}
	if req.ProfessionalID != nil {
		cmd.ProfessionalID = *req.ProfessionalID
	}
	if req.ConsultedAt != nil {
		cmd.ConsultedAt = *req.ConsultedAt
	}
	e, err := h.history.CreateEntry(c.Request.Context(), id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toHistoryResponse(e))
}

func (h *ClinicalHandler) GetEntry(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	entryID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	e, err := h.history.GetEntry(c.Request.Context(), id, entryID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toHistoryResponse(e))
}

func (h *ClinicalHandler) UpdateEntry(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	entryID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateHistoryRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.history.UpdateEntry(c.Request.Context(), id, entryID, &history.UpdateEntryCommand{
		Description:  req.Description,
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		ConsultedAt:  req.ConsultedAt,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toHistoryResponse(e))
}

func (h *ClinicalHandler) DeleteEntry(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	entryID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.history.DeleteEntry(c.Request.Context(), id, entryID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEntries supports ?patient_id=, ?professional_id= and ?search=.
func (h *ClinicalHandler) ListEntries(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseOptionalUUIDQuery(c, "patient_id")
	if !ok {
		return
	}
	profID, ok := parseOptionalUUIDQuery(c, "professional_id")
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.history.ListEntries(c.Request.Context(), id, &history.ListEntriesQuery{
		PatientID:      patientID,
		ProfessionalID: profID,
		Search:         c.Query("search"),
		Page:           page,
		PageSize:       size,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondEntries(c, res)
}

func (h *ClinicalHandler) ListEntriesByPatient(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	page, size := pageParams(c)
	res, err := h.history.ListByPatient(c.Request.Context(), id, patientID, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondEntries(c, res)
}

func respondEntries(c *gin.Context, res *history.PagedEntries) {
	respondPaged(c, toHistoryResponses(res.Entries), Pagination{
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
	})
}

func (h *ClinicalHandler) CreatePrescription(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req createPrescriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := &prescription.CreatePrescriptionCommand{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Medications:   req.Medications,
		Notes:         req.Notes,
		ValidUntil:    datePtr(req.ValidUntil),
	}
	if req.ProfessionalID != nil {
		cmd.ProfessionalID = *req.ProfessionalID
	}
	p, err := h.prescriptions.CreatePrescription(c.Request.Context(), id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toPrescriptionResponse(p, h.now()))
}

func (h *ClinicalHandler) GetPrescription(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	rxID, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.prescriptions.GetPrescription(c.Request.Context(), id, rxID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toPrescriptionResponse(p, h.now()))
}

func (h *ClinicalHandler) ListPrescriptionsByPatient(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	list, err := h.prescriptions.ListByPatient(c.Request.Context(), id, patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	now := h.now()
	out := make([]prescriptionResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPrescriptionResponse(p, now))
	}
	respondOK(c, out)
}
