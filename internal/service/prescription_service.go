package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PrescriptionMetrics interface {
	PrescriptionIssued()
}

type noopPrescriptionMetrics struct{}

func (noopPrescriptionMetrics) PrescriptionIssued() {}

type PrescriptionService struct {
	repo         prescription.Repository
	patients     patient.Repository
	appointments appointment.Repository
	scopes       ScopeResolver
	auditSvc     *AuditService
	metrics      PrescriptionMetrics
	log          *zap.Logger
	now          func() time.Time
}

func NewPrescriptionService(
	repo prescription.Repository,
	patients patient.Repository,
	appointments appointment.Repository,
	scopes ScopeResolver,
	auditSvc *AuditService,
	m PrescriptionMetrics,
	log *zap.Logger,
) *PrescriptionService {
	if m == nil {
		m = noopPrescriptionMetrics{}
	}
	return &PrescriptionService{
		repo:         repo,
		patients:     patients,
		appointments: appointments,
		scopes:       scopes,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// CreatePrescription is restricted to professionals and admins; secretaries
// cannot prescribe.
func (s *PrescriptionService) CreatePrescription(ctx context.Context, caller domain.Identity, cmd *prescription.CreatePrescriptionCommand) (*prescription.Prescription, error) {
	if err := s.scopes.CanPrescribe(caller); err != nil {
		return nil, err
	}
	profID, err := resolveAuthor(ctx, s.scopes, caller, cmd.ProfessionalID)
	if err != nil {
		return nil, err
	}

	if len(cmd.Medications) == 0 {
		return nil, prescription.ErrMedicationsRequired
	}
	v := &validator{}
	v.check(cmd.PatientID != uuid.Nil, "patient_id is required")
	for i, m := range cmd.Medications {
		v.check(strings.TrimSpace(m.Name) != "", fmt.Sprintf("medications[%d].name is required", i))
		v.check(strings.TrimSpace(m.Dosage) != "", fmt.Sprintf("medications[%d].dosage is required", i))
		v.check(strings.TrimSpace(m.Frequency) != "", fmt.Sprintf("medications[%d].frequency is required", i))
		v.check(m.Quantity >= 0, fmt.Sprintf("medications[%d].quantity cannot be negative", i))
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var validUntil *time.Time
	if cmd.ValidUntil != nil {
		d := dateOnly(*cmd.ValidUntil)
		if d.Before(dateOnly(s.now())) {
			return nil, prescription.ErrValidUntilInPast
		}
		validUntil = &d
	}

	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, profID); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive {
		return nil, patient.ErrPatientInactive
	}

	if cmd.AppointmentID != nil {
		a, err := s.appointments.GetByID(ctx, *cmd.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("verifying appointment: %w", err)
		}
		if a.PatientID != cmd.PatientID || a.ProfessionalID != profID {
			return nil, prescription.ErrAppointmentMismatch
		}
	}

	meds := make([]prescription.Medication, len(cmd.Medications))
	for i, m := range cmd.Medications {
		meds[i] = prescription.Medication{
			Name:      strings.TrimSpace(m.Name),
			Dosage:    strings.TrimSpace(m.Dosage),
			Frequency: strings.TrimSpace(m.Frequency),
			Duration:  strings.TrimSpace(m.Duration),
			Quantity:  m.Quantity,
		}
	}

	rx := &prescription.Prescription{
		PatientID:      cmd.PatientID,
		ProfessionalID: profID,
		AppointmentID:  cmd.AppointmentID,
		Medications:    meds,
		Notes:          strings.TrimSpace(cmd.Notes),
		ValidUntil:     validUntil,
		CreatedBy:      caller.UserID,
	}
	if err := s.repo.Create(ctx, rx); err != nil {
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	s.metrics.PrescriptionIssued()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "prescription",
		ResourceID:   rx.ID.String(),
		Changes:      map[string]any{"patient_id": rx.PatientID, "medications": len(meds)},
	})
	s.log.Info("prescription issued",
		zap.String("prescription_id", rx.ID.String()),
		zap.String("professional_id", profID.String()),
	)
	return rx, nil
}

func (s *PrescriptionService) GetPrescription(ctx context.Context, caller domain.Identity, id uuid.UUID) (*prescription.Prescription, error) {
	rx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, rx.ProfessionalID); err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity: caller, Action: domain.ActionRead, ResourceType: "prescription", ResourceID: id.String(),
	})
	return rx, nil
}

// ListByPatient returns the patient's prescriptions written by professionals
// the caller can see.
func (s *PrescriptionService) ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	if err := ensurePatientVisible(ctx, s.scopes, s.patients, caller, patientID); err != nil {
		return nil, err
	}
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return []*prescription.Prescription{}, nil
	}
	return s.repo.ListByPatient(ctx, patientID, scope)
}
