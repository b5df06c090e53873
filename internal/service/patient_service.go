package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PatientMetrics interface {
	PatientCreated()
}

type noopPatientMetrics struct{}

func (noopPatientMetrics) PatientCreated() {}

type PatientService struct {
	repo     patient.Repository
	scopes   ScopeResolver
	auditSvc *AuditService
	metrics  PatientMetrics
	log      *zap.Logger
	now      func() time.Time
}

func NewPatientService(repo patient.Repository, scopes ScopeResolver, auditSvc *AuditService, m PatientMetrics, log *zap.Logger) *PatientService {
	if m == nil {
		m = noopPatientMetrics{}
	}
	return &PatientService{
		repo:     repo,
		scopes:   scopes,
		auditSvc: auditSvc,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// CreatePatient registers a patient. Any staff member may register one; the
// patient becomes visible to a professional once an appointment links them.
func (s *PatientService) CreatePatient(ctx context.Context, caller domain.Identity, cmd *patient.CreatePatientCommand) (*patient.Patient, error) {
	if err := s.validateCreate(cmd); err != nil {
		return nil, err
	}

	cpf := patient.NormalizeCPF(cmd.CPF)
	email := domain.NormalizeEmail(cmd.Email)

	if err := s.ensureUnique(ctx, cpf, email, nil); err != nil {
		return nil, err
	}

	p := &patient.Patient{
		Name:      strings.TrimSpace(cmd.Name),
		CPF:       cpf,
		BirthDate: dateOnly(cmd.BirthDate),
		ContactInfo: patient.ContactInfo{
			Phone:   strings.TrimSpace(cmd.Phone),
			Email:   email,
			Address: strings.TrimSpace(cmd.Address),
		},
		IsActive:  true,
		CreatedBy: caller.UserID,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	s.metrics.PatientCreated()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "patient",
		ResourceID:   p.ID.String(),
	})

	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", caller.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, caller domain.Identity, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindPatient, p.ID); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionRead,
		ResourceType: "patient",
		ResourceID:   id.String(),
	})

	return p, nil
}

func (s *PatientService) GetPatientByCPF(ctx context.Context, caller domain.Identity, cpf string) (*patient.Patient, error) {
	cpf = patient.NormalizeCPF(cpf)
	if !patient.ValidCPF(cpf) {
		return nil, patient.ErrInvalidCPF
	}
	p, err := s.repo.GetByCPF(ctx, cpf)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindPatient, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindPatient, current.ID); err != nil {
		return nil, err
	}

	if err := s.validateUpdate(cmd); err != nil {
		return nil, err
	}

	var cpf, email string
	if cmd.CPF != nil {
		normalized := patient.NormalizeCPF(*cmd.CPF)
		cmd.CPF = &normalized
		if normalized != current.CPF {
			cpf = normalized
		}
	}
	if cmd.Email != nil {
		normalized := domain.NormalizeEmail(*cmd.Email)
		cmd.Email = &normalized
		if normalized != current.Email {
			email = normalized
		}
	}
	if err := s.ensureUnique(ctx, cpf, email, &current.ID); err != nil {
		return nil, err
	}
	if cmd.BirthDate != nil {
		d := dateOnly(*cmd.BirthDate)
		cmd.BirthDate = &d
	}

	p, err := s.repo.Update(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "patient",
		ResourceID:   id.String(),
	})
	return p, nil
}

// DeactivatePatient soft-deletes the record; history and appointments stay.
func (s *PatientService) DeactivatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindPatient, p.ID); err != nil {
		return err
	}
	if !p.IsActive {
		return patient.ErrPatientInactive
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivating patient: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionDelete,
		ResourceType: "patient",
		ResourceID:   id.String(),
	})
	return nil
}

func (s *PatientService) ListPatients(ctx context.Context, caller domain.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	q.Search = strings.TrimSpace(q.Search)

	scope, err := s.scopes.Resolve(ctx, caller, access.KindPatient)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return &patient.PagedPatients{Patients: []*patient.Patient{}, Page: q.Page, PageSize: q.PageSize}, nil
	}
	q.Scope = scope

	return s.repo.List(ctx, q)
}

func (s *PatientService) ensureUnique(ctx context.Context, cpf, email string, excludeID *uuid.UUID) error {
	if cpf != "" {
		exists, err := s.repo.ExistsByCPF(ctx, cpf, excludeID)
		if err != nil {
			s.log.Error("failed to check CPF uniqueness", zap.Error(err))
			return fmt.Errorf("checking uniqueness: %w", err)
		}
		if exists {
			return patient.ErrCPFAlreadyExists
		}
	}
	if email != "" {
		exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("checking uniqueness: %w", err)
		}
		if exists {
			return patient.ErrEmailAlreadyExists
		}
	}
	return nil
}

func (s *PatientService) validateCreate(cmd *patient.CreatePatientCommand) error {
	v := &validator{}
	v.check(strings.TrimSpace(cmd.Name) != "", "name is required")
	v.check(len(strings.TrimSpace(cmd.Name)) <= 150, "name must be at most 150 characters")
	v.check(strings.TrimSpace(cmd.CPF) != "", "cpf is required")
	v.check(validEmail(cmd.Email), "email is invalid")
	v.check(!cmd.BirthDate.IsZero(), "birth_date is required")
	v.check(len(cmd.Phone) <= 20, "phone must be at most 20 characters")
	if err := v.err(); err != nil {
		return err
	}
	if !patient.ValidCPF(patient.NormalizeCPF(cmd.CPF)) {
		return patient.ErrInvalidCPF
	}
	if cmd.BirthDate.After(s.now()) {
		return patient.ErrInvalidBirthDate
	}
	return nil
}

func (s *PatientService) validateUpdate(cmd *patient.UpdatePatientCommand) error {
	v := &validator{}
	if cmd.Name != nil {
		v.check(strings.TrimSpace(*cmd.Name) != "", "name cannot be empty")
		v.check(len(strings.TrimSpace(*cmd.Name)) <= 150, "name must be at most 150 characters")
	}
	if cmd.Email != nil {
		v.check(validEmail(*cmd.Email), "email is invalid")
	}
	if cmd.Phone != nil {
		v.check(len(*cmd.Phone) <= 20, "phone must be at most 20 characters")
	}
	if cmd.BirthDate != nil {
		v.check(!cmd.BirthDate.IsZero(), "birth_date cannot be empty")
	}
	if err := v.err(); err != nil {
		return err
	}
	if cmd.CPF != nil && !patient.ValidCPF(patient.NormalizeCPF(*cmd.CPF)) {
		return patient.ErrInvalidCPF
	}
	if cmd.BirthDate != nil && cmd.BirthDate.After(s.now()) {
		return patient.ErrInvalidBirthDate
	}
	return nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
