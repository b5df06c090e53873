package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryService manages consultation notes. Visibility follows the
// professional who wrote the entry.
type HistoryService struct {
	repo     history.Repository
	patients patient.Repository
	scopes   ScopeResolver
	auditSvc *AuditService
	log      *zap.Logger
	now      func() time.Time
}

func NewHistoryService(repo history.Repository, patients patient.Repository, scopes ScopeResolver, auditSvc *AuditService, log *zap.Logger) *HistoryService {
	return &HistoryService{repo: repo, patients: patients, scopes: scopes, auditSvc: auditSvc, log: log, now: time.Now}
}

func (s *HistoryService) CreateEntry(ctx context.Context, caller domain.Identity, cmd *history.CreateEntryCommand) (*history.Entry, error) {
	profID, err := resolveAuthor(ctx, s.scopes, caller, cmd.ProfessionalID)
	if err != nil {
		return nil, err
	}

	v := &validator{}
	v.check(cmd.PatientID != uuid.Nil, "patient_id is required")
	checkEntryText(v, &cmd.Description, cmd.Diagnosis, cmd.Prescription)
	v.check(!cmd.ConsultedAt.After(s.now().Add(time.Minute)), "consulted_at cannot be in the future")
	if err := v.err(); err != nil {
		return nil, err
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

	consulted := cmd.ConsultedAt
	if consulted.IsZero() {
		consulted = s.now()
	}

	e := &history.Entry{
		PatientID:      cmd.PatientID,
		ProfessionalID: profID,
		Description:    strings.TrimSpace(cmd.Description),
		Diagnosis:      trimmedOrNil(cmd.Diagnosis),
		Prescription:   trimmedOrNil(cmd.Prescription),
		ConsultedAt:    consulted.UTC().Truncate(time.Second),
		CreatedBy:      caller.UserID,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("creating history entry: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "medical_history",
		ResourceID:   e.ID.String(),
		Changes:      map[string]any{"patient_id": e.PatientID},
	})
	return e, nil
}

func (s *HistoryService) GetEntry(ctx context.Context, caller domain.Identity, id uuid.UUID) (*history.Entry, error) {
	e, err := s.getInScope(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity: caller, Action: domain.ActionRead, ResourceType: "medical_history", ResourceID: id.String(),
	})
	return e, nil
}

func (s *HistoryService) UpdateEntry(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *history.UpdateEntryCommand) (*history.Entry, error) {
	e, err := s.getInScope(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	v := &validator{}
	checkEntryText(v, cmd.Description, cmd.Diagnosis, cmd.Prescription)
	if cmd.ConsultedAt != nil {
		v.check(!cmd.ConsultedAt.IsZero(), "consulted_at cannot be empty")
		v.check(!cmd.ConsultedAt.After(s.now().Add(time.Minute)), "consulted_at cannot be in the future")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if cmd.Description != nil {
		e.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.Diagnosis != nil {
		e.Diagnosis = trimmedOrNil(cmd.Diagnosis)
	}
	if cmd.Prescription != nil {
		e.Prescription = trimmedOrNil(cmd.Prescription)
	}
	if cmd.ConsultedAt != nil {
		e.ConsultedAt = cmd.ConsultedAt.UTC().Truncate(time.Second)
	}

	if err := s.repo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("updating history entry: %w", err)
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity: caller, Action: domain.ActionUpdate, ResourceType: "medical_history", ResourceID: id.String(),
	})
	return e, nil
}

func (s *HistoryService) DeleteEntry(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	if _, err := s.getInScope(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting history entry: %w", err)
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity: caller, Action: domain.ActionDelete, ResourceType: "medical_history", ResourceID: id.String(),
	})
	s.log.Info("history entry deleted", zap.String("entry_id", id.String()), zap.String("by", caller.UserID.String()))
	return nil
}

// ListEntries returns entries written by professionals in the caller's scope.
func (s *HistoryService) ListEntries(ctx context.Context, caller domain.Identity, q *history.ListEntriesQuery) (*history.PagedEntries, error) {
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	q.Search = strings.TrimSpace(q.Search)

	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return &history.PagedEntries{Entries: []*history.Entry{}, Page: q.Page, PageSize: q.PageSize}, nil
	}
	q.Scope = scope
	return s.repo.List(ctx, q)
}

// ListByPatient reports unknown patients only to callers with an unrestricted
// scope; everyone else gets the scope-filtered, possibly empty, page.
func (s *HistoryService) ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID, page, pageSize int) (*history.PagedEntries, error) {
	if err := ensurePatientVisible(ctx, s.scopes, s.patients, caller, patientID); err != nil {
		return nil, err
	}
	return s.ListEntries(ctx, caller, &history.ListEntriesQuery{PatientID: &patientID, Page: page, PageSize: pageSize})
}

func (s *HistoryService) getInScope(ctx context.Context, caller domain.Identity, id uuid.UUID) (*history.Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, e.ProfessionalID); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveAuthor picks the professional a clinical document is attributed to.
// Professionals always author their own documents.
func resolveAuthor(ctx context.Context, scopes ScopeResolver, caller domain.Identity, requested uuid.UUID) (uuid.UUID, error) {
	var want *uuid.UUID
	if requested != uuid.Nil {
		want = &requested
	}
	owner, err := scopes.Owner(ctx, caller, want)
	if errors.Is(err, ErrOwnerUnset) || (err == nil && owner == nil) {
		return uuid.Nil, &ValidationError{Fields: []string{"professional_id is required"}}
	}
	if err != nil {
		return uuid.Nil, err
	}
	return *owner, nil
}

func checkEntryText(v *validator, description, diagnosis, prescription *string) {
	if description != nil {
		v.check(strings.TrimSpace(*description) != "", "description is required")
		v.check(len(*description) <= history.MaxDescriptionLength,
			fmt.Sprintf("description must be at most %d characters", history.MaxDescriptionLength))
	}
	if diagnosis != nil {
		v.check(len(*diagnosis) <= history.MaxDiagnosisLength,
			fmt.Sprintf("diagnosis must be at most %d characters", history.MaxDiagnosisLength))
	}
	if prescription != nil {
		v.check(len(*prescription) <= history.MaxPrescriptionLength,
			fmt.Sprintf("prescription must be at most %d characters", history.MaxPrescriptionLength))
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// ensurePatientVisible checks the patient exists when the caller's professional
// scope is unrestricted. Scoped callers skip the lookup.
func ensurePatientVisible(ctx context.Context, scopes ScopeResolver, patients patient.Repository, caller domain.Identity, patientID uuid.UUID) error {
	scope, err := scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return err
	}
	if !scope.IsUnrestricted() {
		return nil
	}
	_, err = patients.GetByID(ctx, patientID)
	return err
}
