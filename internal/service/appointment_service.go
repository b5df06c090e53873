package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/mailer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AppointmentNotifier sends best-effort appointment emails.
type AppointmentNotifier interface {
	AppointmentScheduled(ctx context.Context, d mailer.AppointmentDetails) error
	AppointmentCancelled(ctx context.Context, d mailer.AppointmentDetails) error
}

type SchedulingMetrics interface {
	AppointmentStatus(status string)
	SchedulingConflict()
	MailFailed()
}

type noopSchedulingMetrics struct{}

func (noopSchedulingMetrics) AppointmentStatus(string) {}
func (noopSchedulingMetrics) SchedulingConflict()      {}
func (noopSchedulingMetrics) MailFailed()              {}

const notifyTimeout = 10 * time.Second

type AppointmentService struct {
	repo          appointment.Repository
	patients      patient.Repository
	professionals professional.Repository
	scopes        ScopeResolver
	notifier      AppointmentNotifier
	auditSvc      *AuditService
	metrics       SchedulingMetrics
	tracer        trace.Tracer
	log           *zap.Logger
	now           func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	patients patient.Repository,
	professionals professional.Repository,
	scopes ScopeResolver,
	notifier AppointmentNotifier,
	auditSvc *AuditService,
	m SchedulingMetrics,
	log *zap.Logger,
) *AppointmentService {
	if m == nil {
		m = noopSchedulingMetrics{}
	}
	return &AppointmentService{
		repo:          repo,
		patients:      patients,
		professionals: professionals,
		scopes:        scopes,
		notifier:      notifier,
		auditSvc:      auditSvc,
		metrics:       m,
		tracer:        otel.Tracer("clinicflow/service/appointment"),
		log:           log,
		now:           time.Now,
	}
}

func (s *AppointmentService) Schedule(ctx context.Context, caller domain.Identity, cmd *appointment.ScheduleCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Schedule",
		trace.WithAttributes(attribute.String("professional_id", cmd.ProfessionalID.String())))
	defer span.End()

	v := &validator{}
	v.check(cmd.PatientID != uuid.Nil, "patient_id is required")
	v.check(cmd.ProfessionalID != uuid.Nil, "professional_id is required")
	v.check(!cmd.StartsAt.IsZero(), "starts_at is required")
	v.check(cmd.ValueCents == nil || *cmd.ValueCents >= 0, "value cannot be negative")
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := appointment.ValidateDuration(cmd.DurationMinutes); err != nil {
		return nil, err
	}

	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, cmd.ProfessionalID); err != nil {
		return nil, err
	}

	p, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive {
		return nil, patient.ErrPatientInactive
	}

	prof, err := s.professionals.GetByID(ctx, cmd.ProfessionalID)
	if err != nil {
		return nil, fmt.Errorf("verifying professional: %w", err)
	}
	if !prof.IsActive {
		return nil, professional.ErrProfessionalInactive
	}

	a := &appointment.Appointment{
		PatientID:      cmd.PatientID,
		ProfessionalID: cmd.ProfessionalID,
		Status:         appointment.StatusScheduled,
		ValueCents:     cmd.ValueCents,
		Notes:          cmd.Notes,
		CreatedBy:      caller.UserID,
	}
	a.SetSlot(cmd.StartsAt, cmd.DurationMinutes)

	err = s.repo.WithProfessionalLock(ctx, a.ProfessionalID, func(tx appointment.Repository) error {
		if err := s.ensureSlotFree(ctx, tx, a, nil); err != nil {
			return err
		}
		return tx.Create(ctx, a)
	})
	if err != nil {
		s.recordFailure(span, err)
		return nil, err
	}

	s.metrics.AppointmentStatus(string(a.Status))
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		Changes: map[string]any{
			"professional_id": a.ProfessionalID,
			"starts_at":       a.StartsAt,
			"duration":        a.DurationMinutes,
		},
	})
	s.log.Info("appointment scheduled",
		zap.String("appointment_id", a.ID.String()),
		zap.String("professional_id", a.ProfessionalID.String()),
		zap.Time("starts_at", a.StartsAt),
	)

	s.notify(ctx, a, p, prof)
	return a, nil
}

// Reschedule edits an appointment. The overlap check reruns whenever the slot
// or the professional changes.
func (s *AppointmentService) Reschedule(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *appointment.RescheduleCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.Reschedule",
		trace.WithAttributes(attribute.String("appointment_id", id.String())))
	defer span.End()

	a, err := s.getInScope(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := a.EnsureEditable(); err != nil {
		return nil, err
	}

	if cmd.ValueCents != nil && *cmd.ValueCents < 0 {
		return nil, &ValidationError{Fields: []string{"value cannot be negative"}}
	}

	start, duration, profID := a.StartsAt, a.DurationMinutes, a.ProfessionalID
	if cmd.StartsAt != nil {
		if cmd.StartsAt.IsZero() {
			return nil, appointment.ErrStartRequired
		}
		start = appointment.NormalizeTime(*cmd.StartsAt)
	}
	if cmd.DurationMinutes != nil {
		if err := appointment.ValidateDuration(*cmd.DurationMinutes); err != nil {
			return nil, err
		}
		duration = *cmd.DurationMinutes
	}
	if cmd.ProfessionalID != nil && *cmd.ProfessionalID != a.ProfessionalID {
		if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, *cmd.ProfessionalID); err != nil {
			return nil, err
		}
		prof, err := s.professionals.GetByID(ctx, *cmd.ProfessionalID)
		if err != nil {
			return nil, fmt.Errorf("verifying professional: %w", err)
		}
		if !prof.IsActive {
			return nil, professional.ErrProfessionalInactive
		}
		profID = *cmd.ProfessionalID
	}
	if cmd.PatientID != nil && *cmd.PatientID != a.PatientID {
		p, err := s.patients.GetByID(ctx, *cmd.PatientID)
		if err != nil {
			return nil, fmt.Errorf("verifying patient: %w", err)
		}
		if !p.IsActive {
			return nil, patient.ErrPatientInactive
		}
	}

	slotChanged := !start.Equal(a.StartsAt) || duration != a.DurationMinutes || profID != a.ProfessionalID

	apply := func(target *appointment.Appointment) {
		target.ProfessionalID = profID
		target.SetSlot(start, duration)
		if cmd.PatientID != nil {
			target.PatientID = *cmd.PatientID
		}
		if cmd.ValueCents != nil {
			target.ValueCents = cmd.ValueCents
		}
		if cmd.Notes != nil {
			target.Notes = cmd.Notes
		}
	}

	if !slotChanged {
		apply(a)
		if err := s.repo.Save(ctx, a); err != nil {
			s.recordFailure(span, err)
			return nil, fmt.Errorf("updating appointment: %w", err)
		}
		// Status may have moved concurrently; report what is stored.
		if a, err = s.repo.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("reloading appointment: %w", err)
		}
	} else {
		err = s.repo.WithProfessionalLock(ctx, profID, func(tx appointment.Repository) error {
			// Re-read under the lock: a concurrent status change may have landed.
			current, err := tx.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := current.EnsureEditable(); err != nil {
				return err
			}
			apply(current)
			if err := s.ensureSlotFree(ctx, tx, current, &current.ID); err != nil {
				return err
			}
			if err := tx.Save(ctx, current); err != nil {
				return err
			}
			a, err = tx.GetByID(ctx, id)
			return err
		})
		if err != nil {
			s.recordFailure(span, err)
			return nil, err
		}
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		Changes: map[string]any{
			"starts_at":       a.StartsAt,
			"duration":        a.DurationMinutes,
			"professional_id": a.ProfessionalID,
		},
	})
	return a, nil
}

// ChangeStatus applies the status machine. Cancelling sends a best-effort email
// whose failure never affects the result.
func (s *AppointmentService) ChangeStatus(ctx context.Context, caller domain.Identity, id uuid.UUID, newStatus appointment.Status, reason string) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.ChangeStatus",
		trace.WithAttributes(
			attribute.String("appointment_id", id.String()),
			attribute.String("status", string(newStatus)),
		))
	defer span.End()

	if !newStatus.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}

	a, err := s.getInScope(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	from := a.Status
	if err := a.TransitionTo(newStatus, caller.UserID, reason, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, a, from); err != nil {
		s.recordFailure(span, err)
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.metrics.AppointmentStatus(string(a.Status))
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "appointment",
		ResourceID:   a.ID.String(),
		Changes:      map[string]any{"status": a.Status, "from": from, "reason": reason},
	})

	if a.Status == appointment.StatusCancelled {
		s.notifyCancelled(ctx, a)
	}
	return a, nil
}

func (s *AppointmentService) Confirm(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	return s.ChangeStatus(ctx, caller, id, appointment.StatusConfirmed, "")
}

func (s *AppointmentService) Cancel(ctx context.Context, caller domain.Identity, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	return s.ChangeStatus(ctx, caller, id, appointment.StatusCancelled, reason)
}

func (s *AppointmentService) Complete(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	return s.ChangeStatus(ctx, caller, id, appointment.StatusCompleted, "")
}

func (s *AppointmentService) Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.getInScope(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity: caller, Action: domain.ActionRead, ResourceType: "appointment", ResourceID: id.String(),
	})
	return a, nil
}

func (s *AppointmentService) ListByProfessionalAndPeriod(ctx context.Context, caller domain.Identity, professionalID uuid.UUID, from, to time.Time, page, pageSize int) (*appointment.PagedAppointments, error) {
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, professionalID); err != nil {
		return nil, err
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	return s.list(ctx, caller, &appointment.ListAppointmentsQuery{
		ProfessionalID: &professionalID,
		From:           &from,
		To:             &to,
		Page:           page,
		PageSize:       pageSize,
	})
}

// ListByPatient checks the patient scope before the patient lookup, so callers
// cannot learn whether an out-of-scope id exists.
func (s *AppointmentService) ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID, page, pageSize int) (*appointment.PagedAppointments, error) {
	if err := requireInScope(ctx, s.scopes, caller, access.KindPatient, patientID); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.list(ctx, caller, &appointment.ListAppointmentsQuery{
		PatientID: &patientID,
		Page:      page,
		PageSize:  pageSize,
	})
}

func (s *AppointmentService) ListByPeriod(ctx context.Context, caller domain.Identity, from, to time.Time, status *appointment.Status, page, pageSize int) (*appointment.PagedAppointments, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}
	return s.list(ctx, caller, &appointment.ListAppointmentsQuery{
		From:     &from,
		To:       &to,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListUpcoming returns the caller's next non-terminal appointments.
func (s *AppointmentService) ListUpcoming(ctx context.Context, caller domain.Identity, limit int) ([]*appointment.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return []*appointment.Appointment{}, nil
	}
	return s.repo.ListUpcoming(ctx, scope, appointment.NormalizeTime(s.now()), limit)
}

func (s *AppointmentService) list(ctx context.Context, caller domain.Identity, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	q.Scope = scope
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	if scope.IsEmpty() {
		return &appointment.PagedAppointments{Appointments: []*appointment.Appointment{}, Page: q.Page, PageSize: q.PageSize}, nil
	}
	return s.repo.List(ctx, q)
}

func (s *AppointmentService) getInScope(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, a.ProfessionalID); err != nil {
		return nil, err
	}
	return a, nil
}

// ensureSlotFree loads the professional's active appointments around the
// candidate slot and applies the exact half-open overlap test.
func (s *AppointmentService) ensureSlotFree(ctx context.Context, tx appointment.Repository, a *appointment.Appointment, excludeID *uuid.UUID) error {
	candidate := a.Interval()
	window := candidate.PrefetchWindow()

	existing, err := tx.ListActiveInWindow(ctx, a.ProfessionalID, window.Start, window.End)
	if err != nil {
		return fmt.Errorf("loading professional agenda: %w", err)
	}
	if clash := appointment.FindConflict(candidate, existing, excludeID); clash != nil {
		s.log.Info("scheduling conflict",
			zap.String("professional_id", a.ProfessionalID.String()),
			zap.String("conflicting_id", clash.ID.String()),
			zap.Time("starts_at", candidate.Start),
		)
		return appointment.ErrSchedulingConflict
	}
	return nil
}

func (s *AppointmentService) recordFailure(span trace.Span, err error) {
	if errors.Is(err, appointment.ErrSchedulingConflict) {
		s.metrics.SchedulingConflict()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *AppointmentService) notifyCancelled(ctx context.Context, a *appointment.Appointment) {
	if s.notifier == nil {
		return
	}
	p, err := s.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		s.log.Warn("cancellation email skipped: patient lookup failed",
			zap.String("appointment_id", a.ID.String()), zap.Error(err))
		s.metrics.MailFailed()
		return
	}
	prof, err := s.professionals.GetByID(ctx, a.ProfessionalID)
	if err != nil {
		s.log.Warn("cancellation email skipped: professional lookup failed",
			zap.String("appointment_id", a.ID.String()), zap.Error(err))
		s.metrics.MailFailed()
		return
	}
	s.notify(ctx, a, p, prof)
}

func (s *AppointmentService) notify(
	ctx context.Context,
	a *appointment.Appointment,
	p *patient.Patient,
	prof *professional.Profile,
) {
	if s.notifier == nil || p.Email == "" {
		return
	}

	send := s.notifier.AppointmentScheduled
	if a.Status == appointment.StatusCancelled {
		send = s.notifier.AppointmentCancelled
	}

	details := mailer.AppointmentDetails{
		PatientName:      p.Name,
		PatientEmail:     p.Email,
		ProfessionalName: prof.Name,
		Specialty:        prof.Specialty,
		StartsAt:         a.StartsAt,
		DurationMinutes:  a.DurationMinutes,
		Reason:           a.CancellationReason,
	}
	if a.Notes != nil {
		details.Notes = *a.Notes
	}

	// Detached from the request so a client disconnect does not abort delivery.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := send(sendCtx, details); err != nil {
		s.metrics.MailFailed()
		s.log.Warn("appointment email failed",
			zap.String("appointment_id", a.ID.String()),
			zap.String("status", string(a.Status)),
			zap.Error(err),
		)
	}
}

func validatePeriod(from, to time.Time) error {
	v := &validator{}
	v.check(!from.IsZero(), "from is required")
	v.check(!to.IsZero(), "to is required")
	v.check(from.IsZero() || to.IsZero() || from.Before(to), "from must be before to")
	return v.err()
}

func normalizePage(page, pageSize int) (int, int) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize
}
