package postgres

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func translateAppointmentError(err error) error {
	if isExclusionViolation(err) {
		return appointment.ErrSchedulingConflict
	}
	return err
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return translateAppointmentError(err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, notFound(err, appointment.ErrAppointmentNotFound)
	}
	return &a, nil
}

var editableStatuses = []appointment.Status{appointment.StatusScheduled, appointment.StatusConfirmed}

func (r *AppointmentRepository) Save(ctx context.Context, a *appointment.Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("id = ? AND status IN ?", a.ID, editableStatuses).
		Updates(map[string]any{
			"patient_id":       a.PatientID,
			"professional_id":  a.ProfessionalID,
			"starts_at":        a.StartsAt,
			"duration_minutes": a.DurationMinutes,
			"ends_at":          a.EndsAt,
			"value_cents":      a.ValueCents,
			"notes":            a.Notes,
			"updated_at":       a.UpdatedAt,
		})
	if res.Error != nil {
		return translateAppointmentError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var stored appointment.Appointment
	err := r.db.WithContext(ctx).Select("id", "status").Where("id = ?", a.ID).Take(&stored).Error
	if err != nil {
		return notFound(err, appointment.ErrAppointmentNotFound)
	}
	if err := stored.EnsureEditable(); err != nil {
		return err
	}
	return appointment.ErrInvalidStatusTransition
}

// UpdateStatus is a compare-and-set on the status column.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment, from appointment.Status) error {
	res := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("id = ? AND status = ?", a.ID, from).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancelled_by":        a.CancelledBy,
			"cancellation_reason": a.CancellationReason,
			"completed_at":        a.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	out := &appointment.PagedAppointments{Appointments: []*appointment.Appointment{}, Page: q.Page, PageSize: q.PageSize}
	if q.Scope.IsEmpty() {
		return out, nil
	}

	db := scoped(r.db.WithContext(ctx).Model(&appointment.Appointment{}), "professional_id", q.Scope)
	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.ProfessionalID != nil {
		db = db.Where("professional_id = ?", *q.ProfessionalID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.From != nil {
		db = db.Where("starts_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("starts_at < ?", *q.To)
	}

	if err := db.Count(&out.TotalCount).Error; err != nil {
		return nil, err
	}
	if out.TotalCount > 0 {
		if err := paginate(db, q.Page, q.PageSize).Order("starts_at ASC").Find(&out.Appointments).Error; err != nil {
			return nil, err
		}
	}
	out.TotalPages = totalPages(out.TotalCount, q.PageSize)
	return out, nil
}

func (r *AppointmentRepository) ListActiveInWindow(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	out := []*appointment.Appointment{}
	err := r.db.WithContext(ctx).
		Where("professional_id = ? AND status <> ?", professionalID, appointment.StatusCancelled).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Order("starts_at ASC").
		Find(&out).Error
	return out, err
}

// WithProfessionalLock takes SELECT ... FOR UPDATE on the professional row, so
// concurrent bookings for the same professional run one after another.
func (r *AppointmentRepository) WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(tx appointment.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked professional.Professional
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", professionalID).
			Take(&locked).Error
		if err != nil {
			return notFound(err, professional.ErrProfessionalNotFound)
		}
		return fn(&AppointmentRepository{db: tx})
	})
}

func (r *AppointmentRepository) ListUpcoming(ctx context.Context, scope access.Scope, from time.Time, limit int) ([]*appointment.Appointment, error) {
	out := []*appointment.Appointment{}
	if scope.IsEmpty() {
		return out, nil
	}
	err := scoped(r.db.WithContext(ctx), "professional_id", scope).
		Where("starts_at >= ?", from).
		Where("status IN ?", []appointment.Status{appointment.StatusScheduled, appointment.StatusConfirmed}).
		Order("starts_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *AppointmentRepository) PatientIDsForProfessionals(ctx context.Context, professionalIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if len(professionalIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&appointment.Appointment{}).
		Where("professional_id IN ?", professionalIDs).
		Distinct().
		Pluck("patient_id", &ids).Error
	return ids, err
}

func (r *AppointmentRepository) CountInPeriod(ctx context.Context, scope access.Scope, from, to time.Time, status *appointment.Status) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	db := scoped(r.db.WithContext(ctx).Model(&appointment.Appointment{}), "professional_id", scope).
		Where("starts_at >= ? AND starts_at < ?", from, to)
	if status != nil {
		db = db.Where("status = ?", *status)
	}
	var n int64
	err := db.Count(&n).Error
	return n, err
}

func (r *AppointmentRepository) CountByStatus(ctx context.Context, scope access.Scope, status appointment.Status) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Model(&appointment.Appointment{}), "professional_id", scope).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

func (r *AppointmentRepository) Revenue(ctx context.Context, scope access.Scope, from, to time.Time) (appointment.RevenueSummary, error) {
	var out appointment.RevenueSummary
	if scope.IsEmpty() {
		return out, nil
	}
	err := scoped(r.db.WithContext(ctx).Model(&appointment.Appointment{}), "professional_id", scope).
		Select("COALESCE(SUM(value_cents), 0) AS total_cents, COUNT(*) AS count").
		Where("status = ? AND value_cents IS NOT NULL", appointment.StatusCompleted).
		Where("starts_at >= ? AND starts_at < ?", from, to).
		Scan(&out).Error
	return out, err
}
