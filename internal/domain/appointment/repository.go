package appointment

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	// Create returns ErrSchedulingConflict when the storage-level exclusion
	// constraint rejects the row.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Save writes the editable columns (slot, parties, value, notes) while the
	// stored row is still scheduled or confirmed. Status columns are never
	// touched; a row that turned terminal yields ErrCompletedImmutable or
	// ErrCancelledImmutable.
	Save(ctx context.Context, a *Appointment) error

	// UpdateStatus writes the status columns only if the stored status is
	// still from. It returns ErrInvalidStatusTransition when another writer
	// got there first.
	UpdateStatus(ctx context.Context, a *Appointment, from Status) error

	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// ListActiveInWindow loads non-cancelled appointments of a professional
	// whose slot intersects [from, to).
	ListActiveInWindow(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*Appointment, error)

	// WithProfessionalLock runs fn inside a transaction holding a row lock on
	// the professional, serialising concurrent schedule attempts for them.
	WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(tx Repository) error) error

	// ListUpcoming returns non-terminal appointments starting at or after from.
	ListUpcoming(ctx context.Context, scope access.Scope, from time.Time, limit int) ([]*Appointment, error)

	// PatientIDsForProfessionals returns the distinct patients booked with any
	// of the given professionals.
	PatientIDsForProfessionals(ctx context.Context, professionalIDs []uuid.UUID) ([]uuid.UUID, error)

	CountInPeriod(ctx context.Context, scope access.Scope, from, to time.Time, status *Status) (int64, error)
	CountByStatus(ctx context.Context, scope access.Scope, status Status) (int64, error)

	// Revenue sums value of completed appointments started in [from, to).
	Revenue(ctx context.Context, scope access.Scope, from, to time.Time) (RevenueSummary, error)
}

type RevenueSummary struct {
	TotalCents int64
	Count      int64
}
