package patient

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrCPFAlreadyExists or
	// ErrEmailAlreadyExists on unique violations.
	Create(ctx context.Context, p *Patient) error

	// GetByID returns ErrPatientNotFound if no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetByCPF(ctx context.Context, cpf string) (*Patient, error)

	// Update applies partial updates to an existing patient record.
	Update(ctx context.Context, id uuid.UUID, cmd *UpdatePatientCommand) (*Patient, error)

	// SetActive toggles the soft-delete flag.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	List(ctx context.Context, q *ListPatientsQuery) (*PagedPatients, error)

	ExistsByCPF(ctx context.Context, cpf string, excludeID *uuid.UUID) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error)

	Count(ctx context.Context, scope access.Scope) (int64, error)

	// CountCreatedBetween counts registrations in [from, to) within scope.
	CountCreatedBetween(ctx context.Context, scope access.Scope, from, to time.Time) (int64, error)
}
