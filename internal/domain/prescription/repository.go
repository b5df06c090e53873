package prescription

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// ListByPatient returns prescriptions written by professionals in scope.
	ListByPatient(ctx context.Context, patientID uuid.UUID, scope access.Scope) ([]*Prescription, error)
}
