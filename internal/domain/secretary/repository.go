package secretary

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Secretary) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Secretary, error)
	List(ctx context.Context, q *ListSecretariesQuery) ([]*Profile, error)
	Count(ctx context.Context, scope access.Scope) (int64, error)

	// Link returns ErrLinkAlreadyExists on a duplicate pair.
	Link(ctx context.Context, l *Link) error
	// Unlink returns ErrLinkNotFound when the pair does not exist.
	Unlink(ctx context.Context, secretaryID, professionalID uuid.UUID) error

	ProfessionalIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error)
	SecretaryIDs(ctx context.Context, professionalID uuid.UUID) ([]uuid.UUID, error)
}
