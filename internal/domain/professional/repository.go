package professional

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Professional, error)
	ExistsByLicense(ctx context.Context, license string) (bool, error)
	List(ctx context.Context, q *ListProfessionalsQuery) ([]*Profile, error)
	Specialties(ctx context.Context) ([]string, error)
	Count(ctx context.Context, scope access.Scope) (int64, error)
}
