package history

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	Save(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q *ListEntriesQuery) (*PagedEntries, error)
	Count(ctx context.Context, scope access.Scope) (int64, error)
}
