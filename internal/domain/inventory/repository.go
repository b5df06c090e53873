package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create returns ErrCodeAlreadyExists when a unique index rejects the code.
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// GetByCode looks up an item regardless of its active flag.
	GetByCode(ctx context.Context, code string, owner *uuid.UUID) (*Item, error)
	Save(ctx context.Context, item *Item) error

	// CodeExists checks the code within owner (nil owner = global items), or
	// across every owner when global is true.
	CodeExists(ctx context.Context, code string, owner *uuid.UUID, global bool, excludeID *uuid.UUID) (bool, error)

	// SetQuantity overwrites the quantity and returns the updated row.
	SetQuantity(ctx context.Context, id uuid.UUID, quantity int) (*Item, error)

	// AdjustQuantity adds delta in a single conditional statement that refuses
	// to leave quantity below zero. It returns ErrInsufficientStock when the
	// guard rejects the update and ErrItemNotFound when no row exists.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Item, error)

	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Item, error)

	List(ctx context.Context, f *Filter) (*PagedItems, error)
	Categories(ctx context.Context, f *Filter) ([]string, error)
	Counts(ctx context.Context, f *Filter) (Counts, error)
}
