package inventory

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrItemNotFound        = domain.NewError(domain.KindNotFound, "inventory item not found")
	ErrCodeAlreadyExists   = domain.NewError(domain.KindConflict, "inventory code is already in use")
	ErrNegativeQuantity    = domain.NewError(domain.KindInvalidArgument, "quantity cannot be negative")
	ErrNonPositiveAmount   = domain.NewError(domain.KindInvalidArgument, "amount must be greater than zero")
	ErrNegativeMinAlert    = domain.NewError(domain.KindInvalidArgument, "minimum alert threshold cannot be negative")
	ErrInsufficientStock   = domain.NewError(domain.KindInsufficientStock, "insufficient stock for this removal")
	ErrGlobalItemAdminOnly = domain.NewError(domain.KindAccessDenied, "only administrators can change shared inventory items")
	ErrOwnerRequired       = domain.NewError(domain.KindInvalidArgument, "professional_id is required")
)
