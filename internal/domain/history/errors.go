package history

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrEntryNotFound = domain.NewError(domain.KindNotFound, "medical history entry not found")
)
