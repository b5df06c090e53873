package prescription

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrPrescriptionNotFound = domain.NewError(domain.KindNotFound, "prescription not found")
	ErrMedicationsRequired  = domain.NewError(domain.KindInvalidArgument, "at least one medication is required")
	ErrValidUntilInPast     = domain.NewError(domain.KindInvalidArgument, "valid_until cannot be in the past")
	ErrAppointmentMismatch  = domain.NewError(domain.KindInvalidArgument, "appointment does not belong to this patient and professional")
)
