package appointment

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrAppointmentNotFound     = domain.NewError(domain.KindNotFound, "appointment not found")
	ErrSchedulingConflict      = domain.NewError(domain.KindSchedulingConflict, "professional already has an appointment in this time slot")
	ErrInvalidStatusTransition = domain.NewError(domain.KindBusinessRuleViolation, "invalid appointment status transition")
	ErrCompletedImmutable      = domain.NewError(domain.KindBusinessRuleViolation, "completed appointments cannot be edited")
	ErrCancelledImmutable      = domain.NewError(domain.KindBusinessRuleViolation, "cancelled appointments cannot be edited")
	ErrInvalidDuration         = domain.NewError(domain.KindInvalidArgument, "appointment duration must be between 1 and 480 minutes")
	ErrInvalidStatus           = domain.NewError(domain.KindInvalidArgument, "invalid appointment status")
	ErrStartRequired           = domain.NewError(domain.KindInvalidArgument, "appointment start time is required")
)
