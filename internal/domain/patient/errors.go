package patient

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrPatientNotFound    = domain.NewError(domain.KindNotFound, "patient not found")
	ErrCPFAlreadyExists   = domain.NewError(domain.KindConflict, "patient with this CPF already exists")
	ErrEmailAlreadyExists = domain.NewError(domain.KindConflict, "patient with this email already exists")
	ErrInvalidCPF         = domain.NewError(domain.KindInvalidArgument, "invalid CPF")
	ErrInvalidBirthDate   = domain.NewError(domain.KindInvalidArgument, "birth date cannot be in the future")
	ErrPatientInactive    = domain.NewError(domain.KindBusinessRuleViolation, "patient is inactive")
)
