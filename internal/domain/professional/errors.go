package professional

import "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"

var (
	ErrProfessionalNotFound = domain.NewError(domain.KindNotFound, "professional not found")
	ErrLicenseAlreadyExists = domain.NewError(domain.KindConflict, "license number is already registered")
	ErrProfessionalInactive = domain.NewError(domain.KindBusinessRuleViolation, "professional is inactive")
)
