package service

import (
	"strings"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

var (
	ErrForbidden  = domain.NewError(domain.KindAccessDenied, "forbidden: insufficient permissions")
	ErrOwnerUnset = domain.NewError(domain.KindInvalidArgument, "professional_id is required")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Is lets callers match validation failures as invalid_argument.
func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrInvalidArgument
}

type validator struct {
	errs []string
}

func (v *validator) check(ok bool, msg string) {
	if !ok {
		v.errs = append(v.errs, msg)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.errs}
}

type AuditEntry struct {
	Identity     domain.Identity
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	Changes      map[string]any
}
