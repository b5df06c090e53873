package domain

import "errors"

// Kind is the stable, caller-visible classification of a domain error.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindSchedulingConflict    Kind = "scheduling_conflict"
	KindInvalidArgument       Kind = "invalid_argument"
	KindInsufficientStock     Kind = "insufficient_stock"
	KindBusinessRuleViolation Kind = "business_rule_violation"
	KindAccessDenied          Kind = "access_denied"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInternal              Kind = "internal"
)

// Error carries a Kind plus a human readable message. Two errors match under
// errors.Is when they are the same value, or when the target is one of the
// bare kind sentinels below and the kinds agree.
type Error struct {
	Kind    Kind
	Message string
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrSchedulingConflict    = &Error{Kind: KindSchedulingConflict}
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock}
	ErrBusinessRuleViolation = &Error{Kind: KindBusinessRuleViolation}
	ErrAccessDenied          = &Error{Kind: KindAccessDenied}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
)

// KindOf walks the wrap chain and returns the first Kind found, or
// KindInternal for errors that carry none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for _, k := range []*Error{
		ErrNotFound, ErrConflict, ErrSchedulingConflict, ErrInvalidArgument,
		ErrInsufficientStock, ErrBusinessRuleViolation, ErrAccessDenied, ErrUnauthenticated,
	} {
		if errors.Is(err, k) {
			return k.Kind
		}
	}
	return KindInternal
}
