package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

// ScopeResolver computes which ids of a kind the caller may see and how the
// caller's role attributes new records to a professional.
type ScopeResolver interface {
	Resolve(ctx context.Context, id domain.Identity, kind access.Kind) (access.Scope, error)

	// Owner resolves the professional a new record belongs to. A nil owner
	// means a clinic-wide record; roles that cannot create those get
	// ErrOwnerUnset instead.
	Owner(ctx context.Context, id domain.Identity, requested *uuid.UUID) (*uuid.UUID, error)
	// DefaultOwner is the professional implied by the caller, if any.
	DefaultOwner(id domain.Identity) *uuid.UUID
	CanPrescribe(id domain.Identity) error
}

// PatientLookup derives patients from appointment ownership.
type PatientLookup interface {
	PatientIDsForProfessionals(ctx context.Context, professionalIDs []uuid.UUID) ([]uuid.UUID, error)
}

// LinkLookup reads the secretary ↔ professional link table.
type LinkLookup interface {
	ProfessionalIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error)
	SecretaryIDs(ctx context.Context, professionalID uuid.UUID) ([]uuid.UUID, error)
}

type AccessResolver struct {
	patients PatientLookup
	links    LinkLookup
}

func NewAccessResolver(patients PatientLookup, links LinkLookup) *AccessResolver {
	return &AccessResolver{patients: patients, links: links}
}

// rolePolicy is implemented once per role.
type rolePolicy interface {
	professionals(ctx context.Context) (access.Scope, error)
	patients(ctx context.Context) (access.Scope, error)
	secretaries(ctx context.Context) (access.Scope, error)

	// claimOwner picks the owner of a new record from the requested one.
	claimOwner(requested *uuid.UUID) (*uuid.UUID, error)
	defaultOwner() *uuid.UUID
	mayShare() bool
	mayPrescribe() bool
}

func (r *AccessResolver) policyFor(id domain.Identity) (rolePolicy, error) {
	if id.UserID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	switch id.Role {
	case domain.RoleAdmin:
		return adminPolicy{}, nil
	case domain.RoleProfessional:
		return professionalPolicy{r: r, professionalID: id.ProfessionalID}, nil
	case domain.RoleSecretary:
		return secretaryPolicy{r: r, secretaryID: id.SecretaryID}, nil
	}
	return nil, domain.NewError(domain.KindUnauthenticated, fmt.Sprintf("unknown role %q", id.Role))
}

func (r *AccessResolver) Resolve(ctx context.Context, id domain.Identity, kind access.Kind) (access.Scope, error) {
	cache := scopeCacheFrom(ctx)
	if s, ok := cache.get(id.UserID, kind); ok {
		return s, nil
	}

	policy, err := r.policyFor(id)
	if err != nil {
		return access.Scope{}, err
	}

	var s access.Scope
	switch kind {
	case access.KindProfessional:
		s, err = policy.professionals(ctx)
	case access.KindPatient:
		s, err = policy.patients(ctx)
	case access.KindSecretary:
		s, err = policy.secretaries(ctx)
	default:
		return access.Scope{}, domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("unknown scope kind %q", kind))
	}
	if err != nil {
		return access.Scope{}, fmt.Errorf("resolving %s scope: %w", kind, err)
	}

	cache.put(id.UserID, kind, s)
	return s, nil
}

func (r *AccessResolver) Owner(ctx context.Context, id domain.Identity, requested *uuid.UUID) (*uuid.UUID, error) {
	policy, err := r.policyFor(id)
	if err != nil {
		return nil, err
	}
	owner, err := policy.claimOwner(requested)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		if policy.mayShare() {
			return nil, nil
		}
		return nil, ErrOwnerUnset
	}
	if err := requireInScope(ctx, r, id, access.KindProfessional, *owner); err != nil {
		return nil, err
	}
	return owner, nil
}

func (r *AccessResolver) DefaultOwner(id domain.Identity) *uuid.UUID {
	policy, err := r.policyFor(id)
	if err != nil {
		return nil
	}
	return policy.defaultOwner()
}

func (r *AccessResolver) CanPrescribe(id domain.Identity) error {
	policy, err := r.policyFor(id)
	if err != nil {
		return err
	}
	if !policy.mayPrescribe() {
		return ErrForbidden
	}
	return nil
}

type adminPolicy struct{}

func (adminPolicy) professionals(context.Context) (access.Scope, error) {
	return access.Unrestricted(), nil
}
func (adminPolicy) patients(context.Context) (access.Scope, error) { return access.Unrestricted(), nil }
func (adminPolicy) secretaries(context.Context) (access.Scope, error) {
	return access.Unrestricted(), nil
}

func (adminPolicy) claimOwner(requested *uuid.UUID) (*uuid.UUID, error) { return requested, nil }
func (adminPolicy) defaultOwner() *uuid.UUID                             { return nil }
func (adminPolicy) mayShare() bool                                       { return true }
func (adminPolicy) mayPrescribe() bool                                   { return true }

// professionalPolicy sees its own professional record, patients it has booked
// and the secretaries linked to it. A missing professional record sees nothing.
type professionalPolicy struct {
	r              *AccessResolver
	professionalID *uuid.UUID
}

func (p professionalPolicy) professionals(context.Context) (access.Scope, error) {
	if p.professionalID == nil {
		return access.Only(), nil
	}
	return access.Only(*p.professionalID), nil
}

func (p professionalPolicy) patients(ctx context.Context) (access.Scope, error) {
	if p.professionalID == nil {
		return access.Only(), nil
	}
	ids, err := p.r.patients.PatientIDsForProfessionals(ctx, []uuid.UUID{*p.professionalID})
	if err != nil {
		return access.Scope{}, err
	}
	return access.Only(ids...), nil
}

func (p professionalPolicy) secretaries(ctx context.Context) (access.Scope, error) {
	if p.professionalID == nil {
		return access.Only(), nil
	}
	ids, err := p.r.links.SecretaryIDs(ctx, *p.professionalID)
	if err != nil {
		return access.Scope{}, err
	}
	return access.Only(ids...), nil
}

// claimOwner always attributes to the professional themselves.
func (p professionalPolicy) claimOwner(requested *uuid.UUID) (*uuid.UUID, error) {
	if p.professionalID == nil {
		return nil, ErrForbidden
	}
	if requested != nil && *requested != *p.professionalID {
		return nil, ErrForbidden
	}
	return p.professionalID, nil
}

func (p professionalPolicy) defaultOwner() *uuid.UUID { return p.professionalID }
func (professionalPolicy) mayShare() bool             { return false }
func (professionalPolicy) mayPrescribe() bool         { return true }

// secretaryPolicy sees linked professionals, their patients and itself.
type secretaryPolicy struct {
	r           *AccessResolver
	secretaryID *uuid.UUID
}

func (s secretaryPolicy) professionals(ctx context.Context) (access.Scope, error) {
	if s.secretaryID == nil {
		return access.Only(), nil
	}
	ids, err := s.r.links.ProfessionalIDs(ctx, *s.secretaryID)
	if err != nil {
		return access.Scope{}, err
	}
	return access.Only(ids...), nil
}

func (s secretaryPolicy) patients(ctx context.Context) (access.Scope, error) {
	profs, err := s.professionals(ctx)
	if err != nil {
		return access.Scope{}, err
	}
	if profs.IsEmpty() {
		return access.Only(), nil
	}
	ids, err := s.r.patients.PatientIDsForProfessionals(ctx, profs.IDs())
	if err != nil {
		return access.Scope{}, err
	}
	return access.Only(ids...), nil
}

func (s secretaryPolicy) secretaries(context.Context) (access.Scope, error) {
	if s.secretaryID == nil {
		return access.Only(), nil
	}
	return access.Only(*s.secretaryID), nil
}

func (secretaryPolicy) claimOwner(requested *uuid.UUID) (*uuid.UUID, error) { return requested, nil }
func (secretaryPolicy) defaultOwner() *uuid.UUID                             { return nil }
func (secretaryPolicy) mayShare() bool                                       { return false }
func (secretaryPolicy) mayPrescribe() bool                                   { return false }

type scopeCacheKey struct {
	userID uuid.UUID
	kind   access.Kind
}

type scopeCache struct {
	mu     sync.Mutex
	scopes map[scopeCacheKey]access.Scope
}

type scopeCacheCtxKey struct{}

// WithScopeCache attaches a cache that lives as long as ctx. The HTTP layer
// installs one per request so repeated lookups in a handler hit the store once.
func WithScopeCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeCacheCtxKey{}, &scopeCache{scopes: make(map[scopeCacheKey]access.Scope)})
}

func scopeCacheFrom(ctx context.Context) *scopeCache {
	c, _ := ctx.Value(scopeCacheCtxKey{}).(*scopeCache)
	return c
}

func (c *scopeCache) get(userID uuid.UUID, kind access.Kind) (access.Scope, bool) {
	if c == nil {
		return access.Scope{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scopes[scopeCacheKey{userID, kind}]
	return s, ok
}

func (c *scopeCache) put(userID uuid.UUID, kind access.Kind, s access.Scope) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[scopeCacheKey{userID, kind}] = s
}

// requireInScope resolves kind for the caller and fails with ErrForbidden when
// target is outside it.
func requireInScope(ctx context.Context, r ScopeResolver, id domain.Identity, kind access.Kind, target uuid.UUID) error {
	s, err := r.Resolve(ctx, id, kind)
	if err != nil {
		return err
	}
	if !s.Allows(target) {
		return ErrForbidden
	}
	return nil
}
