package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minStaffAge = 18

var ErrUnderage = domain.NewError(domain.KindInvalidArgument, "staff members must be at least 18 years old")

// StaffWriter persists a user together with its staff record in one transaction.
type StaffWriter interface {
	CreateProfessional(ctx context.Context, u *domain.User, p *professional.Professional) error
	CreateSecretary(ctx context.Context, u *domain.User, s *secretary.Secretary) error
}

type StaffService struct {
	users         UserRepository
	writer        StaffWriter
	professionals professional.Repository
	secretaries   secretary.Repository
	scopes        ScopeResolver
	auditSvc      *AuditService
	log           *zap.Logger
	now           func() time.Time
	bcryptCost    int
}

func NewStaffService(
	users UserRepository,
	writer StaffWriter,
	professionals professional.Repository,
	secretaries secretary.Repository,
	scopes ScopeResolver,
	auditSvc *AuditService,
	log *zap.Logger,
) *StaffService {
	return &StaffService{
		users:         users,
		writer:        writer,
		professionals: professionals,
		secretaries:   secretaries,
		scopes:        scopes,
		auditSvc:      auditSvc,
		log:           log,
		now:           time.Now,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

func (s *StaffService) CreateProfessional(ctx context.Context, caller domain.Identity, cmd *professional.CreateProfessionalCommand) (*professional.Profile, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	v := &validator{}
	s.checkAccount(v, cmd.Name, cmd.Email, cmd.Password, cmd.BirthDate)
	v.check(strings.TrimSpace(cmd.Specialty) != "", "specialty is required")
	v.check(len(cmd.Specialty) <= 100, "specialty must be at most 100 characters")
	v.check(strings.TrimSpace(cmd.LicenseNumber) != "", "license_number is required")
	v.check(len(cmd.LicenseNumber) <= 30, "license_number must be at most 30 characters")
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.checkAge(cmd.BirthDate); err != nil {
		return nil, err
	}

	license := strings.ToUpper(strings.TrimSpace(cmd.LicenseNumber))
	taken, err := s.professionals.ExistsByLicense(ctx, license)
	if err != nil {
		return nil, fmt.Errorf("checking license: %w", err)
	}
	if taken {
		return nil, professional.ErrLicenseAlreadyExists
	}

	u, err := s.newUser(ctx, cmd.Name, cmd.Email, cmd.Password, cmd.BirthDate, domain.RoleProfessional)
	if err != nil {
		return nil, err
	}
	p := &professional.Professional{
		Specialty:     strings.TrimSpace(cmd.Specialty),
		LicenseNumber: license,
	}
	if err := s.writer.CreateProfessional(ctx, u, p); err != nil {
		return nil, fmt.Errorf("creating professional: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "professional",
		ResourceID:   p.ID.String(),
		Changes:      map[string]any{"user_id": u.ID, "specialty": p.Specialty},
	})
	s.log.Info("professional created",
		zap.String("professional_id", p.ID.String()),
		zap.String("user_id", u.ID.String()),
	)

	return &professional.Profile{Professional: *p, Name: u.Name, Email: u.Email, IsActive: u.IsActive}, nil
}

func (s *StaffService) CreateSecretary(ctx context.Context, caller domain.Identity, cmd *secretary.CreateSecretaryCommand) (*secretary.Profile, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	v := &validator{}
	s.checkAccount(v, cmd.Name, cmd.Email, cmd.Password, cmd.BirthDate)
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := s.checkAge(cmd.BirthDate); err != nil {
		return nil, err
	}

	u, err := s.newUser(ctx, cmd.Name, cmd.Email, cmd.Password, cmd.BirthDate, domain.RoleSecretary)
	if err != nil {
		return nil, err
	}
	sec := &secretary.Secretary{}
	if err := s.writer.CreateSecretary(ctx, u, sec); err != nil {
		return nil, fmt.Errorf("creating secretary: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "secretary",
		ResourceID:   sec.ID.String(),
		Changes:      map[string]any{"user_id": u.ID},
	})
	s.log.Info("secretary created", zap.String("secretary_id", sec.ID.String()))

	return &secretary.Profile{
		Secretary:       *sec,
		Name:            u.Name,
		Email:           u.Email,
		IsActive:        u.IsActive,
		ProfessionalIDs: []uuid.UUID{},
	}, nil
}

func (s *StaffService) GetProfessional(ctx context.Context, caller domain.Identity, id uuid.UUID) (*professional.Profile, error) {
	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindProfessional, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *StaffService) ListProfessionals(ctx context.Context, caller domain.Identity, q *professional.ListProfessionalsQuery) ([]*professional.Profile, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return []*professional.Profile{}, nil
	}
	q.Scope = scope
	q.Search = strings.TrimSpace(q.Search)
	return s.professionals.List(ctx, q)
}

func (s *StaffService) Specialties(ctx context.Context) ([]string, error) {
	return s.professionals.Specialties(ctx)
}

func (s *StaffService) SetProfessionalActive(ctx context.Context, caller domain.Identity, id uuid.UUID, active bool) (*professional.Profile, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, p.UserID, active); err != nil {
		return nil, fmt.Errorf("changing professional state: %w", err)
	}
	p.IsActive = active
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "professional",
		ResourceID:   id.String(),
		Changes:      map[string]any{"is_active": active},
	})
	return p, nil
}

// GetSecretary returns the profile with its linked professional ids.
func (s *StaffService) GetSecretary(ctx context.Context, caller domain.Identity, id uuid.UUID) (*secretary.Profile, error) {
	sec, err := s.secretaries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInScope(ctx, s.scopes, caller, access.KindSecretary, sec.ID); err != nil {
		return nil, err
	}
	ids, err := s.secretaries.ProfessionalIDs(ctx, sec.ID)
	if err != nil {
		return nil, fmt.Errorf("loading secretary links: %w", err)
	}
	sec.ProfessionalIDs = ids
	return sec, nil
}

func (s *StaffService) ListSecretaries(ctx context.Context, caller domain.Identity, q *secretary.ListSecretariesQuery) ([]*secretary.Profile, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindSecretary)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return []*secretary.Profile{}, nil
	}
	q.Scope = scope
	q.Search = strings.TrimSpace(q.Search)
	return s.secretaries.List(ctx, q)
}

func (s *StaffService) SetSecretaryActive(ctx context.Context, caller domain.Identity, id uuid.UUID, active bool) (*secretary.Profile, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	sec, err := s.secretaries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, sec.UserID, active); err != nil {
		return nil, fmt.Errorf("changing secretary state: %w", err)
	}
	sec.IsActive = active
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "secretary",
		ResourceID:   id.String(),
		Changes:      map[string]any{"is_active": active},
	})
	return sec, nil
}

// LinkSecretary grants the secretary visibility over the professional.
func (s *StaffService) LinkSecretary(ctx context.Context, caller domain.Identity, secretaryID, professionalID uuid.UUID) error {
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.secretaries.GetByID(ctx, secretaryID); err != nil {
		return err
	}
	if _, err := s.professionals.GetByID(ctx, professionalID); err != nil {
		return err
	}

	if err := s.secretaries.Link(ctx, &secretary.Link{SecretaryID: secretaryID, ProfessionalID: professionalID}); err != nil {
		return err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionCreate,
		ResourceType: "secretary_link",
		ResourceID:   secretaryID.String(),
		Changes:      map[string]any{"professional_id": professionalID},
	})
	return nil
}

func (s *StaffService) UnlinkSecretary(ctx context.Context, caller domain.Identity, secretaryID, professionalID uuid.UUID) error {
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	if err := s.secretaries.Unlink(ctx, secretaryID, professionalID); err != nil {
		return err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionDelete,
		ResourceType: "secretary_link",
		ResourceID:   secretaryID.String(),
		Changes:      map[string]any{"professional_id": professionalID},
	})
	return nil
}

func (s *StaffService) checkAccount(v *validator, name, email, password string, birthDate time.Time) {
	v.check(strings.TrimSpace(name) != "", "name is required")
	v.check(len(strings.TrimSpace(name)) <= 150, "name must be at most 150 characters")
	v.check(validEmail(email), "email is invalid")
	v.check(len(password) >= minPasswordLength, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	v.check(!birthDate.IsZero(), "birth_date is required")
}

func (s *StaffService) checkAge(birthDate time.Time) error {
	if ageAt(birthDate, s.now()) < minStaffAge {
		return ErrUnderage
	}
	return nil
}

func (s *StaffService) newUser(ctx context.Context, name, email, password string, birthDate time.Time, role domain.Role) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &domain.User{
		Name:              strings.TrimSpace(name),
		Email:             email,
		PasswordHash:      string(hash),
		Role:              role,
		BirthDate:         dateOnly(birthDate),
		IsActive:          true,
		PasswordChangedAt: s.now().UTC(),
	}, nil
}

func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
