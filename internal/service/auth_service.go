package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = domain.NewError(domain.KindUnauthenticated, "invalid email or password")
	ErrAccountLocked      = domain.NewError(domain.KindUnauthenticated, "account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = domain.NewError(domain.KindUnauthenticated, "account is inactive")
	ErrMFARequired        = domain.NewError(domain.KindUnauthenticated, "multi-factor code required")
	ErrInvalidMFACode     = domain.NewError(domain.KindInvalidArgument, "invalid multi-factor code")
	ErrMFANotEnrolled     = domain.NewError(domain.KindBusinessRuleViolation, "multi-factor authentication is not enrolled")
	ErrTokenRevoked       = domain.NewError(domain.KindUnauthenticated, "token has been revoked")
	ErrEmailTaken         = domain.NewError(domain.KindConflict, "email is already registered")
	ErrWeakPassword       = domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
)

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
	minPasswordLength = 12
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// RegisterFailedLogin increments the failure counter and sets lockedUntil
	// once the counter reaches threshold, in one statement.
	RegisterFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockedUntil time.Time) error
	RegisterSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetMFA(ctx context.Context, id uuid.UUID, secret string, enabled bool) error
}

// StaffLookup resolves the staff record ids embedded in tokens.
type StaffLookup interface {
	ProfessionalByUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	SecretaryByUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

type staffLookup struct {
	professionals professional.Repository
	secretaries   secretary.Repository
}

func NewStaffLookup(professionals professional.Repository, secretaries secretary.Repository) StaffLookup {
	return staffLookup{professionals: professionals, secretaries: secretaries}
}

func (l staffLookup) ProfessionalByUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	p, err := l.professionals.GetByUserID(ctx, userID)
	if errors.Is(err, professional.ErrProfessionalNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}

func (l staffLookup) SecretaryByUser(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	s, err := l.secretaries.GetByUserID(ctx, userID)
	if errors.Is(err, secretary.ErrSecretaryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s.ID, nil
}

type LoginRequest struct {
	Email    string
	Password string
	MFACode  string
	IP       string
}

type AuthService struct {
	userRepo   UserRepository
	staff      StaffLookup
	jwtManager *auth.JWTManager
	revoked    auth.RevocationStore
	auditSvc   *AuditService
	issuer     string
	log        *zap.Logger
	now        func() time.Time
	bcryptCost int
}

func NewAuthService(
	userRepo UserRepository,
	staff StaffLookup,
	jwtManager *auth.JWTManager,
	revoked auth.RevocationStore,
	auditSvc *AuditService,
	issuer string,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		staff:      staff,
		jwtManager: jwtManager,
		revoked:    revoked,
		auditSvc:   auditSvc,
		issuer:     issuer,
		log:        log,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		// Hash anyway so response time does not reveal whether the email exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.registerFailure(ctx, user, req.IP)
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if req.MFACode == "" {
			return nil, ErrMFARequired
		}
		if !auth.ValidateTOTP(req.MFACode, user.MFASecret, s.now()) {
			s.registerFailure(ctx, user, req.IP)
			return nil, ErrInvalidMFACode
		}
	}

	if err := s.userRepo.RegisterSuccessfulLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.log.Warn("failed to record login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     domain.Identity{UserID: user.ID, Role: user.Role, Email: user.Email, IP: req.IP},
		Action:       domain.ActionLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
	})
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", req.IP),
	)

	return pair, nil
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// fresh pair is issued.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}
	return s.issue(ctx, user)
}

// Logout revokes the access token and, when supplied, the refresh token.
func (s *AuthService) Logout(ctx context.Context, caller domain.Identity, access *domain.Claims, refreshToken string) error {
	if err := s.revoke(ctx, access); err != nil {
		return fmt.Errorf("revoking access token: %w", err)
	}
	if refreshToken != "" {
		if claims, err := s.jwtManager.ValidateRefreshToken(refreshToken); err == nil && claims.UserID == access.UserID {
			if err := s.revoke(ctx, claims); err != nil {
				return fmt.Errorf("revoking refresh token: %w", err)
			}
		}
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionLogout,
		ResourceType: "user",
		ResourceID:   caller.UserID.String(),
	})
	return nil
}

// Authenticate validates an access token for the HTTP middleware.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Claims, error) {
	claims, err := s.jwtManager.ValidateAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, domain.NewError(domain.KindUnauthenticated, "token has expired")
		}
		return nil, domain.NewError(domain.KindUnauthenticated, "invalid token")
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) Me(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, caller.UserID)
}

// ChangePassword updates a user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.Identity, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := validatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash), s.now().UTC()); err != nil {
		return err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "user_password",
		ResourceID:   user.ID.String(),
	})
	return nil
}

// EnrollMFA stores a new TOTP secret; it only takes effect after VerifyMFA.
func (s *AuthService) EnrollMFA(ctx context.Context, caller domain.Identity) (*auth.TOTPEnrollment, error) {
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	enrollment, err := auth.GenerateTOTP(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetMFA(ctx, user.ID, enrollment.Secret, false); err != nil {
		return nil, fmt.Errorf("storing mfa secret: %w", err)
	}
	return enrollment, nil
}

func (s *AuthService) VerifyMFA(ctx context.Context, caller domain.Identity, code string) error {
	user, err := s.userRepo.GetByID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if user.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !auth.ValidateTOTP(code, user.MFASecret, s.now()) {
		return ErrInvalidMFACode
	}
	if err := s.userRepo.SetMFA(ctx, user.ID, user.MFASecret, true); err != nil {
		return fmt.Errorf("enabling mfa: %w", err)
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Identity:     caller,
		Action:       domain.ActionUpdate,
		ResourceType: "user_mfa",
		ResourceID:   user.ID.String(),
		Changes:      map[string]any{"mfa_enabled": true},
	})
	return nil
}

// SeedAdmin creates an administrator account. It fails with ErrEmailTaken
// when the email is already registered.
func (s *AuthService) SeedAdmin(ctx context.Context, name, email, password string, birthDate time.Time) (*domain.User, error) {
	v := &validator{}
	v.check(name != "", "name is required")
	v.check(validEmail(email), "email is invalid")
	if err := v.err(); err != nil {
		return nil, err
	}
	if err := validatePasswordStrength(password); err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &domain.User{
		Name:              name,
		Email:             email,
		PasswordHash:      string(hash),
		Role:              domain.RoleAdmin,
		BirthDate:         dateOnly(birthDate),
		IsActive:          true,
		PasswordChangedAt: s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	claims := &domain.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}

	var err error
	switch user.Role {
	case domain.RoleProfessional:
		claims.ProfessionalID, err = s.staff.ProfessionalByUser(ctx, user.ID)
	case domain.RoleSecretary:
		claims.SecretaryID, err = s.staff.SecretaryByUser(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving staff record: %w", err)
	}

	pair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}
	return pair, nil
}

func (s *AuthService) registerFailure(ctx context.Context, user *domain.User, ip string) {
	lockedUntil := s.now().Add(lockDuration).UTC()
	if err := s.userRepo.RegisterFailedLogin(ctx, user.ID, maxFailedAttempts, lockedUntil); err != nil {
		s.log.Error("failed to record login failure", zap.Error(err))
	}
	s.log.Warn("failed login attempt",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
		zap.Int("previous_failures", user.FailedLoginCount),
	)
}

func (s *AuthService) ensureNotRevoked(ctx context.Context, claims *domain.Claims) error {
	if claims.TokenID == "" {
		return nil
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return fmt.Errorf("checking token revocation: %w", err)
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *domain.Claims) error {
	if claims == nil || claims.TokenID == "" {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt.Sub(s.now()))
}

func validatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
