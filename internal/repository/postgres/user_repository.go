package postgres

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return createUser(r.db.WithContext(ctx), u)
}

func createUser(tx *gorm.DB, u *domain.User) error {
	if err := tx.Create(u).Error; err != nil {
		if isUniqueViolation(err, "email") {
			return service.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&n).Error
	return n > 0, err
}

// RegisterFailedLogin bumps the counter and, once it reaches threshold, locks
// the account and starts counting again. Both columns read the pre-update row,
// so concurrent failures cannot skip the lock.
func (r *UserRepository) RegisterFailedLogin(ctx context.Context, id uuid.UUID, threshold int, lockedUntil time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": gorm.Expr("CASE WHEN failed_login_count + 1 >= ? THEN 0 ELSE failed_login_count + 1 END", threshold),
		"locked_until":       gorm.Expr("CASE WHEN failed_login_count + 1 >= ? THEN ?::timestamptz ELSE locked_until END", threshold, lockedUntil),
	}).Error
}

func (r *UserRepository) RegisterSuccessfulLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": 0,
		"locked_until":       nil,
		"last_login_at":      at,
	}).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash, "password_changed_at": changedAt})
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

func (r *UserRepository) SetMFA(ctx context.Context, id uuid.UUID, secret string, enabled bool) error {
	return r.update(ctx, id, map[string]any{"mfa_secret": secret, "mfa_enabled": enabled})
}

func (r *UserRepository) update(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
