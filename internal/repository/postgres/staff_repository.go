package postgres

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StaffWriter creates a login and its staff profile in one transaction.
type StaffWriter struct {
	db *gorm.DB
}

func NewStaffWriter(db *gorm.DB) *StaffWriter {
	return &StaffWriter{db: db}
}

func (w *StaffWriter) CreateProfessional(ctx context.Context, u *domain.User, p *professional.Professional) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createUser(tx, u); err != nil {
			return err
		}
		p.UserID = u.ID
		if err := tx.Create(p).Error; err != nil {
			if isUniqueViolation(err, "license") {
				return professional.ErrLicenseAlreadyExists
			}
			return err
		}
		return nil
	})
}

func (w *StaffWriter) CreateSecretary(ctx context.Context, u *domain.User, s *secretary.Secretary) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createUser(tx, u); err != nil {
			return err
		}
		s.UserID = u.ID
		return tx.Create(s).Error
	})
}

type ProfessionalRepository struct {
	db *gorm.DB
}

func NewProfessionalRepository(db *gorm.DB) *ProfessionalRepository {
	return &ProfessionalRepository{db: db}
}

func (r *ProfessionalRepository) Create(ctx context.Context, p *professional.Professional) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err, "license") {
			return professional.ErrLicenseAlreadyExists
		}
		return err
	}
	return nil
}

func (r *ProfessionalRepository) profiles(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("clinical.professionals AS p").
		Select("p.*, u.name, u.email, u.is_active").
		Joins("JOIN auth.users u ON u.id = p.user_id")
}

func (r *ProfessionalRepository) GetByID(ctx context.Context, id uuid.UUID) (*professional.Profile, error) {
	var p professional.Profile
	if err := r.profiles(ctx).Where("p.id = ?", id).Take(&p).Error; err != nil {
		return nil, notFound(err, professional.ErrProfessionalNotFound)
	}
	return &p, nil
}

func (r *ProfessionalRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*professional.Professional, error) {
	var p professional.Professional
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, notFound(err, professional.ErrProfessionalNotFound)
	}
	return &p, nil
}

func (r *ProfessionalRepository) ExistsByLicense(ctx context.Context, license string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&professional.Professional{}).Where("license_number = ?", license).Count(&n).Error
	return n > 0, err
}

func (r *ProfessionalRepository) List(ctx context.Context, q *professional.ListProfessionalsQuery) ([]*professional.Profile, error) {
	out := []*professional.Profile{}
	if q.Scope.IsEmpty() {
		return out, nil
	}
	db := scoped(r.profiles(ctx), "p.id", q.Scope)
	if !q.IncludeInactive {
		db = db.Where("u.is_active = ?", true)
	}
	if q.Specialty != "" {
		db = db.Where("p.specialty ILIKE ?", q.Specialty)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where("(u.name ILIKE ? OR u.email ILIKE ? OR p.license_number ILIKE ?)", pattern, pattern, pattern)
	}
	err := db.Order("u.name ASC").Find(&out).Error
	return out, err
}

func (r *ProfessionalRepository) Specialties(ctx context.Context) ([]string, error) {
	out := []string{}
	err := r.db.WithContext(ctx).
		Table("clinical.professionals AS p").
		Joins("JOIN auth.users u ON u.id = p.user_id").
		Where("u.is_active = ?", true).
		Distinct().
		Order("p.specialty").
		Pluck("p.specialty", &out).Error
	return out, err
}

// Count counts active professionals inside scope.
func (r *ProfessionalRepository) Count(ctx context.Context, scope access.Scope) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Table("clinical.professionals AS p"), "p.id", scope).
		Joins("JOIN auth.users u ON u.id = p.user_id").
		Where("u.is_active = ?", true).
		Count(&n).Error
	return n, err
}

type SecretaryRepository struct {
	db *gorm.DB
}

func NewSecretaryRepository(db *gorm.DB) *SecretaryRepository {
	return &SecretaryRepository{db: db}
}

func (r *SecretaryRepository) Create(ctx context.Context, s *secretary.Secretary) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SecretaryRepository) profiles(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("clinical.secretaries AS s").
		Select("s.*, u.name, u.email, u.is_active").
		Joins("JOIN auth.users u ON u.id = s.user_id")
}

func (r *SecretaryRepository) GetByID(ctx context.Context, id uuid.UUID) (*secretary.Profile, error) {
	var s secretary.Profile
	if err := r.profiles(ctx).Where("s.id = ?", id).Take(&s).Error; err != nil {
		return nil, notFound(err, secretary.ErrSecretaryNotFound)
	}
	return &s, nil
}

func (r *SecretaryRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*secretary.Secretary, error) {
	var s secretary.Secretary
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&s).Error; err != nil {
		return nil, notFound(err, secretary.ErrSecretaryNotFound)
	}
	return &s, nil
}

// List returns secretaries with their linked professionals filled in.
func (r *SecretaryRepository) List(ctx context.Context, q *secretary.ListSecretariesQuery) ([]*secretary.Profile, error) {
	out := []*secretary.Profile{}
	if q.Scope.IsEmpty() {
		return out, nil
	}
	db := scoped(r.profiles(ctx), "s.id", q.Scope)
	if !q.IncludeInactive {
		db = db.Where("u.is_active = ?", true)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where("(u.name ILIKE ? OR u.email ILIKE ?)", pattern, pattern)
	}
	if err := db.Order("u.name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(out))
	byID := make(map[uuid.UUID]*secretary.Profile, len(out))
	for i, s := range out {
		ids[i] = s.ID
		byID[s.ID] = s
		s.ProfessionalIDs = []uuid.UUID{}
	}
	var links []secretary.Link
	if err := r.db.WithContext(ctx).Where("secretary_id IN ?", ids).Order("created_at").Find(&links).Error; err != nil {
		return nil, err
	}
	for _, l := range links {
		byID[l.SecretaryID].ProfessionalIDs = append(byID[l.SecretaryID].ProfessionalIDs, l.ProfessionalID)
	}
	return out, nil
}

func (r *SecretaryRepository) Count(ctx context.Context, scope access.Scope) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Table("clinical.secretaries AS s"), "s.id", scope).
		Joins("JOIN auth.users u ON u.id = s.user_id").
		Where("u.is_active = ?", true).
		Count(&n).Error
	return n, err
}

func (r *SecretaryRepository) Link(ctx context.Context, l *secretary.Link) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err, "") {
			return secretary.ErrLinkAlreadyExists
		}
		return err
	}
	return nil
}

func (r *SecretaryRepository) Unlink(ctx context.Context, secretaryID, professionalID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("secretary_id = ? AND professional_id = ?", secretaryID, professionalID).
		Delete(&secretary.Link{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return secretary.ErrLinkNotFound
	}
	return nil
}

func (r *SecretaryRepository) ProfessionalIDs(ctx context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).Model(&secretary.Link{}).
		Where("secretary_id = ?", secretaryID).
		Pluck("professional_id", &ids).Error
	return ids, err
}

func (r *SecretaryRepository) SecretaryIDs(ctx context.Context, professionalID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.WithContext(ctx).Model(&secretary.Link{}).
		Where("professional_id = ?", professionalID).
		Pluck("secretary_id", &ids).Error
	return ids, err
}
