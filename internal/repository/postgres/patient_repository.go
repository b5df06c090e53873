package postgres

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func translatePatientError(err error) error {
	switch {
	case isUniqueViolation(err, "cpf"):
		return patient.ErrCPFAlreadyExists
	case isUniqueViolation(err, "email"):
		return patient.ErrEmailAlreadyExists
	}
	return err
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return translatePatientError(err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, notFound(err, patient.ErrPatientNotFound)
	}
	return &p, nil
}

func (r *PatientRepository) GetByCPF(ctx context.Context, cpf string) (*patient.Patient, error) {
	var p patient.Patient
	if err := r.db.WithContext(ctx).Where("cpf = ?", cpf).Take(&p).Error; err != nil {
		return nil, notFound(err, patient.ErrPatientNotFound)
	}
	return &p, nil
}

// Update writes only the fields set on cmd. Values are expected to be
// validated and normalised by the caller.
func (r *PatientRepository) Update(ctx context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	cols := map[string]any{}
	if cmd.Name != nil {
		cols["name"] = *cmd.Name
	}
	if cmd.CPF != nil {
		cols["cpf"] = *cmd.CPF
	}
	if cmd.Email != nil {
		cols["email"] = *cmd.Email
	}
	if cmd.Phone != nil {
		cols["phone"] = *cmd.Phone
	}
	if cmd.Address != nil {
		cols["address"] = *cmd.Address
	}
	if cmd.BirthDate != nil {
		cols["birth_date"] = *cmd.BirthDate
	}

	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&patient.Patient{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, translatePatientError(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, patient.ErrPatientNotFound
		}
	}
	return r.GetByID(ctx, id)
}

func (r *PatientRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&patient.Patient{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	out := &patient.PagedPatients{Patients: []*patient.Patient{}, Page: q.Page, PageSize: q.PageSize}
	if q.Scope.IsEmpty() {
		return out, nil
	}

	db := scoped(r.db.WithContext(ctx).Model(&patient.Patient{}), "id", q.Scope)
	if !q.IncludeInactive {
		db = db.Where("is_active = ?", true)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		if digits := onlyDigits(q.Search); digits != "" {
			db = db.Where("(name ILIKE ? OR email ILIKE ? OR cpf LIKE ?)", pattern, pattern, "%"+digits+"%")
		} else {
			db = db.Where("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
		}
	}

	if err := db.Count(&out.TotalCount).Error; err != nil {
		return nil, err
	}
	if out.TotalCount > 0 {
		if err := paginate(db, q.Page, q.PageSize).Order("name ASC").Find(&out.Patients).Error; err != nil {
			return nil, err
		}
	}
	out.TotalPages = totalPages(out.TotalCount, q.PageSize)
	return out, nil
}

func (r *PatientRepository) ExistsByCPF(ctx context.Context, cpf string, excludeID *uuid.UUID) (bool, error) {
	return r.exists(ctx, "cpf = ?", cpf, excludeID)
}

func (r *PatientRepository) ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	return r.exists(ctx, "email = ?", email, excludeID)
}

func (r *PatientRepository) exists(ctx context.Context, cond string, value any, excludeID *uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx).Model(&patient.Patient{}).Where(cond, value)
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	var n int64
	err := db.Count(&n).Error
	return n > 0, err
}

// Count counts active patients inside scope.
func (r *PatientRepository) Count(ctx context.Context, scope access.Scope) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Model(&patient.Patient{}), "id", scope).
		Where("is_active = ?", true).
		Count(&n).Error
	return n, err
}

func (r *PatientRepository) CountCreatedBetween(ctx context.Context, scope access.Scope, from, to time.Time) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Model(&patient.Patient{}), "id", scope).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error
	return n, err
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
