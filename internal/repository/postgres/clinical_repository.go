package postgres

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, e *history.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *HistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*history.Entry, error) {
	var e history.Entry
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFound(err, history.ErrEntryNotFound)
	}
	return &e, nil
}

func (r *HistoryRepository) Save(ctx context.Context, e *history.Entry) error {
	res := r.db.WithContext(ctx).Model(e).
		Select("description", "diagnosis", "prescription", "consulted_at", "updated_at").
		Updates(e)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return history.ErrEntryNotFound
	}
	return nil
}

func (r *HistoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&history.Entry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return history.ErrEntryNotFound
	}
	return nil
}

// List orders entries newest consultation first.
func (r *HistoryRepository) List(ctx context.Context, q *history.ListEntriesQuery) (*history.PagedEntries, error) {
	out := &history.PagedEntries{Entries: []*history.Entry{}, Page: q.Page, PageSize: q.PageSize}
	if q.Scope.IsEmpty() {
		return out, nil
	}

	db := scoped(r.db.WithContext(ctx).Model(&history.Entry{}), "professional_id", q.Scope)
	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.ProfessionalID != nil {
		db = db.Where("professional_id = ?", *q.ProfessionalID)
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where("(description ILIKE ? OR diagnosis ILIKE ? OR prescription ILIKE ?)", pattern, pattern, pattern)
	}

	if err := db.Count(&out.TotalCount).Error; err != nil {
		return nil, err
	}
	if out.TotalCount > 0 {
		if err := paginate(db, q.Page, q.PageSize).Order("consulted_at DESC").Find(&out.Entries).Error; err != nil {
			return nil, err
		}
	}
	out.TotalPages = totalPages(out.TotalCount, q.PageSize)
	return out, nil
}

func (r *HistoryRepository) Count(ctx context.Context, scope access.Scope) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var n int64
	err := scoped(r.db.WithContext(ctx).Model(&history.Entry{}), "professional_id", scope).Count(&n).Error
	return n, err
}

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	var p prescription.Prescription
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, notFound(err, prescription.ErrPrescriptionNotFound)
	}
	return &p, nil
}

func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, scope access.Scope) ([]*prescription.Prescription, error) {
	out := []*prescription.Prescription{}
	if scope.IsEmpty() {
		return out, nil
	}
	err := scoped(r.db.WithContext(ctx), "professional_id", scope).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
