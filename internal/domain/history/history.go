package history

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

const (
	MaxDescriptionLength  = 5000
	MaxDiagnosisLength    = 1000
	MaxPrescriptionLength = 2000
)

// Entry is one consultation note in a patient's medical history. Rows are
// changed only through an explicit update.
type Entry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID      uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	ProfessionalID uuid.UUID `gorm:"column:professional_id;type:uuid;not null;index"`

	Description  string    `gorm:"column:description;type:text;not null"`
	Diagnosis    *string   `gorm:"column:diagnosis;type:text"`
	Prescription *string   `gorm:"column:prescription;type:text"`
	ConsultedAt  time.Time `gorm:"column:consulted_at;not null;index"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Entry) TableName() string {
	return "clinical.medical_history"
}

type CreateEntryCommand struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	Description    string
	Diagnosis      *string
	Prescription   *string
	ConsultedAt    time.Time
}

type UpdateEntryCommand struct {
	Description  *string
	Diagnosis    *string
	Prescription *string
	ConsultedAt  *time.Time
}

type ListEntriesQuery struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Search         string
	// Professional visibility of the caller
	Scope    access.Scope
	Page     int
	PageSize int
}

type PagedEntries struct {
	Entries    []*Entry
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
