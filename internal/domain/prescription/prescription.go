package prescription

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Medication is one line of a prescription.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`             // e.g. "500mg"
	Frequency string `json:"frequency"`          // e.g. "twice daily"
	Duration  string `json:"duration,omitempty"` // e.g. "7 days"
	Quantity  int    `json:"quantity,omitempty"`
}

type Prescription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PatientID      uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index"`
	ProfessionalID uuid.UUID  `gorm:"column:professional_id;type:uuid;not null;index"`
	AppointmentID  *uuid.UUID `gorm:"column:appointment_id;type:uuid;index"`

	Medications datatypes.JSONSlice[Medication] `gorm:"column:medications;type:jsonb;not null"`
	Notes       string                          `gorm:"column:notes;type:text"`
	ValidUntil  *time.Time                      `gorm:"column:valid_until;type:date"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Prescription) TableName() string {
	return "clinical.prescriptions"
}

func (p *Prescription) IsExpired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

type CreatePrescriptionCommand struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	AppointmentID  *uuid.UUID
	Medications    []Medication
	Notes          string
	ValidUntil     *time.Time
}
