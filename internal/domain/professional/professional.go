package professional

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Professional struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex;not null"`
	Specialty     string    `gorm:"column:specialty;type:varchar(100);not null;index"`
	LicenseNumber string    `gorm:"column:license_number;type:varchar(30);uniqueIndex;not null"`
}

func (Professional) TableName() string {
	return "clinical.professionals"
}

// Profile joins a professional with the owning user's public attributes.
type Profile struct {
	Professional
	Name     string `gorm:"column:name"`
	Email    string `gorm:"column:email"`
	IsActive bool   `gorm:"column:is_active"`
}

type CreateProfessionalCommand struct {
	Name          string
	Email         string
	Password      string
	BirthDate     time.Time
	Specialty     string
	LicenseNumber string
}

type ListProfessionalsQuery struct {
	Search          string
	Specialty       string
	IncludeInactive bool
	Scope           access.Scope
}
