package secretary

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type Secretary struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex;not null"`
}

func (Secretary) TableName() string {
	return "clinical.secretaries"
}

// Link grants a secretary visibility over one professional's records.
type Link struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	SecretaryID    uuid.UUID `gorm:"column:secretary_id;type:uuid;not null;uniqueIndex:uq_secretary_professional"`
	ProfessionalID uuid.UUID `gorm:"column:professional_id;type:uuid;not null;uniqueIndex:uq_secretary_professional;index"`
}

func (Link) TableName() string {
	return "clinical.secretary_professional_links"
}

type Profile struct {
	Secretary
	Name            string      `gorm:"column:name"`
	Email           string      `gorm:"column:email"`
	IsActive        bool        `gorm:"column:is_active"`
	ProfessionalIDs []uuid.UUID `gorm:"-"`
}

type CreateSecretaryCommand struct {
	Name      string
	Email     string
	Password  string
	BirthDate time.Time
}

type ListSecretariesQuery struct {
	Search          string
	IncludeInactive bool
	Scope           access.Scope
}
