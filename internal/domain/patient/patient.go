package patient

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

type ContactInfo struct {
	Phone   string `gorm:"column:phone;type:varchar(20)"`
	Email   string `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	Address string `gorm:"column:address;type:text"`
}

type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Name      string    `gorm:"column:name;type:varchar(150);not null"`
	CPF       string    `gorm:"column:cpf;type:char(11);uniqueIndex;not null"`
	BirthDate time.Time `gorm:"column:birth_date;type:date;not null"`

	ContactInfo

	IsActive bool `gorm:"column:is_active;default:true;index"`

	// Staff user who registered the patient
	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Patient) TableName() string {
	return "clinical.patients"
}

func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		years--
	}
	return years
}

func (p *Patient) FormattedCPF() string {
	return FormatCPF(p.CPF)
}

type CreatePatientCommand struct {
	Name      string
	CPF       string
	Email     string
	Phone     string
	Address   string
	BirthDate time.Time
	CreatedBy uuid.UUID
}

type UpdatePatientCommand struct {
	Name      *string
	CPF       *string
	Email     *string
	Phone     *string
	Address   *string
	BirthDate *time.Time
}

// ListPatientsQuery defines filtering and pagination for patient list queries.
type ListPatientsQuery struct {
	Search          string // name, CPF or email fragment
	IncludeInactive bool
	Scope           access.Scope
	Page            int
	PageSize        int
}

type PagedPatients struct {
	Patients   []*Patient
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
