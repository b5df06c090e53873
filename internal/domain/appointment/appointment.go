package appointment

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/google/uuid"
)

// State transitions:
//
//	scheduled → confirmed → completed
//	scheduled → completed
//	scheduled → cancelled
//	confirmed → cancelled
//
// completed and cancelled are terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 480
)

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID      uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	ProfessionalID uuid.UUID `gorm:"column:professional_id;type:uuid;not null;index"`

	StartsAt        time.Time `gorm:"column:starts_at;not null;index"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null"`
	// Stored so the exclusion constraint can index the range directly.
	EndsAt time.Time `gorm:"column:ends_at;not null"`
	Status Status    `gorm:"column:status;type:varchar(20);not null;default:'scheduled';index"`

	ValueCents *int64  `gorm:"column:value_cents"`
	Notes      *string `gorm:"column:notes;type:text"`

	CancelledAt        *time.Time `gorm:"column:cancelled_at"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

// NormalizeTime drops sub-second precision and pins the zone to UTC so stored
// and candidate instants compare consistently.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// SetSlot assigns start and duration and keeps EndsAt in sync.
func (a *Appointment) SetSlot(start time.Time, durationMinutes int) {
	a.StartsAt = NormalizeTime(start)
	a.DurationMinutes = durationMinutes
	a.EndsAt = a.StartsAt.Add(time.Duration(durationMinutes) * time.Minute)
}

func (a *Appointment) Interval() Interval {
	return NewInterval(a.StartsAt, a.DurationMinutes)
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	for _, s := range transitions[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// EnsureEditable rejects core-field edits on terminal appointments.
func (a *Appointment) EnsureEditable() error {
	switch a.Status {
	case StatusCompleted:
		return ErrCompletedImmutable
	case StatusCancelled:
		return ErrCancelledImmutable
	}
	return nil
}

// TransitionTo applies the status machine and stamps the bookkeeping fields.
func (a *Appointment) TransitionTo(newStatus Status, by uuid.UUID, reason string, now time.Time) error {
	if !newStatus.IsValid() {
		return ErrInvalidStatus
	}
	if !a.CanTransitionTo(newStatus) {
		return ErrInvalidStatusTransition
	}

	a.Status = newStatus
	switch newStatus {
	case StatusCancelled:
		a.CancelledAt = &now
		a.CancelledBy = &by
		a.CancellationReason = reason
	case StatusCompleted:
		a.CompletedAt = &now
	}
	return nil
}

func ValidateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

type ScheduleCommand struct {
	PatientID       uuid.UUID
	ProfessionalID  uuid.UUID
	StartsAt        time.Time
	DurationMinutes int
	ValueCents      *int64
	Notes           *string
}

type RescheduleCommand struct {
	StartsAt        *time.Time
	DurationMinutes *int
	ProfessionalID  *uuid.UUID
	PatientID       *uuid.UUID
	ValueCents      *int64
	Notes           *string
}

type ListAppointmentsQuery struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Status         *Status
	From           *time.Time
	To             *time.Time
	// Professional visibility of the caller
	Scope    access.Scope
	Page     int
	PageSize int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
