package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/google/uuid"
)

// Date is a calendar date on the wire. It accepts "2006-01-02" or a full
// RFC 3339 timestamp and always renders as "2006-01-02".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(time.DateOnly))
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// ---- auth ----

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfa_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type mfaVerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

type userResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	IsActive    bool        `json:"is_active"`
	MFAEnabled  bool        `json:"mfa_enabled"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		MFAEnabled:  u.MFAEnabled,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// ---- staff ----

type createProfessionalRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required"`
	Password      string `json:"password" binding:"required"`
	BirthDate     Date   `json:"birth_date"`
	Specialty     string `json:"specialty" binding:"required"`
	LicenseNumber string `json:"license_number" binding:"required"`
}

type professionalResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Specialty     string    `json:"specialty"`
	LicenseNumber string    `json:"license_number"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toProfessionalResponse(p *professional.Profile) professionalResponse {
	return professionalResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		Name:          p.Name,
		Email:         p.Email,
		Specialty:     p.Specialty,
		LicenseNumber: p.LicenseNumber,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
	}
}

type createSecretaryRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	BirthDate Date   `json:"birth_date"`
}

type secretaryResponse struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	IsActive        bool        `json:"is_active"`
	ProfessionalIDs []uuid.UUID `json:"professional_ids"`
	CreatedAt       time.Time   `json:"created_at"`
}

func toSecretaryResponse(s *secretary.Profile) secretaryResponse {
	ids := s.ProfessionalIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return secretaryResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Name:            s.Name,
		Email:           s.Email,
		IsActive:        s.IsActive,
		ProfessionalIDs: ids,
		CreatedAt:       s.CreatedAt,
	}
}

// ---- patients ----

type createPatientRequest struct {
	Name      string `json:"name" binding:"required"`
	CPF       string `json:"cpf" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	BirthDate Date   `json:"birth_date"`
}

type updatePatientRequest struct {
	Name      *string `json:"name"`
	CPF       *string `json:"cpf"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	BirthDate *Date   `json:"birth_date"`
}

type patientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	BirthDate Date      `json:"birth_date"`
	Age       int       `json:"age"`
	IsActive  bool      `json:"is_active"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPatientResponse(p *patient.Patient, now time.Time) patientResponse {
	return patientResponse{
		ID:        p.ID,
		Name:      p.Name,
		CPF:       p.FormattedCPF(),
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		BirthDate: Date{p.BirthDate},
		Age:       p.Age(now),
		IsActive:  p.IsActive,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ---- appointments ----

type scheduleRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	ProfessionalID  uuid.UUID `json:"professional_id" binding:"required"`
	StartsAt        time.Time `json:"starts_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required"`
	ValueCents      *int64    `json:"value_cents"`
	Notes           *string   `json:"notes"`
}

type rescheduleRequest struct {
	PatientID       *uuid.UUID `json:"patient_id"`
	ProfessionalID  *uuid.UUID `json:"professional_id"`
	StartsAt        *time.Time `json:"starts_at"`
	DurationMinutes *int       `json:"duration_minutes"`
	ValueCents      *int64     `json:"value_cents"`
	Notes           *string    `json:"notes"`
}

type statusRequest struct {
	Status appointment.Status `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type appointmentResponse struct {
	ID                 uuid.UUID          `json:"id"`
	PatientID          uuid.UUID          `json:"patient_id"`
	ProfessionalID     uuid.UUID          `json:"professional_id"`
	StartsAt           time.Time          `json:"starts_at"`
	EndsAt             time.Time          `json:"ends_at"`
	DurationMinutes    int                `json:"duration_minutes"`
	Status             appointment.Status `json:"status"`
	ValueCents         *int64             `json:"value_cents,omitempty"`
	Notes              *string            `json:"notes,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	CreatedBy          uuid.UUID          `json:"created_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ProfessionalID:     a.ProfessionalID,
		StartsAt:           a.StartsAt,
		EndsAt:             a.EndsAt,
		DurationMinutes:    a.DurationMinutes,
		Status:             a.Status,
		ValueCents:         a.ValueCents,
		Notes:              a.Notes,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		CompletedAt:        a.CompletedAt,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentResponses(list []*appointment.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

// ---- history ----

type createHistoryRequest struct {
	PatientID      uuid.UUID  `json:"patient_id" binding:"required"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
	Description    string     `json:"description" binding:"required"`
	Diagnosis      *string    `json:"diagnosis"`
	Prescription   *string    `json:"prescription"`
	ConsultedAt    *time.Time `json:"consulted_at"`
}

type updateHistoryRequest struct {
	Description  *string    `json:"description"`
	Diagnosis    *string    `json:"diagnosis"`
	Prescription *string    `json:"prescription"`
	ConsultedAt  *time.Time `json:"consulted_at"`
}

type historyResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Description    string    `json:"description"`
	Diagnosis      *string   `json:"diagnosis,omitempty"`
	Prescription   *string   `json:"prescription,omitempty"`
	ConsultedAt    time.Time `json:"consulted_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toHistoryResponse(e *history.Entry) historyResponse {
	return historyResponse{
		ID:             e.ID,
		PatientID:      e.PatientID,
		ProfessionalID: e.ProfessionalID,
		Description:    e.Description,
		Diagnosis:      e.Diagnosis,
		Prescription:   e.Prescription,
		ConsultedAt:    e.ConsultedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toHistoryResponses(list []*history.Entry) []historyResponse {
	out := make([]historyResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toHistoryResponse(e))
	}
	return out
}

// ---- prescriptions ----

type createPrescriptionRequest struct {
	PatientID      uuid.UUID                 `json:"patient_id" binding:"required"`
	ProfessionalID *uuid.UUID                `json:"professional_id"`
	AppointmentID  *uuid.UUID                `json:"appointment_id"`
	Medications    []prescription.Medication `json:"medications"`
	Notes          string                    `json:"notes"`
	ValidUntil     *Date                     `json:"valid_until"`
}

type prescriptionResponse struct {
	ID             uuid.UUID                 `json:"id"`
	PatientID      uuid.UUID                 `json:"patient_id"`
	ProfessionalID uuid.UUID                 `json:"professional_id"`
	AppointmentID  *uuid.UUID                `json:"appointment_id,omitempty"`
	Medications    []prescription.Medication `json:"medications"`
	Notes          string                    `json:"notes,omitempty"`
	ValidUntil     *Date                     `json:"valid_until,omitempty"`
	IsExpired      bool                      `json:"is_expired"`
	CreatedAt      time.Time                 `json:"created_at"`
}

func toPrescriptionResponse(p *prescription.Prescription, now time.Time) prescriptionResponse {
	r := prescriptionResponse{
		ID:             p.ID,
		PatientID:      p.PatientID,
		ProfessionalID: p.ProfessionalID,
		AppointmentID:  p.AppointmentID,
		Medications:    []prescription.Medication(p.Medications),
		Notes:          p.Notes,
		IsExpired:      p.IsExpired(now),
		CreatedAt:      p.CreatedAt,
	}
	if p.ValidUntil != nil {
		r.ValidUntil = &Date{*p.ValidUntil}
	}
	return r
}

// ---- inventory ----

type createItemRequest struct {
	Name           string     `json:"name" binding:"required"`
	Description    string     `json:"description"`
	Code           string     `json:"code" binding:"required"`
	Quantity       int        `json:"quantity"`
	Unit           string     `json:"unit"`
	PriceCents     *int64     `json:"price_cents"`
	MinAlert       *int       `json:"min_alert"`
	Category       *string    `json:"category"`
	ProfessionalID *uuid.UUID `json:"professional_id"`
}

type updateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Unit        *string `json:"unit"`
	PriceCents  *int64  `json:"price_cents"`
	MinAlert    *int    `json:"min_alert"`
	Category    *string `json:"category"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type amountRequest struct {
	Amount int `json:"amount" binding:"required"`
}

type itemResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Code           string     `json:"code"`
	Quantity       int        `json:"quantity"`
	Unit           string     `json:"unit"`
	PriceCents     *int64     `json:"price_cents,omitempty"`
	MinAlert       int        `json:"min_alert"`
	Category       *string    `json:"category,omitempty"`
	IsActive       bool       `json:"is_active"`
	IsLowStock     bool       `json:"is_low_stock"`
	IsDepleted     bool       `json:"is_depleted"`
	ProfessionalID *uuid.UUID `json:"professional_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toItemResponse(i *inventory.Item) itemResponse {
	return itemResponse{
		ID:             i.ID,
		Name:           i.Name,
		Description:    i.Description,
		Code:           i.Code,
		Quantity:       i.Quantity,
		Unit:           i.Unit,
		PriceCents:     i.PriceCents,
		MinAlert:       i.MinAlert,
		Category:       i.Category,
		IsActive:       i.IsActive,
		IsLowStock:     i.IsLowStock(),
		IsDepleted:     i.IsDepleted(),
		ProfessionalID: i.ProfessionalID,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func toItemResponses(list []*inventory.Item) []itemResponse {
	out := make([]itemResponse, 0, len(list))
	for _, i := range list {
		out = append(out, toItemResponse(i))
	}
	return out
}

// simpleItemResponse is the compact shape used by pickers.
type simpleItemResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Quantity int       `json:"quantity"`
	Unit     string    `json:"unit"`
}

type countsResponse struct {
	Active   int64 `json:"active"`
	LowStock int64 `json:"low_stock"`
	Depleted int64 `json:"depleted"`
}
