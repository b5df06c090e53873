package v1

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func result[T any](args mock.Arguments, i int) T {
	var zero T
	if v := args.Get(i); v != nil {
		return v.(T)
	}
	return zero
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Login(ctx context.Context, req service.LoginRequest) (*domain.TokenPair, error) {
	args := m.Called(ctx, req)
	return result[*domain.TokenPair](args, 0), args.Error(1)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, token string) (*domain.TokenPair, error) {
	args := m.Called(ctx, token)
	return result[*domain.TokenPair](args, 0), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, caller domain.Identity, access *domain.Claims, refreshToken string) error {
	return m.Called(ctx, caller, access, refreshToken).Error(0)
}

func (m *mockAuthService) Me(ctx context.Context, caller domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, caller)
	return result[*domain.User](args, 0), args.Error(1)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, caller domain.Identity, current, next string) error {
	return m.Called(ctx, caller, current, next).Error(0)
}

func (m *mockAuthService) EnrollMFA(ctx context.Context, caller domain.Identity) (*auth.TOTPEnrollment, error) {
	args := m.Called(ctx, caller)
	return result[*auth.TOTPEnrollment](args, 0), args.Error(1)
}

func (m *mockAuthService) VerifyMFA(ctx context.Context, caller domain.Identity, code string) error {
	return m.Called(ctx, caller, code).Error(0)
}

type mockPatientService struct{ mock.Mock }

func (m *mockPatientService) CreatePatient(ctx context.Context, caller domain.Identity, cmd *patient.CreatePatientCommand) (*patient.Patient, error) {
	args := m.Called(ctx, caller, cmd)
	return result[*patient.Patient](args, 0), args.Error(1)
}

func (m *mockPatientService) GetPatient(ctx context.Context, caller domain.Identity, id uuid.UUID) (*patient.Patient, error) {
	args := m.Called(ctx, caller, id)
	return result[*patient.Patient](args, 0), args.Error(1)
}

func (m *mockPatientService) GetPatientByCPF(ctx context.Context, caller domain.Identity, cpf string) (*patient.Patient, error) {
	args := m.Called(ctx, caller, cpf)
	return result[*patient.Patient](args, 0), args.Error(1)
}

func (m *mockPatientService) UpdatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	args := m.Called(ctx, caller, id, cmd)
	return result[*patient.Patient](args, 0), args.Error(1)
}

func (m *mockPatientService) DeactivatePatient(ctx context.Context, caller domain.Identity, id uuid.UUID) error {
	return m.Called(ctx, caller, id).Error(0)
}

func (m *mockPatientService) ListPatients(ctx context.Context, caller domain.Identity, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	args := m.Called(ctx, caller, q)
	return result[*patient.PagedPatients](args, 0), args.Error(1)
}

type mockAppointmentService struct{ mock.Mock }

func (m *mockAppointmentService) Schedule(ctx context.Context, caller domain.Identity, cmd *appointment.ScheduleCommand) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, cmd)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) Reschedule(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *appointment.RescheduleCommand) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id, cmd)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) ChangeStatus(ctx context.Context, caller domain.Identity, id uuid.UUID, status appointment.Status, reason string) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id, status, reason)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) Confirm(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) Cancel(ctx context.Context, caller domain.Identity, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id, reason)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) Complete(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(ctx, caller, id)
	return result[*appointment.Appointment](args, 0), args.Error(1)
}

func (m *mockAppointmentService) ListByProfessionalAndPeriod(ctx context.Context, caller domain.Identity, professionalID uuid.UUID, from, to time.Time, page, pageSize int) (*appointment.PagedAppointments, error) {
	args := m.Called(ctx, caller, professionalID, from, to, page, pageSize)
	return result[*appointment.PagedAppointments](args, 0), args.Error(1)
}

func (m *mockAppointmentService) ListByPatient(ctx context.Context, caller domain.Identity, patientID uuid.UUID, page, pageSize int) (*appointment.PagedAppointments, error) {
	args := m.Called(ctx, caller, patientID, page, pageSize)
	return result[*appointment.PagedAppointments](args, 0), args.Error(1)
}

func (m *mockAppointmentService) ListByPeriod(ctx context.Context, caller domain.Identity, from, to time.Time, status *appointment.Status, page, pageSize int) (*appointment.PagedAppointments, error) {
	args := m.Called(ctx, caller, from, to, status, page, pageSize)
	return result[*appointment.PagedAppointments](args, 0), args.Error(1)
}

func (m *mockAppointmentService) ListUpcoming(ctx context.Context, caller domain.Identity, limit int) ([]*appointment.Appointment, error) {
	args := m.Called(ctx, caller, limit)
	return result[[]*appointment.Appointment](args, 0), args.Error(1)
}

type mockInventoryService struct{ mock.Mock }

func (m *mockInventoryService) item(args mock.Arguments) (*inventory.Item, error) {
	return result[*inventory.Item](args, 0), args.Error(1)
}

func (m *mockInventoryService) items(args mock.Arguments) ([]*inventory.Item, error) {
	return result[[]*inventory.Item](args, 0), args.Error(1)
}

func (m *mockInventoryService) Create(ctx context.Context, caller domain.Identity, cmd *inventory.CreateItemCommand) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, cmd))
}

func (m *mockInventoryService) Update(ctx context.Context, caller domain.Identity, id uuid.UUID, cmd *inventory.UpdateItemCommand) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id, cmd))
}

func (m *mockInventoryService) SetQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, quantity int) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id, quantity))
}

func (m *mockInventoryService) AddQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id, amount))
}

func (m *mockInventoryService) RemoveQuantity(ctx context.Context, caller domain.Identity, id uuid.UUID, amount int) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id, amount))
}

func (m *mockInventoryService) Activate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id))
}

func (m *mockInventoryService) Deactivate(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id))
}

func (m *mockInventoryService) Get(ctx context.Context, caller domain.Identity, id uuid.UUID) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, id))
}

func (m *mockInventoryService) GetByCode(ctx context.Context, caller domain.Identity, code string, owner *uuid.UUID) (*inventory.Item, error) {
	return m.item(m.Called(ctx, caller, code, owner))
}

func (m *mockInventoryService) List(ctx context.Context, caller domain.Identity, page, pageSize int) (*inventory.PagedItems, error) {
	args := m.Called(ctx, caller, page, pageSize)
	return result[*inventory.PagedItems](args, 0), args.Error(1)
}

func (m *mockInventoryService) ListSimple(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	return m.items(m.Called(ctx, caller))
}

func (m *mockInventoryService) ListByCategory(ctx context.Context, caller domain.Identity, category string) ([]*inventory.Item, error) {
	return m.items(m.Called(ctx, caller, category))
}

func (m *mockInventoryService) Categories(ctx context.Context, caller domain.Identity) ([]string, error) {
	args := m.Called(ctx, caller)
	return result[[]string](args, 0), args.Error(1)
}

func (m *mockInventoryService) LowStock(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	return m.items(m.Called(ctx, caller))
}

func (m *mockInventoryService) Depleted(ctx context.Context, caller domain.Identity) ([]*inventory.Item, error) {
	return m.items(m.Called(ctx, caller))
}

func (m *mockInventoryService) Search(ctx context.Context, caller domain.Identity, term string, page, pageSize int) (*inventory.PagedItems, error) {
	args := m.Called(ctx, caller, term, page, pageSize)
	return result[*inventory.PagedItems](args, 0), args.Error(1)
}

func (m *mockInventoryService) Counts(ctx context.Context, caller domain.Identity) (inventory.Counts, error) {
	args := m.Called(ctx, caller)
	return args.Get(0).(inventory.Counts), args.Error(1)
}

func (m *mockInventoryService) Export(ctx context.Context, caller domain.Identity) ([]byte, error) {
	args := m.Called(ctx, caller)
	return result[[]byte](args, 0), args.Error(1)
}
