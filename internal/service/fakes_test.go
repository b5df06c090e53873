package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/mailer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// In-memory repositories. Every read returns a copy so services cannot mutate
// stored rows behind the repository's back.

func page[T any](rows []T, pageNum, size int) []T {
	if size <= 0 {
		return rows
	}
	start := (pageNum - 1) * size
	if start < 0 || start >= len(rows) {
		return []T{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func pages(total int64, size int) int {
	if size <= 0 || total == 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

type fakePatientRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*patient.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{rows: make(map[uuid.UUID]*patient.Patient)}
}

// add stores an active patient directly, bypassing validation.
func (r *fakePatientRepo) add(name, email string) *patient.Patient {
	p := &patient.Patient{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		Name:        name,
		CPF:         uuid.NewString()[:11],
		ContactInfo: patient.ContactInfo{Email: email},
		IsActive:    true,
	}
	r.mu.Lock()
	r.rows[p.ID] = p
	r.mu.Unlock()
	cp := *p
	return &cp
}

func (r *fakePatientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.CPF == p.CPF {
			return patient.ErrCPFAlreadyExists
		}
		if existing.Email == p.Email {
			return patient.ErrEmailAlreadyExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakePatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePatientRepo) GetByCPF(_ context.Context, cpf string) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.CPF == cpf {
			cp := *p
			return &cp, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r *fakePatientRepo) Update(_ context.Context, id uuid.UUID, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	if cmd.Name != nil {
		p.Name = *cmd.Name
	}
	if cmd.CPF != nil {
		p.CPF = *cmd.CPF
	}
	if cmd.Email != nil {
		p.Email = *cmd.Email
	}
	if cmd.Phone != nil {
		p.Phone = *cmd.Phone
	}
	if cmd.Address != nil {
		p.Address = *cmd.Address
	}
	if cmd.BirthDate != nil {
		p.BirthDate = *cmd.BirthDate
	}
	cp := *p
	return &cp, nil
}

func (r *fakePatientRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return patient.ErrPatientNotFound
	}
	p.IsActive = active
	return nil
}

func (r *fakePatientRepo) List(_ context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*patient.Patient
	term := strings.ToLower(q.Search)
	for _, p := range r.rows {
		if !q.Scope.Allows(p.ID) || (!q.IncludeInactive && !p.IsActive) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(p.Email, term) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := int64(len(all))
	return &patient.PagedPatients{
		Patients:   page(all, q.Page, q.PageSize),
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages(total, q.PageSize),
	}, nil
}

func (r *fakePatientRepo) ExistsByCPF(_ context.Context, cpf string, excludeID *uuid.UUID) (bool, error) {
	return r.exists(func(p *patient.Patient) bool { return p.CPF == cpf }, excludeID), nil
}

func (r *fakePatientRepo) ExistsByEmail(_ context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	return r.exists(func(p *patient.Patient) bool { return p.Email == email }, excludeID), nil
}

func (r *fakePatientRepo) exists(match func(*patient.Patient) bool, excludeID *uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		if match(p) {
			return true
		}
	}
	return false
}

func (r *fakePatientRepo) Count(_ context.Context, scope access.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if scope.Allows(p.ID) && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *fakePatientRepo) CountCreatedBetween(_ context.Context, scope access.Scope, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if scope.Allows(p.ID) && !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type fakeProfessionalRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*professional.Profile
}

func newFakeProfessionalRepo() *fakeProfessionalRepo {
	return &fakeProfessionalRepo{rows: make(map[uuid.UUID]*professional.Profile)}
}

func (r *fakeProfessionalRepo) add(name, specialty string) *professional.Profile {
	p := &professional.Profile{
		Professional: professional.Professional{
			ID:            uuid.New(),
			UserID:        uuid.New(),
			Specialty:     specialty,
			LicenseNumber: strings.ToUpper(uuid.NewString()[:8]),
		},
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@clinic.test",
		IsActive: true,
	}
	r.mu.Lock()
	r.rows[p.ID] = p
	r.mu.Unlock()
	cp := *p
	return &cp
}

func (r *fakeProfessionalRepo) Create(_ context.Context, p *professional.Professional) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.rows[p.ID] = &professional.Profile{Professional: *p, IsActive: true}
	return nil
}

func (r *fakeProfessionalRepo) GetByID(_ context.Context, id uuid.UUID) (*professional.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, professional.ErrProfessionalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProfessionalRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*professional.Professional, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.UserID == userID {
			cp := p.Professional
			return &cp, nil
		}
	}
	return nil, professional.ErrProfessionalNotFound
}

func (r *fakeProfessionalRepo) ExistsByLicense(_ context.Context, license string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.LicenseNumber == license {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProfessionalRepo) List(_ context.Context, q *professional.ListProfessionalsQuery) ([]*professional.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*professional.Profile{}
	for _, p := range r.rows {
		if !q.Scope.Allows(p.ID) || (!q.IncludeInactive && !p.IsActive) {
			continue
		}
		if q.Specialty != "" && !strings.EqualFold(p.Specialty, q.Specialty) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeProfessionalRepo) Specialties(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, p := range r.rows {
		if !seen[p.Specialty] {
			seen[p.Specialty] = true
			out = append(out, p.Specialty)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeProfessionalRepo) Count(_ context.Context, scope access.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if scope.Allows(p.ID) && p.IsActive {
			n++
		}
	}
	return n, nil
}

type fakeSecretaryRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*secretary.Profile
	links []secretary.Link
}

func newFakeSecretaryRepo() *fakeSecretaryRepo {
	return &fakeSecretaryRepo{rows: make(map[uuid.UUID]*secretary.Profile)}
}

func (r *fakeSecretaryRepo) add(name string, professionalIDs ...uuid.UUID) *secretary.Profile {
	s := &secretary.Profile{
		Secretary: secretary.Secretary{ID: uuid.New(), UserID: uuid.New()},
		Name:      name,
		IsActive:  true,
	}
	r.mu.Lock()
	r.rows[s.ID] = s
	for _, pid := range professionalIDs {
		r.links = append(r.links, secretary.Link{ID: uuid.New(), SecretaryID: s.ID, ProfessionalID: pid})
	}
	r.mu.Unlock()
	cp := *s
	return &cp
}

func (r *fakeSecretaryRepo) Create(_ context.Context, s *secretary.Secretary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.rows[s.ID] = &secretary.Profile{Secretary: *s, IsActive: true}
	return nil
}

func (r *fakeSecretaryRepo) GetByID(_ context.Context, id uuid.UUID) (*secretary.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, secretary.ErrSecretaryNotFound
	}
	cp := *s
	cp.ProfessionalIDs = r.professionalIDsLocked(id)
	return &cp, nil
}

func (r *fakeSecretaryRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*secretary.Secretary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.UserID == userID {
			cp := s.Secretary
			return &cp, nil
		}
	}
	return nil, secretary.ErrSecretaryNotFound
}

func (r *fakeSecretaryRepo) List(_ context.Context, q *secretary.ListSecretariesQuery) ([]*secretary.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*secretary.Profile{}
	for _, s := range r.rows {
		if !q.Scope.Allows(s.ID) || (!q.IncludeInactive && !s.IsActive) {
			continue
		}
		cp := *s
		cp.ProfessionalIDs = r.professionalIDsLocked(s.ID)
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeSecretaryRepo) Count(_ context.Context, scope access.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.rows {
		if scope.Allows(s.ID) && s.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *fakeSecretaryRepo) Link(_ context.Context, l *secretary.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.links {
		if existing.SecretaryID == l.SecretaryID && existing.ProfessionalID == l.ProfessionalID {
			return secretary.ErrLinkAlreadyExists
		}
	}
	l.ID = uuid.New()
	r.links = append(r.links, *l)
	return nil
}

func (r *fakeSecretaryRepo) Unlink(_ context.Context, secretaryID, professionalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.links {
		if l.SecretaryID == secretaryID && l.ProfessionalID == professionalID {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return nil
		}
	}
	return secretary.ErrLinkNotFound
}

func (r *fakeSecretaryRepo) ProfessionalIDs(_ context.Context, secretaryID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.professionalIDsLocked(secretaryID), nil
}

func (r *fakeSecretaryRepo) professionalIDsLocked(secretaryID uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{}
	for _, l := range r.links {
		if l.SecretaryID == secretaryID {
			ids = append(ids, l.ProfessionalID)
		}
	}
	return ids
}

func (r *fakeSecretaryRepo) SecretaryIDs(_ context.Context, professionalID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []uuid.UUID{}
	for _, l := range r.links {
		if l.ProfessionalID == professionalID {
			ids = append(ids, l.SecretaryID)
		}
	}
	return ids, nil
}

// fakeAppointmentRepo serialises WithProfessionalLock callers on one mutex,
// which is enough to model the row lock for tests.
type fakeAppointmentRepo struct {
	lock sync.Mutex
	mu   sync.Mutex
	rows map[uuid.UUID]*appointment.Appointment

	// professionals backs the lock lookup; nil accepts any id.
	professionals *fakeProfessionalRepo
}

func newFakeAppointmentRepo(professionals *fakeProfessionalRepo) *fakeAppointmentRepo {
	return &fakeAppointmentRepo{rows: make(map[uuid.UUID]*appointment.Appointment), professionals: professionals}
}

// book stores an appointment directly.
func (r *fakeAppointmentRepo) book(patientID, professionalID uuid.UUID, start time.Time, minutes int, status appointment.Status) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:             uuid.New(),
		PatientID:      patientID,
		ProfessionalID: professionalID,
		Status:         status,
	}
	a.SetSlot(start, minutes)
	r.mu.Lock()
	r.rows[a.ID] = a
	r.mu.Unlock()
	cp := *a
	return &cp
}

func (r *fakeAppointmentRepo) Create(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *fakeAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) Save(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if err := stored.EnsureEditable(); err != nil {
		return err
	}
	stored.PatientID = a.PatientID
	stored.ProfessionalID = a.ProfessionalID
	stored.SetSlot(a.StartsAt, a.DurationMinutes)
	stored.ValueCents = a.ValueCents
	stored.Notes = a.Notes
	return nil
}

func (r *fakeAppointmentRepo) UpdateStatus(_ context.Context, a *appointment.Appointment, from appointment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[a.ID]
	if !ok || stored.Status != from {
		return appointment.ErrInvalidStatusTransition
	}
	stored.Status = a.Status
	stored.CancelledAt = a.CancelledAt
	stored.CancelledBy = a.CancelledBy
	stored.CancellationReason = a.CancellationReason
	stored.CompletedAt = a.CompletedAt
	return nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*appointment.Appointment
	for _, a := range r.rows {
		switch {
		case !q.Scope.Allows(a.ProfessionalID):
		case q.PatientID != nil && a.PatientID != *q.PatientID:
		case q.ProfessionalID != nil && a.ProfessionalID != *q.ProfessionalID:
		case q.Status != nil && a.Status != *q.Status:
		case q.From != nil && a.StartsAt.Before(*q.From):
		case q.To != nil && !a.StartsAt.Before(*q.To):
		default:
			cp := *a
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt.Before(all[j].StartsAt) })
	total := int64(len(all))
	return &appointment.PagedAppointments{
		Appointments: page(all, q.Page, q.PageSize),
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   pages(total, q.PageSize),
	}, nil
}

func (r *fakeAppointmentRepo) ListActiveInWindow(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*appointment.Appointment{}
	for _, a := range r.rows {
		if a.ProfessionalID != professionalID || a.Status == appointment.StatusCancelled {
			continue
		}
		if a.StartsAt.Before(to) && a.EndsAt.After(from) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) WithProfessionalLock(ctx context.Context, professionalID uuid.UUID, fn func(tx appointment.Repository) error) error {
	if r.professionals != nil {
		if _, err := r.professionals.GetByID(ctx, professionalID); err != nil {
			return err
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return fn(r)
}

func (r *fakeAppointmentRepo) ListUpcoming(_ context.Context, scope access.Scope, from time.Time, limit int) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*appointment.Appointment{}
	for _, a := range r.rows {
		if scope.Allows(a.ProfessionalID) && !a.StartsAt.Before(from) && !a.Status.IsTerminal() {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAppointmentRepo) PatientIDsForProfessionals(_ context.Context, professionalIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range professionalIDs {
		want[id] = true
	}
	seen := map[uuid.UUID]bool{}
	ids := []uuid.UUID{}
	for _, a := range r.rows {
		if want[a.ProfessionalID] && !seen[a.PatientID] {
			seen[a.PatientID] = true
			ids = append(ids, a.PatientID)
		}
	}
	return ids, nil
}

func (r *fakeAppointmentRepo) CountInPeriod(_ context.Context, scope access.Scope, from, to time.Time, status *appointment.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.rows {
		if !scope.Allows(a.ProfessionalID) || a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		if status != nil && a.Status != *status {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeAppointmentRepo) CountByStatus(_ context.Context, scope access.Scope, status appointment.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.rows {
		if scope.Allows(a.ProfessionalID) && a.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeAppointmentRepo) Revenue(_ context.Context, scope access.Scope, from, to time.Time) (appointment.RevenueSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out appointment.RevenueSummary
	for _, a := range r.rows {
		if !scope.Allows(a.ProfessionalID) || a.Status != appointment.StatusCompleted || a.ValueCents == nil {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out.TotalCents += *a.ValueCents
		out.Count++
	}
	return out, nil
}

type fakeInventoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*inventory.Item
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{rows: make(map[uuid.UUID]*inventory.Item)}
}

func (r *fakeInventoryRepo) Create(_ context.Context, item *inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	cp := *item
	r.rows[item.ID] = &cp
	return nil
}

func (r *fakeInventoryRepo) GetByID(_ context.Context, id uuid.UUID) (*inventory.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *fakeInventoryRepo) GetByCode(_ context.Context, code string, owner *uuid.UUID) (*inventory.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.rows {
		if item.Code == code && sameOwner(item.ProfessionalID, owner) {
			cp := *item
			return &cp, nil
		}
	}
	return nil, inventory.ErrItemNotFound
}

func (r *fakeInventoryRepo) Save(_ context.Context, item *inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[item.ID]
	if !ok {
		return inventory.ErrItemNotFound
	}
	quantity, active := stored.Quantity, stored.IsActive
	cp := *item
	cp.Quantity, cp.IsActive = quantity, active
	r.rows[item.ID] = &cp
	return nil
}

func (r *fakeInventoryRepo) CodeExists(_ context.Context, code string, owner *uuid.UUID, global bool, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.rows {
		if excludeID != nil && item.ID == *excludeID {
			continue
		}
		if item.Code == code && (global || sameOwner(item.ProfessionalID, owner)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInventoryRepo) SetQuantity(_ context.Context, id uuid.UUID, quantity int) (*inventory.Item, error) {
	return r.mutate(id, func(item *inventory.Item) error {
		item.Quantity = quantity
		return nil
	})
}

func (r *fakeInventoryRepo) AdjustQuantity(_ context.Context, id uuid.UUID, delta int) (*inventory.Item, error) {
	return r.mutate(id, func(item *inventory.Item) error {
		if item.Quantity+delta < 0 {
			return inventory.ErrInsufficientStock
		}
		item.Quantity += delta
		return nil
	})
}

func (r *fakeInventoryRepo) SetActive(_ context.Context, id uuid.UUID, active bool) (*inventory.Item, error) {
	return r.mutate(id, func(item *inventory.Item) error {
		item.IsActive = active
		return nil
	})
}

func (r *fakeInventoryRepo) mutate(id uuid.UUID, fn func(*inventory.Item) error) (*inventory.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.rows[id]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	if err := fn(item); err != nil {
		return nil, err
	}
	cp := *item
	return &cp, nil
}

func (r *fakeInventoryRepo) visible(f *inventory.Filter, item *inventory.Item) bool {
	if item.IsGlobal() {
		if f.ExcludeGlobal {
			return false
		}
	} else if !f.Scope.Allows(*item.ProfessionalID) {
		return false
	}
	if !f.IncludeInactive && !item.IsActive {
		return false
	}
	if f.Category != "" && (item.Category == nil || !strings.EqualFold(*item.Category, f.Category)) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Name), term) && !strings.Contains(strings.ToLower(item.Code), term) {
			return false
		}
	}
	if f.LowStockOnly && !item.IsLowStock() {
		return false
	}
	if f.DepletedOnly && !item.IsDepleted() {
		return false
	}
	return true
}

func (r *fakeInventoryRepo) List(_ context.Context, f *inventory.Filter) (*inventory.PagedItems, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*inventory.Item
	for _, item := range r.rows {
		if r.visible(f, item) {
			cp := *item
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := int64(len(all))
	return &inventory.PagedItems{
		Items:      page(all, f.Page, f.PageSize),
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: pages(total, f.PageSize),
	}, nil
}

func (r *fakeInventoryRepo) Categories(_ context.Context, f *inventory.Filter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, item := range r.rows {
		if item.Category != nil && r.visible(f, item) && !seen[*item.Category] {
			seen[*item.Category] = true
			out = append(out, *item.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeInventoryRepo) Counts(_ context.Context, f *inventory.Filter) (inventory.Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := *f
	active.IncludeInactive = false
	var out inventory.Counts
	for _, item := range r.rows {
		if !r.visible(&active, item) {
			continue
		}
		out.Active++
		if item.IsLowStock() {
			out.LowStock++
		}
		if item.IsDepleted() {
			out.Depleted++
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*history.Entry
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{rows: make(map[uuid.UUID]*history.Entry)}
}

func (r *fakeHistoryRepo) Create(_ context.Context, e *history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *fakeHistoryRepo) GetByID(_ context.Context, id uuid.UUID) (*history.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, history.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeHistoryRepo) Save(_ context.Context, e *history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[e.ID]; !ok {
		return history.ErrEntryNotFound
	}
	cp := *e
	r.rows[e.ID] = &cp
	return nil
}

func (r *fakeHistoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return history.ErrEntryNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeHistoryRepo) List(_ context.Context, q *history.ListEntriesQuery) (*history.PagedEntries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*history.Entry
	for _, e := range r.rows {
		switch {
		case !q.Scope.Allows(e.ProfessionalID):
		case q.PatientID != nil && e.PatientID != *q.PatientID:
		case q.ProfessionalID != nil && e.ProfessionalID != *q.ProfessionalID:
		default:
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ConsultedAt.After(all[j].ConsultedAt) })
	total := int64(len(all))
	return &history.PagedEntries{
		Entries:    page(all, q.Page, q.PageSize),
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages(total, q.PageSize),
	}, nil
}

func (r *fakeHistoryRepo) Count(_ context.Context, scope access.Scope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.rows {
		if scope.Allows(e.ProfessionalID) {
			n++
		}
	}
	return n, nil
}

type fakePrescriptionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*prescription.Prescription
}

func newFakePrescriptionRepo() *fakePrescriptionRepo {
	return &fakePrescriptionRepo{rows: make(map[uuid.UUID]*prescription.Prescription)}
}

func (r *fakePrescriptionRepo) Create(_ context.Context, p *prescription.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakePrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, prescription.ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePrescriptionRepo) ListByPatient(_ context.Context, patientID uuid.UUID, scope access.Scope) ([]*prescription.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*prescription.Prescription{}
	for _, p := range r.rows {
		if p.PatientID == patientID && scope.Allows(p.ProfessionalID) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.rows[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(context.Background(), email)
	return err == nil, nil
}

func (r *fakeUserRepo) RegisterFailedLogin(_ context.Context, id uuid.UUID, threshold int, lockedUntil time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.FailedLoginCount++
		if u.FailedLoginCount >= threshold {
			u.FailedLoginCount = 0
			u.LockedUntil = &lockedUntil
		}
	})
}

func (r *fakeUserRepo) RegisterSuccessfulLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
		u.LastLoginAt = &at
	})
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = changedAt
	})
}

func (r *fakeUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (r *fakeUserRepo) SetMFA(_ context.Context, id uuid.UUID, secret string, enabled bool) error {
	return r.mutate(id, func(u *domain.User) {
		u.MFASecret = secret
		u.MFAEnabled = enabled
	})
}

func (r *fakeUserRepo) mutate(id uuid.UUID, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

// fakeStaffWriter writes the user and the staff record into the fakes above.
type fakeStaffWriter struct {
	users         *fakeUserRepo
	professionals *fakeProfessionalRepo
	secretaries   *fakeSecretaryRepo
}

func (w *fakeStaffWriter) CreateProfessional(ctx context.Context, u *domain.User, p *professional.Professional) error {
	if err := w.users.Create(ctx, u); err != nil {
		return err
	}
	p.UserID = u.ID
	if err := w.professionals.Create(ctx, p); err != nil {
		return err
	}
	w.professionals.mu.Lock()
	w.professionals.rows[p.ID].Name = u.Name
	w.professionals.rows[p.ID].Email = u.Email
	w.professionals.mu.Unlock()
	return nil
}

func (w *fakeStaffWriter) CreateSecretary(ctx context.Context, u *domain.User, s *secretary.Secretary) error {
	if err := w.users.Create(ctx, u); err != nil {
		return err
	}
	s.UserID = u.ID
	return w.secretaries.Create(ctx, s)
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) all() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuditLog(nil), r.entries...)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) AppointmentScheduled(ctx context.Context, d mailer.AppointmentDetails) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockNotifier) AppointmentCancelled(ctx context.Context, d mailer.AppointmentDetails) error {
	return m.Called(ctx, d).Error(0)
}

type countingSchedulingMetrics struct {
	conflicts  atomic.Int64
	mailFailed atomic.Int64
	statuses   sync.Map
}

func (m *countingSchedulingMetrics) AppointmentStatus(status string) {
	m.statuses.Store(status, true)
}

func (m *countingSchedulingMetrics) SchedulingConflict() { m.conflicts.Add(1) }
func (m *countingSchedulingMetrics) MailFailed()         { m.mailFailed.Add(1) }

// clinic wires the fakes together behind a real AccessResolver.
type clinic struct {
	patients      *fakePatientRepo
	professionals *fakeProfessionalRepo
	secretaries   *fakeSecretaryRepo
	appointments  *fakeAppointmentRepo
	inventory     *fakeInventoryRepo
	history       *fakeHistoryRepo
	prescriptions *fakePrescriptionRepo
	users         *fakeUserRepo
	resolver      *AccessResolver
	log           *zap.Logger
}

func newClinic(t *testing.T) *clinic {
	t.Helper()
	profs := newFakeProfessionalRepo()
	secs := newFakeSecretaryRepo()
	appts := newFakeAppointmentRepo(profs)
	return &clinic{
		patients:      newFakePatientRepo(),
		professionals: profs,
		secretaries:   secs,
		appointments:  appts,
		inventory:     newFakeInventoryRepo(),
		history:       newFakeHistoryRepo(),
		prescriptions: newFakePrescriptionRepo(),
		users:         newFakeUserRepo(),
		resolver:      NewAccessResolver(appts, secs),
		log:           zap.NewNop(),
	}
}

func adminIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}
}

func professionalIdentity(p *professional.Profile) domain.Identity {
	id := p.ID
	return domain.Identity{UserID: p.UserID, Role: domain.RoleProfessional, ProfessionalID: &id}
}

func secretaryIdentity(s *secretary.Profile) domain.Identity {
	id := s.ID
	return domain.Identity{UserID: s.UserID, Role: domain.RoleSecretary, SecretaryID: &id}
}

func (c *clinic) now() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}
