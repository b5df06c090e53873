package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/access"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/history"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/inventory"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/secretary"
)

type DashboardStats struct {
	TotalPatients      int64 `json:"total_patients"`
	TotalProfessionals int64 `json:"total_professionals"`
	TotalSecretaries   int64 `json:"total_secretaries"`
	TotalHistory       int64 `json:"total_history_entries"`

	AppointmentsToday int64 `json:"appointments_today"`
	AppointmentsWeek  int64 `json:"appointments_week"`
	AppointmentsMonth int64 `json:"appointments_month"`

	InventoryItems    int64 `json:"inventory_items"`
	InventoryLowStock int64 `json:"inventory_low_stock"`
	InventoryDepleted int64 `json:"inventory_depleted"`

	NewPatientsToday int64 `json:"new_patients_today"`
	NewPatientsWeek  int64 `json:"new_patients_week"`

	Scheduled          int64 `json:"appointments_scheduled"`
	Confirmed          int64 `json:"appointments_confirmed"`
	CompletedThisMonth int64 `json:"appointments_completed_month"`

	RevenueMonthCents int64 `json:"revenue_month_cents"`
}

type PatientStats struct {
	Total         int64   `json:"total"`
	NewThisMonth  int64   `json:"new_this_month"`
	MonthlyGrowth float64 `json:"monthly_growth"`
}

type AppointmentStats struct {
	TotalThisMonth int64   `json:"total_this_month"`
	Scheduled      int64   `json:"scheduled"`
	Confirmed      int64   `json:"confirmed"`
	Completed      int64   `json:"completed"`
	Cancelled      int64   `json:"cancelled"`
	CompletionRate float64 `json:"completion_rate"`
}

type FinancialStats struct {
	RevenueMonthCents  int64   `json:"revenue_month_cents"`
	RevenueTodayCents  int64   `json:"revenue_today_cents"`
	MonthlyGrowth      float64 `json:"monthly_growth"`
	AverageTicketCents int64   `json:"average_ticket_cents"`
}

// DashboardService aggregates counters. Every figure is limited to what the
// caller's scopes allow.
type DashboardService struct {
	patients      patient.Repository
	professionals professional.Repository
	secretaries   secretary.Repository
	history       history.Repository
	appointments  appointment.Repository
	inventory     inventory.Repository
	scopes        ScopeResolver
	loc           *time.Location
	now           func() time.Time
}

func NewDashboardService(
	patients patient.Repository,
	professionals professional.Repository,
	secretaries secretary.Repository,
	historyRepo history.Repository,
	appointments appointment.Repository,
	inventoryRepo inventory.Repository,
	scopes ScopeResolver,
	loc *time.Location,
) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		patients:      patients,
		professionals: professionals,
		secretaries:   secretaries,
		history:       historyRepo,
		appointments:  appointments,
		inventory:     inventoryRepo,
		scopes:        scopes,
		loc:           loc,
		now:           time.Now,
	}
}

// calendar holds the boundaries used by every stat; ranges are half-open.
type calendar struct {
	dayStart, dayEnd     time.Time
	weekStart            time.Time
	monthStart, monthEnd time.Time
	prevMonthStart       time.Time
	now                  time.Time
}

func (s *DashboardService) periods() calendar {
	now := s.now().In(s.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	// ISO weeks start on Monday
	offset := (int(day.Weekday()) + 6) % 7
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	return calendar{
		dayStart:       day,
		dayEnd:         day.AddDate(0, 0, 1),
		weekStart:      day.AddDate(0, 0, -offset),
		monthStart:     month,
		monthEnd:       month.AddDate(0, 1, 0),
		prevMonthStart: month.AddDate(0, -1, 0),
		now:            now,
	}
}

type dashboardScopes struct {
	professionals access.Scope
	patients      access.Scope
	secretaries   access.Scope
}

func (s *DashboardService) resolve(ctx context.Context, caller domain.Identity) (dashboardScopes, error) {
	var ds dashboardScopes
	var err error
	if ds.professionals, err = s.scopes.Resolve(ctx, caller, access.KindProfessional); err != nil {
		return ds, err
	}
	if ds.patients, err = s.scopes.Resolve(ctx, caller, access.KindPatient); err != nil {
		return ds, err
	}
	if ds.secretaries, err = s.scopes.Resolve(ctx, caller, access.KindSecretary); err != nil {
		return ds, err
	}
	return ds, nil
}

func (s *DashboardService) Stats(ctx context.Context, caller domain.Identity) (*DashboardStats, error) {
	sc, err := s.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	p := s.periods()
	out := &DashboardStats{}

	c := &counter{}
	out.TotalPatients = c.run(func() (int64, error) { return s.patients.Count(ctx, sc.patients) })
	out.TotalProfessionals = c.run(func() (int64, error) { return s.professionals.Count(ctx, sc.professionals) })
	out.TotalSecretaries = c.run(func() (int64, error) { return s.secretaries.Count(ctx, sc.secretaries) })
	out.TotalHistory = c.run(func() (int64, error) { return s.history.Count(ctx, sc.professionals) })

	out.AppointmentsToday = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, sc.professionals, p.dayStart, p.dayEnd, nil)
	})
	out.AppointmentsWeek = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, sc.professionals, p.weekStart, p.now, nil)
	})
	out.AppointmentsMonth = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, sc.professionals, p.monthStart, p.monthEnd, nil)
	})

	out.NewPatientsToday = c.run(func() (int64, error) {
		return s.patients.CountCreatedBetween(ctx, sc.patients, p.dayStart, p.dayEnd)
	})
	out.NewPatientsWeek = c.run(func() (int64, error) {
		return s.patients.CountCreatedBetween(ctx, sc.patients, p.weekStart, p.now)
	})

	out.Scheduled = c.run(func() (int64, error) {
		return s.appointments.CountByStatus(ctx, sc.professionals, appointment.StatusScheduled)
	})
	out.Confirmed = c.run(func() (int64, error) {
		return s.appointments.CountByStatus(ctx, sc.professionals, appointment.StatusConfirmed)
	})
	completed := appointment.StatusCompleted
	out.CompletedThisMonth = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, sc.professionals, p.monthStart, p.monthEnd, &completed)
	})
	if c.err != nil {
		return nil, fmt.Errorf("computing dashboard stats: %w", c.err)
	}

	counts, err := s.inventory.Counts(ctx, &inventory.Filter{Scope: sc.professionals})
	if err != nil {
		return nil, fmt.Errorf("counting inventory: %w", err)
	}
	out.InventoryItems = counts.Active
	out.InventoryLowStock = counts.LowStock
	out.InventoryDepleted = counts.Depleted

	revenue, err := s.appointments.Revenue(ctx, sc.professionals, p.monthStart, p.monthEnd)
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	out.RevenueMonthCents = revenue.TotalCents

	return out, nil
}

func (s *DashboardService) PatientStats(ctx context.Context, caller domain.Identity) (*PatientStats, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindPatient)
	if err != nil {
		return nil, err
	}
	p := s.periods()

	c := &counter{}
	total := c.run(func() (int64, error) { return s.patients.Count(ctx, scope) })
	thisMonth := c.run(func() (int64, error) { return s.patients.CountCreatedBetween(ctx, scope, p.monthStart, p.now) })
	lastMonth := c.run(func() (int64, error) {
		return s.patients.CountCreatedBetween(ctx, scope, p.prevMonthStart, p.monthStart)
	})
	if c.err != nil {
		return nil, fmt.Errorf("computing patient stats: %w", c.err)
	}

	return &PatientStats{
		Total:         total,
		NewThisMonth:  thisMonth,
		MonthlyGrowth: growth(float64(thisMonth), float64(lastMonth)),
	}, nil
}

func (s *DashboardService) AppointmentStats(ctx context.Context, caller domain.Identity) (*AppointmentStats, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	p := s.periods()
	completed := appointment.StatusCompleted

	c := &counter{}
	out := &AppointmentStats{}
	out.TotalThisMonth = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, scope, p.monthStart, p.monthEnd, nil)
	})
	out.Scheduled = c.run(func() (int64, error) {
		return s.appointments.CountByStatus(ctx, scope, appointment.StatusScheduled)
	})
	out.Confirmed = c.run(func() (int64, error) {
		return s.appointments.CountByStatus(ctx, scope, appointment.StatusConfirmed)
	})
	out.Completed = c.run(func() (int64, error) {
		return s.appointments.CountInPeriod(ctx, scope, p.monthStart, p.monthEnd, &completed)
	})
	out.Cancelled = c.run(func() (int64, error) {
		return s.appointments.CountByStatus(ctx, scope, appointment.StatusCancelled)
	})
	if c.err != nil {
		return nil, fmt.Errorf("computing appointment stats: %w", c.err)
	}

	if out.TotalThisMonth > 0 {
		out.CompletionRate = float64(out.Completed) / float64(out.TotalThisMonth) * 100
	}
	return out, nil
}

func (s *DashboardService) FinancialStats(ctx context.Context, caller domain.Identity) (*FinancialStats, error) {
	scope, err := s.scopes.Resolve(ctx, caller, access.KindProfessional)
	if err != nil {
		return nil, err
	}
	p := s.periods()

	month, err := s.appointments.Revenue(ctx, scope, p.monthStart, p.monthEnd)
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	prev, err := s.appointments.Revenue(ctx, scope, p.prevMonthStart, p.monthStart)
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}
	today, err := s.appointments.Revenue(ctx, scope, p.dayStart, p.dayEnd)
	if err != nil {
		return nil, fmt.Errorf("summing revenue: %w", err)
	}

	out := &FinancialStats{
		RevenueMonthCents: month.TotalCents,
		RevenueTodayCents: today.TotalCents,
		MonthlyGrowth:     growth(float64(month.TotalCents), float64(prev.TotalCents)),
	}
	if month.Count > 0 {
		out.AverageTicketCents = month.TotalCents / month.Count
	}
	return out, nil
}

// growth is the month-over-month change in percent. From zero it reports 100
// for any increase.
func growth(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// counter runs count queries until the first failure.
type counter struct {
	err error
}

func (c *counter) run(fn func() (int64, error)) int64 {
	if c.err != nil {
		return 0
	}
	n, err := fn()
	if err != nil {
		c.err = err
		return 0
	}
	return n
}
