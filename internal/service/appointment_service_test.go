package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain/professional"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/mailer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type schedulingFixture struct {
	*clinic
	svc      *AppointmentService
	notifier *mockNotifier
	metrics  *countingSchedulingMetrics
	doctor   *professional.Profile
	patient  *patient.Patient
	day      time.Time
}

func newSchedulingFixture(t *testing.T) *schedulingFixture {
	t.Helper()
	c := newClinic(t)
	n := &mockNotifier{}
	m := &countingSchedulingMetrics{}
	f := &schedulingFixture{
		clinic:   c,
		notifier: n,
		metrics:  m,
		svc:      NewAppointmentService(c.appointments, c.patients, c.professionals, c.resolver, n, nil, m, c.log),
		doctor:   c.professionals.add("Ana Souza", "Cardiology"),
		patient:  c.patients.add("Bruno Lima", "bruno@mail.test"),
		day:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.day }
	return f
}

func (f *schedulingFixture) at(hour, minute int) time.Time {
	return f.day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func (f *schedulingFixture) command(start time.Time, minutes int) *appointment.ScheduleCommand {
	return &appointment.ScheduleCommand{
		PatientID:       f.patient.ID,
		ProfessionalID:  f.doctor.ID,
		StartsAt:        start,
		DurationMinutes: minutes,
	}
}

func TestAppointmentService_Schedule_RejectsOverlapAcceptsAdjacent(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	caller := adminIdentity()

	first, err := f.svc.Schedule(ctx, caller, f.command(f.at(9, 0), 30))
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, first.Status)
	assert.Equal(t, f.at(9, 30), first.EndsAt)

	_, err = f.svc.Schedule(ctx, caller, f.command(f.at(9, 15), 30))
	require.ErrorIs(t, err, appointment.ErrSchedulingConflict)
	assert.Equal(t, domain.KindSchedulingConflict, domain.KindOf(err))
	assert.EqualValues(t, 1, f.metrics.conflicts.Load())

	adjacent, err := f.svc.Schedule(ctx, caller, f.command(f.at(9, 30), 30))
	require.NoError(t, err)
	assert.Equal(t, f.at(9, 30), adjacent.StartsAt)

	// ends exactly where the first one starts
	_, err = f.svc.Schedule(ctx, caller, f.command(f.at(8, 30), 30))
	require.NoError(t, err)

	// a long slot swallowing an existing one
	_, err = f.svc.Schedule(ctx, caller, f.command(f.at(8, 0), 240))
	require.ErrorIs(t, err, appointment.ErrSchedulingConflict)
}

func TestAppointmentService_Schedule_CancelledSlotIsFree(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.Anything).Return(nil)
	f.appointments.book(f.patient.ID, f.doctor.ID, f.at(10, 0), 60, appointment.StatusCancelled)

	_, err := f.svc.Schedule(context.Background(), adminIdentity(), f.command(f.at(10, 0), 60))
	require.NoError(t, err)
}

func TestAppointmentService_Schedule_OtherProfessionalDoesNotConflict(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.Anything).Return(nil)
	other := f.professionals.add("Carla Dias", "Dermatology")
	f.appointments.book(f.patient.ID, other.ID, f.at(10, 0), 60, appointment.StatusScheduled)

	_, err := f.svc.Schedule(context.Background(), adminIdentity(), f.command(f.at(10, 0), 60))
	require.NoError(t, err)
}

func TestAppointmentService_Schedule_Validation(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	caller := adminIdentity()

	tests := []struct {
		name string
		cmd  *appointment.ScheduleCommand
		want error
	}{
		{"zero duration", f.command(f.at(9, 0), 0), appointment.ErrInvalidDuration},
		{"over eight hours", f.command(f.at(9, 0), 481), appointment.ErrInvalidDuration},
		{"missing start", f.command(time.Time{}, 30), domain.ErrInvalidArgument},
		{"missing patient", &appointment.ScheduleCommand{ProfessionalID: f.doctor.ID, StartsAt: f.at(9, 0), DurationMinutes: 30}, domain.ErrInvalidArgument},
		{"unknown patient", &appointment.ScheduleCommand{PatientID: uuid.New(), ProfessionalID: f.doctor.ID, StartsAt: f.at(9, 0), DurationMinutes: 30}, patient.ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Schedule(ctx, caller, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAppointmentService_Schedule_InactiveParties(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	require.NoError(t, f.patients.SetActive(ctx, f.patient.ID, false))

	_, err := f.svc.Schedule(ctx, adminIdentity(), f.command(f.at(9, 0), 30))
	require.ErrorIs(t, err, patient.ErrPatientInactive)

	require.NoError(t, f.patients.SetActive(ctx, f.patient.ID, true))
	f.professionals.rows[f.doctor.ID].IsActive = false
	_, err = f.svc.Schedule(ctx, adminIdentity(), f.command(f.at(9, 0), 30))
	require.ErrorIs(t, err, professional.ErrProfessionalInactive)
}

func TestAppointmentService_Schedule_ProfessionalOutsideScopeForbidden(t *testing.T) {
	f := newSchedulingFixture(t)
	other := f.professionals.add("Carla Dias", "Dermatology")

	_, err := f.svc.Schedule(context.Background(), professionalIdentity(other), f.command(f.at(9, 0), 30))
	require.ErrorIs(t, err, ErrForbidden)

	sec := f.secretaries.add("Dora", other.ID)
	_, err = f.svc.Schedule(context.Background(), secretaryIdentity(sec), f.command(f.at(9, 0), 30))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAppointmentService_Schedule_SecretaryBooksForLinkedProfessional(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.Anything).Return(nil)
	sec := f.secretaries.add("Dora", f.doctor.ID)

	a, err := f.svc.Schedule(context.Background(), secretaryIdentity(sec), f.command(f.at(14, 0), 45))
	require.NoError(t, err)
	assert.Equal(t, sec.UserID, a.CreatedBy)
}

func TestAppointmentService_Schedule_ConcurrentBookingsSameSlot(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.Anything).Return(nil)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Schedule(context.Background(), adminIdentity(), f.command(f.at(11, 0), 30))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, appointment.ErrSchedulingConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestAppointmentService_Schedule_MailFailureDoesNotFailBooking(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentScheduled", mock.Anything, mock.MatchedBy(func(d mailer.AppointmentDetails) bool {
		return d.PatientEmail == "bruno@mail.test" && d.ProfessionalName == "Ana Souza" && d.DurationMinutes == 30
	})).Return(errors.New("smtp down")).Once()

	a, err := f.svc.Schedule(context.Background(), adminIdentity(), f.command(f.at(9, 0), 30))
	require.NoError(t, err)
	require.NotNil(t, a)

	stored, err := f.appointments.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, stored.Status)
	assert.EqualValues(t, 1, f.metrics.mailFailed.Load())
	f.notifier.AssertExpectations(t)
}

func TestAppointmentService_Schedule_NoEmailSkipsNotifier(t *testing.T) {
	f := newSchedulingFixture(t)
	f.patients.rows[f.patient.ID].Email = ""

	_, err := f.svc.Schedule(context.Background(), adminIdentity(), f.command(f.at(9, 0), 30))
	require.NoError(t, err)
	f.notifier.AssertNotCalled(t, "AppointmentScheduled", mock.Anything, mock.Anything)
}

func TestAppointmentService_StatusMachine(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentCancelled", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()
	caller := adminIdentity()

	a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)

	confirmed, err := f.svc.Confirm(ctx, caller, a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, confirmed.Status)

	completed, err := f.svc.Complete(ctx, caller, a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	for _, next := range []appointment.Status{appointment.StatusScheduled, appointment.StatusConfirmed, appointment.StatusCancelled} {
		_, err := f.svc.ChangeStatus(ctx, caller, a.ID, next, "")
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "completed -> %s", next)
	}

	_, err = f.svc.ChangeStatus(ctx, caller, a.ID, appointment.Status("archived"), "")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatus)
}

func TestAppointmentService_Cancel_StampsAndNotifies(t *testing.T) {
	f := newSchedulingFixture(t)
	f.notifier.On("AppointmentCancelled", mock.Anything, mock.MatchedBy(func(d mailer.AppointmentDetails) bool {
		return d.Reason == "patient travelling"
	})).Return(errors.New("provider rejected")).Once()
	ctx := context.Background()
	caller := adminIdentity()

	a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusConfirmed)

	cancelled, err := f.svc.Cancel(ctx, caller, a.ID, "patient travelling")
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, caller.UserID, *cancelled.CancelledBy)
	assert.EqualValues(t, 1, f.metrics.mailFailed.Load())

	_, err = f.svc.Confirm(ctx, caller, a.ID)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
	f.notifier.AssertExpectations(t)
}

func TestAppointmentService_Reschedule(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	caller := adminIdentity()

	a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)
	f.appointments.book(f.patient.ID, f.doctor.ID, f.at(10, 0), 30, appointment.StatusScheduled)

	t.Run("extending over the next slot conflicts", func(t *testing.T) {
		minutes := 90
		_, err := f.svc.Reschedule(ctx, caller, a.ID, &appointment.RescheduleCommand{DurationMinutes: &minutes})
		require.ErrorIs(t, err, appointment.ErrSchedulingConflict)
	})

	t.Run("overlapping itself is fine", func(t *testing.T) {
		start := f.at(9, 15)
		moved, err := f.svc.Reschedule(ctx, caller, a.ID, &appointment.RescheduleCommand{StartsAt: &start})
		require.NoError(t, err)
		assert.Equal(t, f.at(9, 45), moved.EndsAt)
	})

	t.Run("notes only skips the lock", func(t *testing.T) {
		notes := "bring exams"
		updated, err := f.svc.Reschedule(ctx, caller, a.ID, &appointment.RescheduleCommand{Notes: &notes})
		require.NoError(t, err)
		require.NotNil(t, updated.Notes)
		assert.Equal(t, notes, *updated.Notes)
	})

	t.Run("terminal appointments are immutable", func(t *testing.T) {
		done := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(15, 0), 30, appointment.StatusCompleted)
		start := f.at(16, 0)
		_, err := f.svc.Reschedule(ctx, caller, done.ID, &appointment.RescheduleCommand{StartsAt: &start})
		require.ErrorIs(t, err, appointment.ErrCompletedImmutable)
	})
}

// statusRaceRepo lands a status change right after the first read of an
// appointment, before the caller gets to write it back.
type statusRaceRepo struct {
	*fakeAppointmentRepo
	to   appointment.Status
	once sync.Once
}

func (r *statusRaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := r.fakeAppointmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		landed := *a
		if err := landed.TransitionTo(r.to, uuid.New(), "changed elsewhere", time.Now().UTC()); err == nil {
			_ = r.fakeAppointmentRepo.UpdateStatus(ctx, &landed, a.Status)
		}
	})
	return a, nil
}

func TestAppointmentService_Reschedule_DoesNotUndoConcurrentStatusChange(t *testing.T) {
	tests := []struct {
		name    string
		to      appointment.Status
		moveTo  bool
		wantErr error
	}{
		{"cancel before notes edit", appointment.StatusCancelled, false, appointment.ErrCancelledImmutable},
		{"complete before notes edit", appointment.StatusCompleted, false, appointment.ErrCompletedImmutable},
		{"cancel before slot move", appointment.StatusCancelled, true, appointment.ErrCancelledImmutable},
		{"complete before slot move", appointment.StatusCompleted, true, appointment.ErrCompletedImmutable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedulingFixture(t)
			ctx := context.Background()
			repo := &statusRaceRepo{fakeAppointmentRepo: f.appointments, to: tt.to}
			svc := NewAppointmentService(repo, f.patients, f.professionals, f.resolver, f.notifier, nil, f.metrics, f.log)

			a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)

			notes := "bring exams"
			cmd := &appointment.RescheduleCommand{Notes: &notes}
			if tt.moveTo {
				start := f.at(11, 0)
				cmd.StartsAt = &start
			}
			_, err := svc.Reschedule(ctx, adminIdentity(), a.ID, cmd)
			require.ErrorIs(t, err, tt.wantErr)

			stored, err := f.appointments.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, stored.Status)
			assert.Nil(t, stored.Notes)
			assert.Equal(t, f.at(9, 0), stored.StartsAt)
		})
	}
}

func TestAppointmentService_Reschedule_ReportsStoredStatus(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	repo := &statusRaceRepo{fakeAppointmentRepo: f.appointments, to: appointment.StatusConfirmed}
	svc := NewAppointmentService(repo, f.patients, f.professionals, f.resolver, f.notifier, nil, f.metrics, f.log)

	a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)

	notes := "fasting"
	updated, err := svc.Reschedule(ctx, adminIdentity(), a.ID, &appointment.RescheduleCommand{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, updated.Status)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
}

func TestAppointmentService_ListsFollowScope(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	other := f.professionals.add("Carla Dias", "Dermatology")

	f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)
	f.appointments.book(f.patient.ID, other.ID, f.at(9, 0), 30, appointment.StatusScheduled)

	all, err := f.svc.ListByPeriod(ctx, adminIdentity(), f.day, f.day.AddDate(0, 0, 1), nil, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalCount)

	own, err := f.svc.ListByPeriod(ctx, professionalIdentity(other), f.day, f.day.AddDate(0, 0, 1), nil, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, own.TotalCount)
	assert.Equal(t, 20, own.PageSize)

	_, err = f.svc.ListByProfessionalAndPeriod(ctx, professionalIdentity(other), f.doctor.ID, f.day, f.day.AddDate(0, 0, 1), 1, 20)
	assert.ErrorIs(t, err, ErrForbidden)

	orphan := domain.Identity{UserID: uuid.New(), Role: domain.RoleProfessional}
	none, err := f.svc.ListByPeriod(ctx, orphan, f.day, f.day.AddDate(0, 0, 1), nil, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, none.Appointments)
}

func TestAppointmentService_Get_OutsideScope(t *testing.T) {
	f := newSchedulingFixture(t)
	other := f.professionals.add("Carla Dias", "Dermatology")
	a := f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)

	_, err := f.svc.Get(context.Background(), professionalIdentity(other), a.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Get(context.Background(), professionalIdentity(f.doctor), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestAppointmentService_ListByPatient_HidesOutOfScopePatients(t *testing.T) {
	f := newSchedulingFixture(t)
	ctx := context.Background()
	other := f.professionals.add("Carla Dias", "Dermatology")
	f.appointments.book(f.patient.ID, f.doctor.ID, f.at(9, 0), 30, appointment.StatusScheduled)

	for name, id := range map[string]uuid.UUID{"existing": f.patient.ID, "unknown": uuid.New()} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.ListByPatient(ctx, professionalIdentity(other), id, 1, 20)
			assert.ErrorIs(t, err, ErrForbidden)
			assert.NotErrorIs(t, err, domain.ErrNotFound)
		})
	}

	own, err := f.svc.ListByPatient(ctx, professionalIdentity(f.doctor), f.patient.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, own.TotalCount)

	_, err = f.svc.ListByPatient(ctx, adminIdentity(), uuid.New(), 1, 20)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
