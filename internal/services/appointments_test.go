package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
)

func TestBook_StoresHintsAsSuggestions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{
		DoctorID:    doctor.ID,
		Date:        e.at(9, 30),
		Description: "headache for three days",
		Severity:    "moderate",
		Priority:    models.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusScheduled, a.Status)
	assert.Equal(t, models.PriorityLow, a.Priority)
	assert.Equal(t, models.PriorityHigh, a.SuggestedPriority)
	assert.Equal(t, "moderate", a.Severity)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.AppointmentsBooked))
	p := e.progress(t, patient.ID)
	assert.Equal(t, 1.0, p.Progress["appointments_booked"])
	assert.True(t, p.HasUnlocked("first_appointment"))

	inbox := e.inbox(t, doctor.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationAppointmentBooked, inbox[0].Kind)
}

func TestBook_Rejections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	_, err := e.appointments.Book(ctx, doctor, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.appointments.Book(ctx, Caller{}, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(7, 0)})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: patient.ID, Date: e.at(10, 0)})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	require.NoError(t, err)
	other := e.seed(t, models.RolePatient)
	_, err = e.appointments.Book(ctx, other, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	assert.ErrorIs(t, err, repository.ErrSlotTaken)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.BookingConflicts))
}

func TestReschedule_Negotiation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)
	stranger := e.seed(t, models.RolePatient)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)

	_, err = e.appointments.RequestReschedule(ctx, stranger, a.ID, RescheduleInput{NewDate: e.at(14, 0)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.appointments.RequestReschedule(ctx, patient, a.ID, RescheduleInput{NewDate: e.at(14, 0), Reason: "work"})
	require.NoError(t, err)
	_, err = e.appointments.RequestReschedule(ctx, patient, a.ID, RescheduleInput{NewDate: e.at(15, 0)})
	assert.ErrorIs(t, err, models.ErrReschedulePending)

	_, err = e.appointments.ResolveReschedule(ctx, patient, a.ID, ResolveRescheduleInput{Action: ActionApprove})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionSuggest})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	suggested := e.at(16, 0)
	got, err := e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionSuggest, SuggestedDate: &suggested})
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleSuggested, got.RescheduleRequest.Status)

	got, err = e.appointments.AcceptSuggestion(ctx, patient, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReschedulePending, got.RescheduleRequest.Status)
	assert.Equal(t, suggested, got.RescheduleRequest.NewDate)

	_, err = e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionApprove})
	require.NoError(t, err)

	stored, err := e.appointments.Get(ctx, patient, a.ID)
	require.NoError(t, err)
	assert.Equal(t, suggested, stored.ScheduledAt)
	assert.Nil(t, stored.RescheduleRequest)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RescheduleResolutions.WithLabelValues(ActionApprove)))
}

func TestReschedule_DenyAndMissingRequest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)

	_, err = e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionDeny})
	assert.ErrorIs(t, err, models.ErrNoRescheduleRequest)

	_, err = e.appointments.ResolveReschedule(ctx, doctor, "missing", ResolveRescheduleInput{Action: ActionDeny})
	assert.ErrorIs(t, err, repository.ErrAppointmentNotFound)

	_, err = e.appointments.RequestReschedule(ctx, patient, a.ID, RescheduleInput{NewDate: e.at(11, 0), Reason: "travel"})
	require.NoError(t, err)
	got, err := e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionDeny})
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleRejected, got.RescheduleRequest.Status)
	assert.Equal(t, "travel", got.RescheduleRequest.Reason)

	// a rejected request may be replaced
	_, err = e.appointments.RequestReschedule(ctx, patient, a.ID, RescheduleInput{NewDate: e.at(12, 0)})
	assert.NoError(t, err)
}

func TestReschedule_ApproveIntoTakenSlot(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)
	_, err = e.appointments.RequestReschedule(ctx, patient, a.ID, RescheduleInput{NewDate: e.at(10, 0)})
	require.NoError(t, err)

	other := e.seed(t, models.RolePatient)
	_, err = e.appointments.Book(ctx, other, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	require.NoError(t, err)

	_, err = e.appointments.ResolveReschedule(ctx, doctor, a.ID, ResolveRescheduleInput{Action: ActionApprove})
	assert.ErrorIs(t, err, repository.ErrSlotTaken)
}

func TestUpdateOrder_SkipsForeignAppointments(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctorX := e.seed(t, models.RoleDoctor)
	doctorY := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctorX.ID, Date: e.at(9, 0)})
	require.NoError(t, err)
	b, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctorY.ID, Date: e.at(9, 0)})
	require.NoError(t, err)

	results, err := e.appointments.UpdateOrder(ctx, doctorX, []OrderUpdate{
		{ID: a.ID, Order: 0},
		{ID: b.ID, Order: 1},
		{ID: "missing", Order: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []OrderResult{
		{ID: a.ID, Applied: true},
		{ID: b.ID, Applied: false, Reason: ReasonNotOwner},
		{ID: "missing", Applied: false, Reason: ReasonNotFound},
	}, results)

	gotA, err := e.appts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, gotA.DisplayOrder)
	assert.Equal(t, 0, *gotA.DisplayOrder)

	gotB, err := e.appts.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, gotB.DisplayOrder)

	_, err = e.appointments.UpdateOrder(ctx, patient, []OrderUpdate{{ID: a.ID, Order: 0}})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestList_UsesDisplayOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	early, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)
	late, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(11, 0)})
	require.NoError(t, err)

	_, err = e.appointments.UpdateOrder(ctx, doctor, []OrderUpdate{{ID: late.ID, Order: 0}, {ID: early.ID, Order: 1}})
	require.NoError(t, err)

	list, err := e.appointments.List(ctx, doctor)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, late.ID, list[0].ID)

	_, err = e.appointments.Get(ctx, e.seed(t, models.RolePatient), early.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdatePriority(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)
	otherDoctor := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)

	_, err = e.appointments.UpdatePriority(ctx, otherDoctor, a.ID, models.PriorityHigh)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.appointments.UpdatePriority(ctx, doctor, a.ID, "urgent")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	got, err := e.appointments.UpdatePriority(ctx, doctor, a.ID, models.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, got.Priority)

	inbox := e.inbox(t, patient.ID)
	require.NotEmpty(t, inbox)
	assert.Equal(t, models.NotificationPriorityChanged, inbox[0].Kind)
}

func TestUpdateStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)
	doctor := e.seed(t, models.RoleDoctor)

	a, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)

	_, err = e.appointments.UpdateStatus(ctx, patient, a.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := e.appointments.UpdateStatus(ctx, doctor, a.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, e.progress(t, doctor.ID).Progress["patients_treated"])

	_, err = e.appointments.UpdateStatus(ctx, patient, a.ID, models.StatusCancelled)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	b, err := e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(10, 0)})
	require.NoError(t, err)
	got, err = e.appointments.UpdateStatus(ctx, patient, b.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}
