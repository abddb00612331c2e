package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-companion-server/internal/models"
)

func ptr[T any](v T) *T { return &v }

func (e *testEnv) daysAgo(n int) int64 {
	return e.now.AddDate(0, 0, -n).UnixMilli()
}

func TestMedications_Create(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)

	m, err := e.medications.Create(ctx, patient, CreateMedicationInput{
		Name:         "Amoxicillin",
		DurationDays: ptr(5),
		Schedule:     []models.ScheduleEntry{{TimeOfDay: models.Morning}, {TimeOfDay: models.Night}},
	})
	require.NoError(t, err)
	assert.True(t, m.Active)
	assert.Equal(t, e.now.UnixMilli(), m.StartDate)
	require.NotNil(t, m.EndDate)
	assert.Equal(t, e.now.AddDate(0, 0, 5).UnixMilli(), *m.EndDate)

	_, err = e.medications.Create(ctx, patient, CreateMedicationInput{Name: "Half", DurationDays: ptr(5)})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = e.medications.Create(ctx, e.seed(t, models.RoleDoctor), CreateMedicationInput{Name: "Nope"})
	assert.ErrorIs(t, err, ErrForbidden)

	doctor := e.seed(t, models.RoleDoctor)
	_, err = e.medications.List(ctx, doctor, "")
	assert.ErrorAs(t, err, &verr)
	_, err = e.medications.List(ctx, doctor, patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.appointments.Book(ctx, patient, BookAppointmentInput{DoctorID: doctor.ID, Date: e.at(9, 0)})
	require.NoError(t, err)
	list, err := e.medications.List(ctx, doctor, patient.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = e.medications.List(ctx, e.seed(t, models.RoleAdmin), patient.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestToggleTaken_StructuredDoses(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)

	m, err := e.medications.Create(ctx, patient, CreateMedicationInput{
		Name:         "Ibuprofen",
		DurationDays: ptr(7),
		Schedule:     []models.ScheduleEntry{{TimeOfDay: models.Morning}, {TimeOfDay: models.Night}},
	})
	require.NoError(t, err)

	taken := models.DoseTaken
	res, err := e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{
		Date: "2024-03-04", TimeOfDay: ptr(models.Morning), Status: &taken,
	})
	require.NoError(t, err)
	assert.Len(t, res.Medication.TakenLog, 1)
	assert.Equal(t, 1, res.Streak)

	p := e.progress(t, patient.ID)
	assert.Equal(t, 1.0, p.Progress["medications_taken"])
	assert.Equal(t, 1.0, p.Progress["streak_days"])
	assert.True(t, p.HasUnlocked("first_dose"))

	// overwriting the same slot keeps a single entry
	missed := models.DoseMissed
	res, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{
		Date: "2024-03-04", TimeOfDay: ptr(models.Morning), Status: &missed,
	})
	require.NoError(t, err)
	require.Len(t, res.Medication.TakenLog, 1)
	assert.Equal(t, models.DoseMissed, res.Medication.TakenLog[0].Status)
	assert.Equal(t, 0, res.Streak)

	p = e.progress(t, patient.ID)
	assert.Equal(t, 1.0, p.Progress["medications_taken"])
	assert.Equal(t, 0.0, p.Progress["streak_days"])

	// no status clears the entry
	res, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{
		Date: "2024-03-04", TimeOfDay: ptr(models.Morning),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Medication.TakenLog)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.DosesRecorded.WithLabelValues("taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.DosesRecorded.WithLabelValues("missed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.DosesRecorded.WithLabelValues("cleared")))
}

func TestToggleTaken_Rejections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)

	m, err := e.medications.Create(ctx, patient, CreateMedicationInput{
		Name:         "Metformin",
		DurationDays: ptr(30),
		Schedule:     []models.ScheduleEntry{{TimeOfDay: models.Morning}},
	})
	require.NoError(t, err)

	var verr *ValidationError
	_, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{Date: "2024-03-04"})
	assert.ErrorAs(t, err, &verr)

	_, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{Date: "04/03/2024", Taken: ptr(true)})
	assert.ErrorAs(t, err, &verr)

	_, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{Date: "2024-03-04", TimeOfDay: ptr(models.TimeOfDay("evening"))})
	assert.ErrorAs(t, err, &verr)

	_, err = e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{
		Date: "2024-03-04", TimeOfDay: ptr(models.Night), Status: ptr(models.DoseTaken),
	})
	assert.ErrorAs(t, err, &verr)

	_, err = e.medications.ToggleTaken(ctx, e.seed(t, models.RolePatient), m.ID, ToggleTakenInput{Date: "2024-03-04", Taken: ptr(true)})
	assert.ErrorIs(t, err, ErrForbidden)

	for name, date := range map[string]string{
		"tomorrow":          "2024-03-05",
		"before the course": "2024-03-03",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{
				Date: date, TimeOfDay: ptr(models.Morning), Status: ptr(models.DoseTaken),
			})
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	got, err := e.meds.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TakenLog)
}

func TestToggleTaken_LegacyStreakAndStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	patient := e.seed(t, models.RolePatient)

	m, err := e.medications.Create(ctx, patient, CreateMedicationInput{
		Name:      "Vitamin D",
		Frequency: "daily",
		StartDate: e.daysAgo(3),
	})
	require.NoError(t, err)

	for _, date := range []string{"2024-03-02", "2024-03-03", "2024-03-03"} {
		_, err := e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{Date: date, Taken: ptr(true)})
		require.NoError(t, err)
	}
	res, err := e.medications.ToggleTaken(ctx, patient, m.ID, ToggleTakenInput{Date: "2024-03-04", Taken: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, res.Medication.TakenLog, 3)
	assert.Equal(t, 3, res.Streak)
	assert.Equal(t, 3.0, e.progress(t, patient.ID).Progress["streak_days"])

	stats, err := e.medications.Stats(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Streak)
	// active on Mar 1 through Mar 4, taken on three of them
	assert.Equal(t, 75, stats.MonthlyAdherence)

	_, err = e.medications.Deactivate(ctx, patient, m.ID)
	require.NoError(t, err)
	got, err := e.meds.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.EndDate)
}
