package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/adherence"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/tracing"
)

const oneDay = 24 * time.Hour

// MedicationService manages a patient's medications and their taken logs.
type MedicationService struct {
	meds         repository.MedicationRepository
	appts        repository.AppointmentRepository
	achievements *AchievementService
	metrics      *metrics.Collector
	log          *zap.Logger
	loc          *time.Location
	now          Clock
}

func NewMedicationService(meds repository.MedicationRepository, appts repository.AppointmentRepository, achievementSvc *AchievementService, m *metrics.Collector, loc *time.Location, log *zap.Logger) *MedicationService {
	if loc == nil {
		loc = time.UTC
	}
	return &MedicationService{meds: meds, appts: appts, achievements: achievementSvc, metrics: m, log: log, loc: loc, now: systemClock}
}

// CreateMedicationInput is a patient's own medication entry. Supplying a
// duration and a schedule creates a structured medication; otherwise the
// legacy dosage/frequency fields describe it.
type CreateMedicationInput struct {
	Name         string                 `json:"name" binding:"required,max=255"`
	Dosage       string                 `json:"dosage,omitempty" binding:"max=100"`
	Frequency    string                 `json:"frequency,omitempty" binding:"max=100"`
	DurationDays *int                   `json:"durationDays,omitempty" binding:"omitempty,min=1,max=365"`
	Schedule     []models.ScheduleEntry `json:"schedule,omitempty" binding:"omitempty,dive"`
	StartDate    int64                  `json:"startDate,omitempty" binding:"omitempty,gt=0"`
}

// Create stores a new active medication for the calling patient.
func (s *MedicationService) Create(ctx context.Context, caller Caller, in CreateMedicationInput) (_ *models.Medication, err error) {
	ctx, span := tracing.Start(ctx, "MedicationService.Create")
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if (in.DurationDays == nil) != (len(in.Schedule) == 0) {
		return nil, invalid("durationDays and schedule must be given together")
	}

	start := in.StartDate
	if start == 0 {
		start = s.now().UnixMilli()
	}
	m := &models.Medication{
		PatientID: caller.ID,
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		StartDate: start,
		TakenLog:  models.TakenLog{},
		Active:    true,
	}
	if in.DurationDays != nil {
		m.DurationDays = in.DurationDays
		m.Schedule = in.Schedule
		end := courseEnd(start, *in.DurationDays)
		m.EndDate = &end
	}

	if err := s.meds.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating medication: %w", err)
	}
	s.log.Info("medication created", zap.String("medication_id", m.ID), zap.String("patient_id", caller.ID))
	return m, nil
}

func courseEnd(start int64, days int) int64 {
	return start + (time.Duration(days) * oneDay).Milliseconds()
}

// List returns the caller's medications, or a patient's when one of their
// doctors or an admin asks.
func (s *MedicationService) List(ctx context.Context, caller Caller, patientID string) ([]models.Medication, error) {
	switch {
	case caller.ID == "":
		return nil, ErrUnauthenticated
	case caller.Is(models.RolePatient):
		patientID = caller.ID
	case caller.Is(models.RoleDoctor), caller.Is(models.RoleAdmin):
		if patientID == "" {
			return nil, invalid("patientId: required")
		}
		if caller.Is(models.RoleDoctor) {
			if err := requireCareLink(ctx, s.appts, caller.ID, patientID); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ErrForbidden
	}

	list, err := s.meds.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Medication{}
	}
	return list, nil
}

// Deactivate stops one of the caller's medications.
func (s *MedicationService) Deactivate(ctx context.Context, caller Caller, id string) (*models.Medication, error) {
	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	return s.meds.Update(ctx, id, func(m *models.Medication) error {
		if m.PatientID != caller.ID {
			return ErrForbidden
		}
		m.Deactivate(s.now())
		return nil
	})
}

// ToggleTakenInput records or clears a dose. TimeOfDay selects the
// structured path, where a nil Status removes the entry; Taken drives the
// legacy per-day path.
type ToggleTakenInput struct {
	Date      string             `json:"date" binding:"required,datetime=2006-01-02"`
	TimeOfDay *models.TimeOfDay  `json:"timeOfDay,omitempty"`
	Status    *models.DoseStatus `json:"status,omitempty"`
	Taken     *bool              `json:"taken,omitempty"`
}

// ToggleResult is the medication after the toggle plus the fresh streak.
type ToggleResult struct {
	Medication *models.Medication `json:"medication"`
	Streak     int                `json:"streak"`
}

// ToggleTaken mutates the taken log of one of the caller's medications for a
// day up to today that falls within the course. A call that records a taken
// dose counts toward medications_taken; every call refreshes the
// streak_days counter.
func (s *MedicationService) ToggleTaken(ctx context.Context, caller Caller, id string, in ToggleTakenInput) (_ *ToggleResult, err error) {
	ctx, span := tracing.Start(ctx, "MedicationService.ToggleTaken", attribute.String("medication.id", id))
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	switch {
	case in.TimeOfDay != nil:
		if !in.TimeOfDay.IsValid() {
			return nil, invalid(models.ErrInvalidTimeOfDay.Error())
		}
		if in.Status != nil && !in.Status.IsValid() {
			return nil, invalid(models.ErrInvalidDoseStatus.Error())
		}
	case in.Taken == nil:
		return nil, invalid("either timeOfDay or taken is required")
	}
	day, err := time.ParseInLocation(models.DateLayout, in.Date, s.loc)
	if err != nil {
		return nil, invalid("date: " + err.Error())
	}
	if day.After(s.now().In(s.loc)) {
		return nil, invalid("date: must not be in the future")
	}

	m, err := s.meds.Update(ctx, id, func(m *models.Medication) error {
		if m.PatientID != caller.ID {
			return ErrForbidden
		}
		if !m.ActiveOn(day) {
			return invalid(fmt.Sprintf("date: %s is outside this medication's course", in.Date))
		}
		if in.TimeOfDay != nil {
			if m.IsStructured() && !m.HasSlot(*in.TimeOfDay) {
				return invalid(fmt.Sprintf("timeOfDay: %s is not on this medication's schedule", *in.TimeOfDay))
			}
			m.SetDoseStatus(in.Date, *in.TimeOfDay, in.Status)
			return nil
		}
		m.SetLegacyTaken(in.Date, *in.Taken)
		return nil
	})
	if err != nil {
		return nil, err
	}

	recorded := "cleared"
	switch {
	case in.TimeOfDay != nil && in.Status != nil:
		recorded = string(*in.Status)
	case in.TimeOfDay == nil && *in.Taken:
		recorded = string(models.DoseTaken)
	}
	s.metrics.DosesRecorded.WithLabelValues(recorded).Inc()

	if recorded == string(models.DoseTaken) {
		s.achievements.track(ctx, caller.ID, achievements.KeyMedicationsTaken, achievements.Add(1))
	}

	streak, err := s.streak(ctx, caller.ID)
	if err != nil {
		s.log.Warn("streak refresh failed", zap.String("patient_id", caller.ID), zap.Error(err))
	} else {
		s.achievements.track(ctx, caller.ID, achievements.KeyStreakDays, achievements.Set(float64(streak)))
	}
	return &ToggleResult{Medication: m, Streak: streak}, nil
}

func (s *MedicationService) streak(ctx context.Context, patientID string) (int, error) {
	meds, err := s.meds.ListByPatient(context.WithoutCancel(ctx), patientID)
	if err != nil {
		return 0, err
	}
	return adherence.Streak(meds, s.now().In(s.loc)), nil
}

// Stats returns the caller's streak and trailing 30-day adherence.
func (s *MedicationService) Stats(ctx context.Context, caller Caller) (_ *adherence.Stats, err error) {
	ctx, span := tracing.Start(ctx, "MedicationService.Stats")
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	meds, err := s.meds.ListByPatient(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	stats := adherence.Summarize(meds, s.now().In(s.loc))
	return &stats, nil
}

