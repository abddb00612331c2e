package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/tracing"
)

// PrescriptionService closes an appointment with a prescription.
type PrescriptionService struct {
	prescriptions repository.PrescriptionRepository
	achievements  *AchievementService
	notifier      *NotificationService
	metrics       *metrics.Collector
	log           *zap.Logger
	now           Clock
}

func NewPrescriptionService(
	prescriptions repository.PrescriptionRepository,
	achievementSvc *AchievementService,
	notifier *NotificationService,
	m *metrics.Collector,
	log *zap.Logger,
) *PrescriptionService {
	return &PrescriptionService{
		prescriptions: prescriptions,
		achievements:  achievementSvc,
		notifier:      notifier,
		metrics:       m,
		log:           log,
		now:           systemClock,
	}
}

// IssuePrescriptionInput is the doctor's prescription for an appointment.
type IssuePrescriptionInput struct {
	Diagnosis string                    `json:"diagnosis,omitempty" binding:"max=2000"`
	Notes     string                    `json:"notes,omitempty" binding:"max=5000"`
	Items     []models.PrescriptionItem `json:"items" binding:"required,min=1,max=20,dive"`
}

// Issue records the prescription, creates one structured medication per
// item for the patient and completes the appointment, all in one
// transaction. A follow-up notification becomes visible once the longest
// course has run.
func (s *PrescriptionService) Issue(ctx context.Context, caller Caller, appointmentID string, in IssuePrescriptionInput) (_ *models.Prescription, err error) {
	ctx, span := tracing.Start(ctx, "PrescriptionService.Issue", attribute.String("appointment.id", appointmentID))
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RoleDoctor); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}

	now := s.now()
	start := now.UnixMilli()
	p, appt, err := s.prescriptions.Issue(ctx, appointmentID, func(a *models.Appointment) (*models.Prescription, []models.Medication, error) {
		if a.DoctorID != caller.ID {
			return nil, nil, ErrForbidden
		}
		if err := a.Complete(); err != nil {
			return nil, nil, err
		}

		p := &models.Prescription{
			AppointmentID: a.ID,
			DoctorID:      a.DoctorID,
			PatientID:     a.PatientID,
			Diagnosis:     in.Diagnosis,
			Notes:         in.Notes,
			Items:         in.Items,
		}
		meds := make([]models.Medication, 0, len(in.Items))
		for _, item := range in.Items {
			duration := item.DurationDays
			end := courseEnd(start, duration)
			meds = append(meds, models.Medication{
				PatientID:    a.PatientID,
				Name:         item.Name,
				Dosage:       item.Dosage,
				DurationDays: &duration,
				Schedule:     item.Schedule,
				StartDate:    start,
				EndDate:      &end,
				TakenLog:     models.TakenLog{},
				Active:       true,
			})
		}
		return p, meds, nil
	})
	if err != nil {
		return nil, fmt.Errorf("issuing prescription: %w", err)
	}

	s.metrics.PrescriptionsIssued.Inc()
	s.metrics.AppointmentStatus.WithLabelValues(string(models.StatusCompleted)).Inc()
	s.log.Info("prescription issued",
		zap.String("prescription_id", p.ID),
		zap.String("appointment_id", appt.ID),
		zap.String("patient_id", appt.PatientID),
		zap.Int("items", len(p.Items)),
	)

	s.achievements.track(ctx, caller.ID, achievements.KeyPatientsTreated, achievements.Add(1))
	s.achievements.track(ctx, caller.ID, achievements.KeyPrescriptionsWritten, achievements.Add(1))

	s.notifier.Notify(ctx, appt.PatientID, models.NotificationPrescription,
		"New prescription",
		fmt.Sprintf("Your doctor prescribed %d medication(s). They have been added to your list.", len(p.Items)))
	followUp := now.Add(time.Duration(p.MaxDurationDays()) * oneDay)
	s.notifier.NotifyAt(ctx, appt.PatientID, models.NotificationFollowUp,
		"How are you feeling?",
		"Your prescribed course has finished. Book a follow-up if symptoms persist.",
		followUp)
	return p, nil
}

// List returns the prescriptions the caller wrote or received.
func (s *PrescriptionService) List(ctx context.Context, caller Caller) ([]models.Prescription, error) {
	var (
		list []models.Prescription
		err  error
	)
	switch {
	case caller.ID == "":
		return nil, ErrUnauthenticated
	case caller.Is(models.RolePatient):
		list, err = s.prescriptions.ListByPatient(ctx, caller.ID)
	case caller.Is(models.RoleDoctor):
		list, err = s.prescriptions.ListByDoctor(ctx, caller.ID)
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Prescription{}
	}
	return list, nil
}
