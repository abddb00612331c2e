package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/scheduling"
	"healthcare-companion-server/internal/tracing"
)

// Reschedule resolution actions.
const (
	ActionApprove = "approve"
	ActionDeny    = "deny"
	ActionSuggest = "suggest"
)

// AppointmentService books appointments and runs the reschedule, priority
// and status workflows on them.
type AppointmentService struct {
	appts        repository.AppointmentRepository
	users        repository.UserRepository
	achievements *AchievementService
	notifier     *NotificationService
	metrics      *metrics.Collector
	log          *zap.Logger
	loc          *time.Location
	now          Clock
}

func NewAppointmentService(
	appts repository.AppointmentRepository,
	users repository.UserRepository,
	achievementSvc *AchievementService,
	notifier *NotificationService,
	m *metrics.Collector,
	loc *time.Location,
	log *zap.Logger,
) *AppointmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		appts:        appts,
		users:        users,
		achievements: achievementSvc,
		notifier:     notifier,
		metrics:      m,
		log:          log,
		loc:          loc,
		now:          systemClock,
	}
}

// BookAppointmentInput is a patient's booking request. Severity and Priority
// are AI triage hints and are stored as suggestions only.
type BookAppointmentInput struct {
	DoctorID     string          `json:"doctorId" binding:"required"`
	Date         int64           `json:"date" binding:"required,gt=0"`
	Description  string          `json:"description,omitempty" binding:"max=5000"`
	AISummary    string          `json:"aiSummary,omitempty" binding:"max=5000"`
	ShowOriginal bool            `json:"showOriginal"`
	Severity     string          `json:"severity,omitempty" binding:"max=20"`
	Priority     models.Priority `json:"priority,omitempty" binding:"omitempty,oneof=high medium low"`
	Notes        string          `json:"notes,omitempty" binding:"max=5000"`
}

// Book creates a scheduled appointment for the calling patient.
func (s *AppointmentService) Book(ctx context.Context, caller Caller, in BookAppointmentInput) (_ *models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.Book",
		attribute.String("doctor.id", in.DoctorID),
		attribute.Int64("appointment.date", in.Date),
	)
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if in.Date < s.now().UnixMilli() {
		return nil, invalid("date: must not be in the past")
	}

	doctor, err := s.users.GetByRole(ctx, in.DoctorID, models.RoleDoctor)
	if err != nil {
		return nil, fmt.Errorf("resolving doctor: %w", err)
	}
	taken, err := s.appts.HasConflict(ctx, doctor.ID, in.Date, "")
	if err != nil {
		return nil, fmt.Errorf("checking slot: %w", err)
	}
	if taken {
		s.metrics.BookingConflicts.Inc()
		return nil, fmt.Errorf("creating appointment: %w", repository.ErrSlotTaken)
	}

	a := &models.Appointment{
		PatientID:         caller.ID,
		DoctorID:          doctor.ID,
		ScheduledAt:       in.Date,
		Status:            models.StatusScheduled,
		Priority:          models.PriorityLow,
		SuggestedPriority: in.Priority,
		Severity:          in.Severity,
		Description:       in.Description,
		AISummary:         in.AISummary,
		ShowOriginal:      in.ShowOriginal,
		Notes:             in.Notes,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.metrics.AppointmentsBooked.Inc()
	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID),
		zap.String("patient_id", a.PatientID),
		zap.String("doctor_id", a.DoctorID),
		zap.Int64("scheduled_at", a.ScheduledAt),
	)

	s.achievements.track(ctx, caller.ID, achievements.KeyAppointmentsBooked, achievements.Add(1))
	s.notifier.Notify(ctx, doctor.ID, models.NotificationAppointmentBooked,
		"New appointment",
		"A patient booked an appointment for "+s.formatTime(a.ScheduledAt)+".")
	return a, nil
}

// List returns the caller's appointments in display order: patients see
// their own, doctors their calendar, admins everything.
func (s *AppointmentService) List(ctx context.Context, caller Caller) (_ []models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.List")
	defer func() { tracing.End(span, err) }()

	var list []models.Appointment
	switch {
	case caller.ID == "":
		return nil, ErrUnauthenticated
	case caller.Is(models.RolePatient):
		list, err = s.appts.ListByPatient(ctx, caller.ID)
	case caller.Is(models.RoleDoctor):
		list, err = s.appts.ListByDoctor(ctx, caller.ID)
	case caller.Is(models.RoleAdmin):
		list, err = s.appts.ListAll(ctx)
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Appointment{}
	}
	scheduling.SortForDisplay(list)
	return list, nil
}

// Get returns one appointment visible to the caller.
func (s *AppointmentService) Get(ctx context.Context, caller Caller, id string) (*models.Appointment, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

func canView(caller Caller, a *models.Appointment) bool {
	switch caller.Role {
	case models.RoleAdmin:
		return true
	case models.RolePatient:
		return a.PatientID == caller.ID
	case models.RoleDoctor:
		return a.DoctorID == caller.ID
	}
	return false
}

// RescheduleInput is a patient's proposal for a new time.
type RescheduleInput struct {
	NewDate int64  `json:"newDate" binding:"required,gt=0"`
	Reason  string `json:"reason,omitempty" binding:"max=1000"`
}

// RequestReschedule opens a reschedule negotiation on the patient's own
// appointment. A request that is still pending blocks a new one.
func (s *AppointmentService) RequestReschedule(ctx context.Context, caller Caller, id string, in RescheduleInput) (_ *models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.RequestReschedule", attribute.String("appointment.id", id))
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if in.NewDate < s.now().UnixMilli() {
		return nil, invalid("newDate: must not be in the past")
	}

	a, err := s.appts.Update(ctx, id, func(a *models.Appointment) error {
		if a.PatientID != caller.ID {
			return ErrForbidden
		}
		return a.RequestReschedule(in.NewDate, in.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, a.DoctorID, models.NotificationRescheduleRequested,
		"Reschedule requested",
		"A patient asked to move their appointment to "+s.formatTime(in.NewDate)+".")
	return a, nil
}

// ResolveRescheduleInput is the doctor's decision on a pending request.
type ResolveRescheduleInput struct {
	Action        string `json:"action" binding:"required,oneof=approve deny suggest"`
	SuggestedDate *int64 `json:"suggestedDate,omitempty" binding:"omitempty,gt=0"`
}

// ResolveReschedule approves, denies or counter-suggests a pending request
// on the doctor's own appointment. Approval is subject to the slot guard.
func (s *AppointmentService) ResolveReschedule(ctx context.Context, caller Caller, id string, in ResolveRescheduleInput) (_ *models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.ResolveReschedule",
		attribute.String("appointment.id", id),
		attribute.String("reschedule.action", in.Action),
	)
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RoleDoctor); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if in.Action == ActionSuggest && in.SuggestedDate == nil {
		return nil, invalid("suggestedDate: required when action is suggest")
	}

	a, err := s.appts.Update(ctx, id, func(a *models.Appointment) error {
		if a.DoctorID != caller.ID {
			return ErrForbidden
		}
		switch in.Action {
		case ActionApprove:
			return a.ApproveReschedule()
		case ActionDeny:
			return a.DenyReschedule()
		default:
			return a.SuggestReschedule(*in.SuggestedDate)
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.RescheduleResolutions.WithLabelValues(in.Action).Inc()
	s.log.Info("reschedule resolved",
		zap.String("appointment_id", a.ID),
		zap.String("action", in.Action),
	)

	var body string
	switch in.Action {
	case ActionApprove:
		body = "Your appointment was moved to " + s.formatTime(a.ScheduledAt) + "."
	case ActionDeny:
		body = "Your reschedule request was declined."
	default:
		body = "Your doctor suggested " + s.formatTime(*in.SuggestedDate) + " instead."
	}
	s.notifier.Notify(ctx, a.PatientID, models.NotificationRescheduleResolved, "Reschedule update", body)
	return a, nil
}

// AcceptSuggestion turns the doctor's counter-proposal into a new pending request.
func (s *AppointmentService) AcceptSuggestion(ctx context.Context, caller Caller, id string) (*models.Appointment, error) {
	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	a, err := s.appts.Update(ctx, id, func(a *models.Appointment) error {
		if a.PatientID != caller.ID {
			return ErrForbidden
		}
		return a.AcceptSuggestion()
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, a.DoctorID, models.NotificationRescheduleRequested,
		"Suggestion accepted",
		"A patient accepted your suggested time of "+s.formatTime(a.RescheduleRequest.NewDate)+".")
	return a, nil
}

// UpdatePriority sets the doctor-assigned priority of an appointment.
func (s *AppointmentService) UpdatePriority(ctx context.Context, caller Caller, id string, priority models.Priority) (_ *models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.UpdatePriority", attribute.String("appointment.id", id))
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RoleDoctor); err != nil {
		return nil, err
	}
	if !priority.IsValid() {
		return nil, invalid("priority: must be one of high, medium, low")
	}

	a, err := s.appts.Update(ctx, id, func(a *models.Appointment) error {
		if a.DoctorID != caller.ID {
			return ErrForbidden
		}
		a.Priority = priority
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, a.PatientID, models.NotificationPriorityChanged,
		"Appointment priority updated",
		"Your appointment on "+s.formatTime(a.ScheduledAt)+" is now "+string(priority)+" priority.")
	return a, nil
}

// OrderUpdate is one entry of a manual reorder batch.
type OrderUpdate struct {
	ID    string `json:"id" binding:"required"`
	Order int    `json:"order" binding:"min=0"`
}

// OrderResult reports what happened to one entry of a reorder batch.
type OrderResult struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Reasons an order update was skipped.
const (
	ReasonNotFound = "not_found"
	ReasonNotOwner = "not_owner"
	ReasonFailed   = "failed"
)

// UpdateOrder applies a batch of manual display positions. Each entry is
// applied independently: entries for appointments that do not exist or
// belong to another doctor are skipped and reported, never failing the call.
func (s *AppointmentService) UpdateOrder(ctx context.Context, caller Caller, updates []OrderUpdate) (_ []OrderResult, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.UpdateOrder", attribute.Int("batch.size", len(updates)))
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RoleDoctor); err != nil {
		return nil, err
	}
	for i, u := range updates {
		if u.ID == "" || u.Order < 0 {
			return nil, invalid(fmt.Sprintf("updates[%d]: id is required and order must not be negative", i))
		}
	}

	results := make([]OrderResult, 0, len(updates))
	for _, u := range updates {
		order := u.Order
		_, err := s.appts.Update(ctx, u.ID, func(a *models.Appointment) error {
			if a.DoctorID != caller.ID {
				return ErrForbidden
			}
			a.DisplayOrder = &order
			return nil
		})

		res := OrderResult{ID: u.ID, Applied: err == nil}
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrAppointmentNotFound):
			res.Reason = ReasonNotFound
		case errors.Is(err, ErrForbidden):
			res.Reason = ReasonNotOwner
		default:
			res.Reason = ReasonFailed
			s.log.Error("order update failed", zap.String("appointment_id", u.ID), zap.Error(err))
		}
		results = append(results, res)
	}
	return results, nil
}

// UpdateStatus cancels or completes an appointment. Either participant may
// cancel; only the doctor may complete, which counts as a treated patient.
func (s *AppointmentService) UpdateStatus(ctx context.Context, caller Caller, id string, status models.AppointmentStatus) (_ *models.Appointment, err error) {
	ctx, span := tracing.Start(ctx, "AppointmentService.UpdateStatus",
		attribute.String("appointment.id", id),
		attribute.String("appointment.status", string(status)),
	)
	defer func() { tracing.End(span, err) }()

	if err := caller.require(models.RolePatient, models.RoleDoctor); err != nil {
		return nil, err
	}
	switch status {
	case models.StatusCancelled:
	case models.StatusCompleted:
		if !caller.Is(models.RoleDoctor) {
			return nil, ErrForbidden
		}
	default:
		return nil, invalid("status: must be cancelled or completed")
	}

	a, err := s.appts.Update(ctx, id, func(a *models.Appointment) error {
		if !canView(caller, a) {
			return ErrForbidden
		}
		if status == models.StatusCompleted {
			return a.Complete()
		}
		return a.Cancel()
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentStatus.WithLabelValues(string(status)).Inc()
	s.log.Info("appointment status changed",
		zap.String("appointment_id", a.ID),
		zap.String("status", string(status)),
		zap.String("by", caller.ID),
	)

	if status == models.StatusCompleted {
		s.achievements.track(ctx, a.DoctorID, achievements.KeyPatientsTreated, achievements.Add(1))
	}
	counterpart := a.DoctorID
	if caller.Is(models.RoleDoctor) {
		counterpart = a.PatientID
	}
	s.notifier.Notify(ctx, counterpart, models.NotificationAppointmentStatus,
		"Appointment "+string(status),
		"The appointment on "+s.formatTime(a.ScheduledAt)+" was "+string(status)+".")
	return a, nil
}

func (s *AppointmentService) formatTime(ms int64) string {
	return time.UnixMilli(ms).In(s.loc).Format("Mon Jan 2, 2006 15:04")
}
