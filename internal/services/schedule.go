package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/scheduling"
	"healthcare-companion-server/internal/tracing"
)

// ScheduleService exposes doctor availability and the bookable slots it yields.
type ScheduleService struct {
	users    repository.UserRepository
	appts    repository.AppointmentRepository
	resolver scheduling.Resolver
	log      *zap.Logger
	now      Clock
}

func NewScheduleService(users repository.UserRepository, appts repository.AppointmentRepository, resolver scheduling.Resolver, log *zap.Logger) *ScheduleService {
	return &ScheduleService{users: users, appts: appts, resolver: resolver, log: log, now: systemClock}
}

// GetAvailability returns a doctor's working hours, or the default week when
// none were configured.
func (s *ScheduleService) GetAvailability(ctx context.Context, doctorID string) (*models.DoctorAvailability, error) {
	doctor, err := s.users.GetByRole(ctx, doctorID, models.RoleDoctor)
	if err != nil {
		return nil, err
	}
	av := doctor.EffectiveAvailability()
	return &av, nil
}

// UpdateAvailability replaces the calling doctor's working hours.
func (s *ScheduleService) UpdateAvailability(ctx context.Context, caller Caller, av models.DoctorAvailability) (*models.DoctorAvailability, error) {
	if err := caller.require(models.RoleDoctor); err != nil {
		return nil, err
	}
	if err := validateCommand(av); err != nil {
		return nil, err
	}
	if err := av.Validate(); err != nil {
		return nil, invalid(err.Error())
	}

	if _, err := s.users.Update(ctx, caller.ID, func(u *models.User) error {
		u.Availability = &av
		return nil
	}); err != nil {
		return nil, fmt.Errorf("saving availability: %w", err)
	}
	s.log.Info("availability updated", zap.String("doctor_id", caller.ID), zap.Strings("days", av.Days))
	return &av, nil
}

// DaySlots is the slot listing for one doctor and day.
type DaySlots struct {
	DoctorID string            `json:"doctorId"`
	Date     string            `json:"date"`
	Slots    []scheduling.Slot `json:"slots"`
}

// Slots lists the doctor's candidate slots on day ("YYYY-MM-DD") with
// availability against active bookings and the current time.
func (s *ScheduleService) Slots(ctx context.Context, doctorID, day string) (_ *DaySlots, err error) {
	ctx, span := tracing.Start(ctx, "ScheduleService.Slots",
		attribute.String("doctor.id", doctorID),
		attribute.String("slots.date", day),
	)
	defer func() { tracing.End(span, err) }()

	date, err := s.resolver.ParseDay(day)
	if err != nil {
		return nil, invalid("date: " + err.Error())
	}
	doctor, err := s.users.GetByRole(ctx, doctorID, models.RoleDoctor)
	if err != nil {
		return nil, err
	}

	out := &DaySlots{DoctorID: doctor.ID, Date: day, Slots: []scheduling.Slot{}}
	candidates := s.resolver.CandidateSlots(doctor.EffectiveAvailability(), date)
	if len(candidates) == 0 {
		return out, nil
	}

	start := s.resolver.DayStart(date)
	end := start.AddDate(0, 0, 1)
	tol := scheduling.CollisionTolerance.Milliseconds()
	booked, err := s.appts.BookedTimestamps(ctx, doctor.ID, start.UnixMilli()-tol, end.UnixMilli()+tol)
	if err != nil {
		return nil, fmt.Errorf("loading bookings: %w", err)
	}

	out.Slots = scheduling.FilterSlots(candidates, booked, s.now())
	return out, nil
}
