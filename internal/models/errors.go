package models

import "errors"

var (
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrAppointmentNotActive    = errors.New("appointment is not scheduled")
	ErrReschedulePending       = errors.New("a reschedule request is already pending")
	ErrNoRescheduleRequest     = errors.New("appointment has no reschedule request")
	ErrInvalidRescheduleState  = errors.New("reschedule request is not in a state that allows this action")
	ErrInvalidAvailability     = errors.New("invalid doctor availability")
	ErrInvalidTimeOfDay        = errors.New("invalid time of day")
	ErrInvalidDoseStatus       = errors.New("invalid dose status")
)
