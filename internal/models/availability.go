package models

import (
	"fmt"
	"time"
)

// Weekdays lists the working-day labels in calendar order, indexed by time.Weekday.
var Weekdays = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DoctorAvailability is a doctor's weekly working window.
type DoctorAvailability struct {
	Days      []string `json:"days" binding:"required,dive,oneof=Mon Tue Wed Thu Fri Sat Sun"`
	StartTime string   `json:"startTime" binding:"required"`
	EndTime   string   `json:"endTime" binding:"required"`
}

// DefaultAvailability is used for doctors who never configured their hours.
func DefaultAvailability() DoctorAvailability {
	return DoctorAvailability{
		Days:      []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		StartTime: "09:00",
		EndTime:   "17:00",
	}
}

// Validate enforces HH:MM bounds with start < end and known day labels.
func (a DoctorAvailability) Validate() error {
	start, err := ParseClock(a.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start time: %v", ErrInvalidAvailability, err)
	}
	end, err := ParseClock(a.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end time: %v", ErrInvalidAvailability, err)
	}
	if start >= end {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidAvailability)
	}
	for _, d := range a.Days {
		if weekdayIndex(d) < 0 {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidAvailability, d)
		}
	}
	return nil
}

// WorksOn reports whether the weekday is one of the configured working days.
func (a DoctorAvailability) WorksOn(day time.Weekday) bool {
	for _, d := range a.Days {
		if weekdayIndex(d) == int(day) {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func weekdayIndex(label string) int {
	for i, d := range Weekdays {
		if d == label {
			return i
		}
	}
	return -1
}
