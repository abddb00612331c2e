// Package scheduling turns doctor availability into bookable slots and
// orders appointment lists for display.
package scheduling

import (
	"fmt"
	"time"

	"healthcare-companion-server/internal/models"
)

// DefaultStep is the slot granularity used when none is configured.
const DefaultStep = 30 * time.Minute

// CollisionTolerance is how close a booking must be to a slot to occupy it.
const CollisionTolerance = time.Second

// Slot is a candidate start time annotated with availability.
type Slot struct {
	Time      time.Time `json:"-"`
	Timestamp int64     `json:"timestamp"`
	Label     string    `json:"label"`
	Available bool      `json:"available"`
}

// Resolver produces candidate slots from a doctor's weekly availability.
// Calendar days are interpreted in Location.
type Resolver struct {
	Step     time.Duration
	Location *time.Location
}

func NewResolver(step time.Duration, loc *time.Location) Resolver {
	if step <= 0 {
		step = DefaultStep
	}
	if loc == nil {
		loc = time.UTC
	}
	return Resolver{Step: step, Location: loc}
}

// DayStart returns midnight of the calendar day containing t.
func (r Resolver) DayStart(t time.Time) time.Time {
	y, m, d := t.In(r.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.Location)
}

// ParseDay parses a "YYYY-MM-DD" day in the resolver's location.
func (r Resolver) ParseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, s, r.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return day, nil
}

// CandidateSlots lists slot start times covering [start, end) of the day at
// Step. Non-working days and invalid availability yield no slots.
func (r Resolver) CandidateSlots(av models.DoctorAvailability, day time.Time) []time.Time {
	if av.Validate() != nil {
		return nil
	}
	dayStart := r.DayStart(day)
	if !av.WorksOn(dayStart.Weekday()) {
		return nil
	}

	startMin, _ := models.ParseClock(av.StartTime)
	endMin, _ := models.ParseClock(av.EndTime)
	y, m, d := dayStart.Date()
	start := time.Date(y, m, d, 0, startMin, 0, 0, r.Location)
	end := time.Date(y, m, d, 0, endMin, 0, 0, r.Location)

	var slots []time.Time
	for t := start; t.Before(end); t = t.Add(r.Step) {
		slots = append(slots, t)
	}
	return slots
}

// FilterSlots marks each candidate unavailable when a booked timestamp falls
// within CollisionTolerance of it or when it lies strictly before now.
func FilterSlots(candidates []time.Time, booked []int64, now time.Time) []Slot {
	out := make([]Slot, 0, len(candidates))
	nowMs := now.UnixMilli()
	tol := CollisionTolerance.Milliseconds()

	for _, c := range candidates {
		ts := c.UnixMilli()
		available := ts >= nowMs
		if available {
			for _, b := range booked {
				if abs(b-ts) < tol {
					available = false
					break
				}
			}
		}
		out = append(out, Slot{
			Time:      c,
			Timestamp: ts,
			Label:     c.Format("15:04"),
			Available: available,
		})
	}
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
