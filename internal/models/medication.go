package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a dose slot within a day.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Night     TimeOfDay = "night"
)

func (t TimeOfDay) IsValid() bool {
	switch t {
	case Morning, Afternoon, Night:
		return true
	}
	return false
}

// DoseStatus is the outcome recorded for a scheduled dose.
type DoseStatus string

const (
	DoseTaken  DoseStatus = "taken"
	DoseMissed DoseStatus = "missed"
)

func (s DoseStatus) IsValid() bool {
	return s == DoseTaken || s == DoseMissed
}

// ScheduleEntry is one dose of a structured medication schedule.
type ScheduleEntry struct {
	TimeOfDay TimeOfDay `json:"timeOfDay" binding:"required,oneof=morning afternoon night"`
	Food      string    `json:"food,omitempty"`
	Quantity  int       `json:"quantity,omitempty" binding:"omitempty,min=1"`
}

// TakenLogKind distinguishes the two stored shapes of a taken-log entry.
type TakenLogKind int

const (
	// LegacyEntry is a bare "YYYY-MM-DD" string meaning "taken that day".
	LegacyEntry TakenLogKind = iota
	// StructuredEntry carries a time-of-day slot and a status.
	StructuredEntry
)

// TakenLogEntry is the decoded form of either taken-log shape.
type TakenLogEntry struct {
	Kind      TakenLogKind
	Date      string
	TimeOfDay TimeOfDay
	Status    DoseStatus
}

type structuredEntryJSON struct {
	Date      string     `json:"date"`
	TimeOfDay TimeOfDay  `json:"timeOfDay"`
	Status    DoseStatus `json:"status"`
}

// IsTaken reports whether the entry counts as a taken dose.
func (e TakenLogEntry) IsTaken() bool {
	return e.Kind == LegacyEntry || e.Status == DoseTaken
}

// MarshalJSON writes each variant in the shape it was stored in.
func (e TakenLogEntry) MarshalJSON() ([]byte, error) {
	if e.Kind == LegacyEntry {
		return json.Marshal(e.Date)
	}
	return json.Marshal(structuredEntryJSON{Date: e.Date, TimeOfDay: e.TimeOfDay, Status: e.Status})
}

func (e *TakenLogEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var date string
		if err := json.Unmarshal(data, &date); err != nil {
			return err
		}
		*e = TakenLogEntry{Kind: LegacyEntry, Date: date, Status: DoseTaken}
		return nil
	}

	var s structuredEntryJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding taken log entry: %w", err)
	}
	*e = TakenLogEntry{Kind: StructuredEntry, Date: s.Date, TimeOfDay: s.TimeOfDay, Status: s.Status}
	return nil
}

// TakenLog is the append-only adherence log of a medication.
type TakenLog []TakenLogEntry

func (l TakenLog) indexOf(kind TakenLogKind, date string, slot TimeOfDay) int {
	for i, e := range l {
		if e.Kind != kind || e.Date != date {
			continue
		}
		if kind == LegacyEntry || e.TimeOfDay == slot {
			return i
		}
	}
	return -1
}

// TakenOn counts the taken doses recorded for a date.
func (l TakenLog) TakenOn(date string) int {
	n := 0
	for _, e := range l {
		if e.Date == date && e.IsTaken() {
			n++
		}
	}
	return n
}

// TakenDates returns every date with at least one taken dose.
func (l TakenLog) TakenDates() map[string]struct{} {
	dates := make(map[string]struct{})
	for _, e := range l {
		if e.IsTaken() {
			dates[e.Date] = struct{}{}
		}
	}
	return dates
}

// Medication is a patient medication record. Start and end are epoch ms.
type Medication struct {
	BaseModel
	PatientID      string          `gorm:"size:36;index" json:"patientId"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Dosage         string          `gorm:"size:100" json:"dosage,omitempty"`
	Frequency      string          `gorm:"size:100" json:"frequency,omitempty"`
	DurationDays   *int            `json:"durationDays,omitempty"`
	Schedule       []ScheduleEntry `gorm:"serializer:json" json:"schedule,omitempty"`
	StartDate      int64           `gorm:"not null" json:"startDate"`
	EndDate        *int64          `json:"endDate,omitempty"`
	TakenLog       TakenLog        `gorm:"serializer:json" json:"takenLog"`
	Active         bool            `json:"active"`
	PrescriptionID *string         `gorm:"size:36;index" json:"prescriptionId,omitempty"`
}

// IsStructured reports whether the medication uses time-of-day slots.
func (m *Medication) IsStructured() bool {
	return len(m.Schedule) > 0
}

// ExpectedDoses is the number of doses due per active day.
func (m *Medication) ExpectedDoses() int {
	if len(m.Schedule) == 0 {
		return 1
	}
	return len(m.Schedule)
}

// ActiveOn reports whether the medication covers the calendar day containing
// day, evaluated in day's location.
func (m *Medication) ActiveOn(day time.Time) bool {
	y, mo, d := day.Date()
	startOfDay := time.Date(y, mo, d, 0, 0, 0, 0, day.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Millisecond)

	if m.StartDate > endOfDay.UnixMilli() {
		return false
	}
	return m.EndDate == nil || *m.EndDate >= startOfDay.UnixMilli()
}

// HasSlot reports whether the schedule contains the time of day.
func (m *Medication) HasSlot(slot TimeOfDay) bool {
	for _, s := range m.Schedule {
		if s.TimeOfDay == slot {
			return true
		}
	}
	return false
}

// SetDoseStatus applies the structured toggle: overwrite or append when a
// status is given, remove the entry when it is not.
func (m *Medication) SetDoseStatus(date string, slot TimeOfDay, status *DoseStatus) {
	i := m.TakenLog.indexOf(StructuredEntry, date, slot)
	switch {
	case i >= 0 && status != nil:
		m.TakenLog[i].Status = *status
	case i >= 0:
		m.TakenLog = append(m.TakenLog[:i], m.TakenLog[i+1:]...)
	case status != nil:
		m.TakenLog = append(m.TakenLog, TakenLogEntry{
			Kind:      StructuredEntry,
			Date:      date,
			TimeOfDay: slot,
			Status:    *status,
		})
	}
}

// SetLegacyTaken adds or removes the bare date entry with set semantics.
func (m *Medication) SetLegacyTaken(date string, taken bool) {
	i := m.TakenLog.indexOf(LegacyEntry, date, "")
	switch {
	case taken && i < 0:
		m.TakenLog = append(m.TakenLog, TakenLogEntry{Kind: LegacyEntry, Date: date, Status: DoseTaken})
	case !taken && i >= 0:
		m.TakenLog = append(m.TakenLog[:i], m.TakenLog[i+1:]...)
	}
}

// Deactivate stops the medication, closing an open end date at now.
func (m *Medication) Deactivate(now time.Time) {
	m.Active = false
	if m.EndDate == nil || *m.EndDate > now.UnixMilli() {
		end := now.UnixMilli()
		m.EndDate = &end
	}
}
