package models

import (
	"strconv"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Priority is the doctor-assigned urgency tag.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// RescheduleStatus is the state of a pending reschedule negotiation.
// Approval removes the request rather than recording a status.
type RescheduleStatus string

const (
	ReschedulePending   RescheduleStatus = "pending"
	RescheduleRejected  RescheduleStatus = "rejected"
	RescheduleSuggested RescheduleStatus = "suggested"
)

// RescheduleRequest is the patient-initiated proposal attached to an appointment.
type RescheduleRequest struct {
	NewDate       int64            `json:"newDate"`
	Status        RescheduleStatus `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	SuggestedDate *int64           `json:"suggestedDate,omitempty"`
}

// Appointment represents a scheduled medical appointment. Timestamps are
// epoch milliseconds.
type Appointment struct {
	BaseModel
	PatientID         string             `gorm:"size:36;index" json:"patientId"`
	DoctorID          string             `gorm:"size:36;index:idx_appointments_doctor_time,priority:1" json:"doctorId"`
	ScheduledAt       int64              `gorm:"not null;index:idx_appointments_doctor_time,priority:2" json:"scheduledAt"`
	Status            AppointmentStatus  `gorm:"size:20;default:'scheduled'" json:"status"`
	Notes             string             `gorm:"type:text" json:"notes,omitempty"`
	Description       string             `gorm:"type:text" json:"description,omitempty"`
	AISummary         string             `gorm:"type:text" json:"aiSummary,omitempty"`
	ShowOriginal      bool               `json:"showOriginal"`
	Severity          string             `gorm:"size:20" json:"severity,omitempty"`
	SuggestedPriority Priority           `gorm:"size:20" json:"suggestedPriority,omitempty"`
	Priority          Priority           `gorm:"size:20;default:'low'" json:"priority"`
	DisplayOrder      *int               `json:"order,omitempty"`
	RescheduleRequest *RescheduleRequest `gorm:"serializer:json" json:"rescheduleRequest,omitempty"`

	// SlotKey is set only while the appointment is active so the unique
	// index admits one live booking per doctor and second.
	SlotKey *string `gorm:"size:64;uniqueIndex" json:"-"`
}

// BeforeSave keeps SlotKey in step with status and timestamp.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	a.SlotKey = a.slotKey()
	return nil
}

func (a *Appointment) slotKey() *string {
	if !a.IsActive() {
		return nil
	}
	key := a.DoctorID + "@" + strconv.FormatInt(a.ScheduledAt/1000, 10)
	return &key
}

// IsActive reports whether the appointment still occupies its slot.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}

// CanTransitionTo reports whether a status change is allowed.
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	return a.Status == StatusScheduled && (next == StatusCompleted || next == StatusCancelled)
}

func (a *Appointment) Cancel() error {
	if !a.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	a.Status = StatusCancelled
	a.RescheduleRequest = nil
	return nil
}

func (a *Appointment) Complete() error {
	if !a.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStatusTransition
	}
	a.Status = StatusCompleted
	a.RescheduleRequest = nil
	return nil
}

// RequestReschedule opens a new negotiation. A pending request blocks a new
// one; a rejected or suggested request is replaced.
func (a *Appointment) RequestReschedule(newDate int64, reason string) error {
	if a.Status != StatusScheduled {
		return ErrAppointmentNotActive
	}
	if a.RescheduleRequest != nil && a.RescheduleRequest.Status == ReschedulePending {
		return ErrReschedulePending
	}
	a.RescheduleRequest = &RescheduleRequest{
		NewDate: newDate,
		Status:  ReschedulePending,
		Reason:  reason,
	}
	return nil
}

func (a *Appointment) pendingRequest() (*RescheduleRequest, error) {
	if a.RescheduleRequest == nil {
		return nil, ErrNoRescheduleRequest
	}
	if a.RescheduleRequest.Status != ReschedulePending {
		return nil, ErrInvalidRescheduleState
	}
	return a.RescheduleRequest, nil
}

// ApproveReschedule moves the appointment to the requested time and clears
// the request.
func (a *Appointment) ApproveReschedule() error {
	req, err := a.pendingRequest()
	if err != nil {
		return err
	}
	a.ScheduledAt = req.NewDate
	a.RescheduleRequest = nil
	return nil
}

// DenyReschedule keeps the request, with its reason, for display.
func (a *Appointment) DenyReschedule() error {
	req, err := a.pendingRequest()
	if err != nil {
		return err
	}
	req.Status = RescheduleRejected
	return nil
}

func (a *Appointment) SuggestReschedule(suggested int64) error {
	req, err := a.pendingRequest()
	if err != nil {
		return err
	}
	req.Status = RescheduleSuggested
	req.SuggestedDate = &suggested
	return nil
}

// AcceptSuggestion turns the doctor's counter-proposal into a new pending
// request for the suggested time.
func (a *Appointment) AcceptSuggestion() error {
	req := a.RescheduleRequest
	if req == nil {
		return ErrNoRescheduleRequest
	}
	if req.Status != RescheduleSuggested || req.SuggestedDate == nil {
		return ErrInvalidRescheduleState
	}
	a.RescheduleRequest = &RescheduleRequest{
		NewDate: *req.SuggestedDate,
		Status:  ReschedulePending,
		Reason:  req.Reason,
	}
	return nil
}
