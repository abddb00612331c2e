package models

import (
	"time"
)

// NotificationKind tags what triggered a notification.
type NotificationKind string

const (
	NotificationPriorityChanged     NotificationKind = "priority_changed"
	NotificationRescheduleRequested NotificationKind = "reschedule_requested"
	NotificationRescheduleResolved  NotificationKind = "reschedule_resolved"
	NotificationAppointmentBooked   NotificationKind = "appointment_booked"
	NotificationAppointmentStatus   NotificationKind = "appointment_status"
	NotificationPrescription        NotificationKind = "prescription_issued"
	NotificationFollowUp            NotificationKind = "prescription_followup"
	NotificationAchievement         NotificationKind = "achievement_unlocked"
)

// Notification is an in-app message for one user. It becomes visible once
// DeliverAt has passed, which is how delayed follow-ups are scheduled.
type Notification struct {
	BaseModel
	UserID    string           `gorm:"size:36;index:idx_notifications_user_deliver,priority:1" json:"userId"`
	Kind      NotificationKind `gorm:"size:40" json:"kind"`
	Title     string           `gorm:"size:255" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	Read      bool             `gorm:"column:is_read;default:false" json:"read"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	DeliverAt time.Time        `gorm:"index:idx_notifications_user_deliver,priority:2" json:"deliverAt"`
}
