// Package achievements holds the achievement catalog and the unlock rules
// applied whenever a progress counter changes.
package achievements

import "healthcare-companion-server/internal/models"

// Type describes how an achievement's target is interpreted.
type Type string

const (
	TypeProgress Type = "progress"
	TypeOneTime  Type = "one_time"
	TypeStreak   Type = "streak"
	TypeTime     Type = "time"
)

// Progress counter names.
const (
	KeyMedicationsTaken     = "medications_taken"
	KeyStreakDays           = "streak_days"
	KeyArticlesRead         = "articles_read"
	KeyReportsUploaded      = "reports_uploaded"
	KeyAppointmentsBooked   = "appointments_booked"
	KeyProfileCompleted     = "profile_completed"
	KeyDaysActive           = "days_active"
	KeyPatientsTreated      = "patients_treated"
	KeyPrescriptionsWritten = "prescriptions_written"
)

// Achievement is a catalog entry.
type Achievement struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Points      int     `json:"points"`
	Type        Type    `json:"type"`
	Target      float64 `json:"target"`
	ProgressKey string  `json:"progressKey"`
}

var patientCatalog = []Achievement{
	{ID: "first_dose", Title: "First Dose", Description: "Record your first taken medication.", Points: 10, Type: TypeOneTime, Target: 1, ProgressKey: KeyMedicationsTaken},
	{ID: "pill_pro", Title: "Pill Pro", Description: "Record 50 taken doses.", Points: 50, Type: TypeProgress, Target: 50, ProgressKey: KeyMedicationsTaken},
	{ID: "week_streak", Title: "Week Warrior", Description: "Keep a 7-day medication streak.", Points: 30, Type: TypeStreak, Target: 7, ProgressKey: KeyStreakDays},
	{ID: "month_streak", Title: "Monthly Master", Description: "Keep a 30-day medication streak.", Points: 100, Type: TypeStreak, Target: 30, ProgressKey: KeyStreakDays},
	{ID: "first_appointment", Title: "Check-up Champion", Description: "Book your first appointment.", Points: 10, Type: TypeOneTime, Target: 1, ProgressKey: KeyAppointmentsBooked},
	{ID: "record_keeper", Title: "Record Keeper", Description: "Upload 5 health reports.", Points: 25, Type: TypeProgress, Target: 5, ProgressKey: KeyReportsUploaded},
	{ID: "avid_reader", Title: "Avid Reader", Description: "Read 10 health articles.", Points: 20, Type: TypeProgress, Target: 10, ProgressKey: KeyArticlesRead},
	{ID: "profile_complete", Title: "All About Me", Description: "Complete your profile.", Points: 5, Type: TypeOneTime, Target: 1, ProgressKey: KeyProfileCompleted},
	{ID: "regular", Title: "Regular", Description: "Use the app on 30 different days.", Points: 40, Type: TypeTime, Target: 30, ProgressKey: KeyDaysActive},
}

var doctorCatalog = []Achievement{
	{ID: "first_patient", Title: "First Patient", Description: "Complete your first consultation.", Points: 10, Type: TypeOneTime, Target: 1, ProgressKey: KeyPatientsTreated},
	{ID: "healer", Title: "Healer", Description: "Complete 50 consultations.", Points: 75, Type: TypeProgress, Target: 50, ProgressKey: KeyPatientsTreated},
	{ID: "prescriber", Title: "Prescriber", Description: "Write 10 prescriptions.", Points: 30, Type: TypeProgress, Target: 10, ProgressKey: KeyPrescriptionsWritten},
	{ID: "doctor_profile_complete", Title: "Open Door", Description: "Complete your profile.", Points: 5, Type: TypeOneTime, Target: 1, ProgressKey: KeyProfileCompleted},
	{ID: "doctor_reader", Title: "Lifelong Learner", Description: "Read 10 medical articles.", Points: 20, Type: TypeProgress, Target: 10, ProgressKey: KeyArticlesRead},
}

// Catalog returns a copy of the ordered achievement list for a role.
func Catalog(role models.Role) []Achievement {
	var src []Achievement
	switch role {
	case models.RolePatient:
		src = patientCatalog
	case models.RoleDoctor:
		src = doctorCatalog
	}
	return append([]Achievement(nil), src...)
}

// ByID finds an achievement in a role's catalog.
func ByID(role models.Role, id string) (Achievement, bool) {
	for _, a := range Catalog(role) {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

var reportable = map[string]struct{}{
	KeyArticlesRead:     {},
	KeyProfileCompleted: {},
	KeyDaysActive:       {},
}

// IsReportable reports whether clients may update the counter directly.
// Every other counter is owned by a server-side workflow.
func IsReportable(key string) bool {
	_, ok := reportable[key]
	return ok
}
