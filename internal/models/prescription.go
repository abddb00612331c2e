package models

// PrescriptionItem is one medication line on a prescription.
type PrescriptionItem struct {
	Name         string          `json:"name" binding:"required"`
	Dosage       string          `json:"dosage,omitempty"`
	DurationDays int             `json:"durationDays" binding:"required,min=1,max=365"`
	Schedule     []ScheduleEntry `json:"schedule" binding:"required,min=1,dive"`
	Instructions string          `json:"instructions,omitempty"`
}

// Prescription is issued by a doctor at the end of an appointment.
type Prescription struct {
	BaseModel
	AppointmentID string             `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	DoctorID      string             `gorm:"size:36;index" json:"doctorId"`
	PatientID     string             `gorm:"size:36;index" json:"patientId"`
	Diagnosis     string             `gorm:"type:text" json:"diagnosis,omitempty"`
	Notes         string             `gorm:"type:text" json:"notes,omitempty"`
	Items         []PrescriptionItem `gorm:"serializer:json" json:"items"`
}

// MaxDurationDays is the longest course on the prescription.
func (p *Prescription) MaxDurationDays() int {
	longest := 0
	for _, it := range p.Items {
		if it.DurationDays > longest {
			longest = it.DurationDays
		}
	}
	return longest
}
