package models

// ReportType classifies an uploaded health report.
type ReportType string

const (
	ReportLabResult    ReportType = "LabResult"
	ReportPrescription ReportType = "Prescription"
	ReportImaging      ReportType = "ImagingReport"
	ReportVaccination  ReportType = "VaccinationRecord"
	ReportDischarge    ReportType = "DischargeSummary"
	ReportOther        ReportType = "Other"
)

func (t ReportType) IsValid() bool {
	switch t {
	case ReportLabResult, ReportPrescription, ReportImaging, ReportVaccination, ReportDischarge, ReportOther:
		return true
	}
	return false
}

// HealthReport is a patient-uploaded document stored as a blob.
type HealthReport struct {
	BaseModel
	PatientID  string     `gorm:"size:36;index" json:"patientId"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	ReportType ReportType `gorm:"size:50" json:"reportType"`
	FileName   string     `gorm:"size:255;not null" json:"fileName"`
	FileType   string     `gorm:"size:100;not null" json:"fileType"`
	FileSize   int64      `json:"fileSize"`
	FileData   []byte     `gorm:"not null" json:"-"`
}
