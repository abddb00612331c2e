package repository

import (
	"context"

	"gorm.io/gorm"

	"healthcare-companion-server/internal/models"
)

// ReportRepository stores uploaded health reports.
type ReportRepository interface {
	Create(ctx context.Context, r *models.HealthReport) error
	ListByPatient(ctx context.Context, patientID string) ([]models.HealthReport, error)
	GetByID(ctx context.Context, id string) (*models.HealthReport, error)
}

// Reports implements ReportRepository with gorm.
type Reports struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *Reports {
	return &Reports{db: db}
}

func (r *Reports) Create(ctx context.Context, report *models.HealthReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// ListByPatient returns report metadata without the file blobs.
func (r *Reports) ListByPatient(ctx context.Context, patientID string) ([]models.HealthReport, error) {
	var list []models.HealthReport
	err := r.db.WithContext(ctx).
		Omit("file_data").
		Where("patient_id = ?", patientID).
		Order("created_at desc").
		Find(&list).Error
	return list, err
}

// GetByID loads a report including its file contents.
func (r *Reports) GetByID(ctx context.Context, id string) (*models.HealthReport, error) {
	var report models.HealthReport
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrReportNotFound)
	}
	return &report, nil
}
