package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
)

// MaxReportSize caps uploaded report files.
const MaxReportSize = 10 << 20

var allowedReportTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"text/plain":      {},
}

// ReportService stores patient-uploaded health reports.
type ReportService struct {
	reports      repository.ReportRepository
	users        repository.UserRepository
	appts        repository.AppointmentRepository
	achievements *AchievementService
	log          *zap.Logger
}

func NewReportService(reports repository.ReportRepository, users repository.UserRepository, appts repository.AppointmentRepository, achievementSvc *AchievementService, log *zap.Logger) *ReportService {
	return &ReportService{reports: reports, users: users, appts: appts, achievements: achievementSvc, log: log}
}

// UploadReportInput describes one uploaded file.
type UploadReportInput struct {
	Title      string            `json:"title" binding:"required,max=255"`
	ReportType models.ReportType `json:"reportType" binding:"required"`
	FileName   string            `json:"fileName" binding:"required,max=255"`
	FileType   string            `json:"fileType" binding:"required"`
	Data       []byte            `json:"-"`
}

// Upload stores a report for the calling patient.
func (s *ReportService) Upload(ctx context.Context, caller Caller, in UploadReportInput) (*models.HealthReport, error) {
	if err := caller.require(models.RolePatient); err != nil {
		return nil, err
	}
	if err := validateCommand(in); err != nil {
		return nil, err
	}
	if !in.ReportType.IsValid() {
		return nil, invalid(fmt.Sprintf("reportType: unknown type %q", in.ReportType))
	}
	if _, ok := allowedReportTypes[in.FileType]; !ok {
		return nil, invalid(fmt.Sprintf("file: type %q is not accepted", in.FileType))
	}
	if len(in.Data) == 0 || len(in.Data) > MaxReportSize {
		return nil, invalid(fmt.Sprintf("file: size must be between 1 byte and %d bytes", MaxReportSize))
	}

	r := &models.HealthReport{
		PatientID:  caller.ID,
		Title:      in.Title,
		ReportType: in.ReportType,
		FileName:   in.FileName,
		FileType:   in.FileType,
		FileSize:   int64(len(in.Data)),
		FileData:   in.Data,
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}
	s.log.Info("report uploaded", zap.String("report_id", r.ID), zap.String("patient_id", caller.ID), zap.Int64("size", r.FileSize))

	s.achievements.track(ctx, caller.ID, achievements.KeyReportsUploaded, achievements.Add(1))
	return r, nil
}

// List returns report metadata for the caller, or for a patient when one of
// their doctors asks.
func (s *ReportService) List(ctx context.Context, caller Caller, patientID string) ([]models.HealthReport, error) {
	switch {
	case caller.ID == "":
		return nil, ErrUnauthenticated
	case caller.Is(models.RolePatient):
		patientID = caller.ID
	case caller.Is(models.RoleDoctor):
		if _, err := s.users.GetByRole(ctx, patientID, models.RolePatient); err != nil {
			return nil, err
		}
		if err := requireCareLink(ctx, s.appts, caller.ID, patientID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrForbidden
	}

	list, err := s.reports.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.HealthReport{}
	}
	return list, nil
}

// Download returns a report with its file contents. Patients may fetch
// their own reports and doctors those of patients they have seen or booked.
func (s *ReportService) Download(ctx context.Context, caller Caller, id string) (*models.HealthReport, error) {
	if caller.ID == "" {
		return nil, ErrUnauthenticated
	}
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Is(models.RoleDoctor):
		if err := requireCareLink(ctx, s.appts, caller.ID, r.PatientID); err != nil {
			return nil, err
		}
	case caller.Is(models.RolePatient) && r.PatientID == caller.ID:
	default:
		return nil, ErrForbidden
	}
	return r, nil
}
