package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"healthcare-companion-server/internal/models"
)

// collisionWindowMs mirrors the slot filter's sub-second collision tolerance.
const collisionWindowMs = 1000

// AppointmentRepository is the appointment store.
type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	Update(ctx context.Context, id string, fn func(a *models.Appointment) error) (*models.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error)
	ListAll(ctx context.Context) ([]models.Appointment, error)
	BookedTimestamps(ctx context.Context, doctorID string, from, to int64) ([]int64, error)
	HasConflict(ctx context.Context, doctorID string, at int64, excludeID string) (bool, error)
	SharesAppointment(ctx context.Context, doctorID, patientID string) (bool, error)
}

// Appointments implements AppointmentRepository with gorm.
type Appointments struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *Appointments {
	return &Appointments{db: db}
}

// Create inserts a booking after re-checking the slot inside the same
// transaction. The unique slot key catches the race the re-check cannot.
func (r *Appointments) Create(ctx context.Context, a *models.Appointment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflict, err := hasConflict(tx, a.DoctorID, a.ScheduledAt, "")
		if err != nil {
			return fmt.Errorf("checking conflicts: %w", err)
		}
		if conflict {
			return ErrSlotTaken
		}
		return tx.Create(a).Error
	})
	if isDuplicate(err) {
		return ErrSlotTaken
	}
	return err
}

func (r *Appointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrAppointmentNotFound)
	}
	return &a, nil
}

// Update applies fn to the row-locked appointment and saves the result. A
// changed timestamp on an active appointment is checked against the slot
// guard before saving.
func (r *Appointments) Update(ctx context.Context, id string, fn func(a *models.Appointment) error) (*models.Appointment, error) {
	var out models.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&out, "id = ?", id).Error; err != nil {
			return notFound(err, ErrAppointmentNotFound)
		}
		before := out.ScheduledAt
		if err := fn(&out); err != nil {
			return err
		}
		if out.ScheduledAt != before && out.IsActive() {
			conflict, err := hasConflict(tx, out.DoctorID, out.ScheduledAt, out.ID)
			if err != nil {
				return fmt.Errorf("checking conflicts: %w", err)
			}
			if conflict {
				return ErrSlotTaken
			}
		}
		return tx.Save(&out).Error
	})
	if isDuplicate(err) {
		return nil, ErrSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Appointments) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	var list []models.Appointment
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("scheduled_at asc").Find(&list).Error
	return list, err
}

func (r *Appointments) ListByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	var list []models.Appointment
	err := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).Order("scheduled_at asc").Find(&list).Error
	return list, err
}

func (r *Appointments) ListAll(ctx context.Context) ([]models.Appointment, error) {
	var list []models.Appointment
	err := r.db.WithContext(ctx).Order("scheduled_at asc").Find(&list).Error
	return list, err
}

// BookedTimestamps returns the start times of the doctor's active
// appointments in [from, to).
func (r *Appointments) BookedTimestamps(ctx context.Context, doctorID string, from, to int64) ([]int64, error) {
	var ts []int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("doctor_id = ? AND status <> ? AND scheduled_at >= ? AND scheduled_at < ?",
			doctorID, models.StatusCancelled, from, to).
		Order("scheduled_at asc").
		Pluck("scheduled_at", &ts).Error
	return ts, err
}

// SharesAppointment reports whether the doctor and patient have any
// appointment together, in any status.
func (r *Appointments) SharesAppointment(ctx context.Context, doctorID, patientID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Count(&n).Error
	return n > 0, err
}

func (r *Appointments) HasConflict(ctx context.Context, doctorID string, at int64, excludeID string) (bool, error) {
	return hasConflict(r.db.WithContext(ctx), doctorID, at, excludeID)
}

func hasConflict(tx *gorm.DB, doctorID string, at int64, excludeID string) (bool, error) {
	q := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND status <> ? AND scheduled_at > ? AND scheduled_at < ?",
			doctorID, models.StatusCancelled, at-collisionWindowMs, at+collisionWindowMs)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
