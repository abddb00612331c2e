package repository

import (
	"context"

	"gorm.io/gorm"

	"healthcare-companion-server/internal/models"
)

// MedicationRepository stores medication records and their taken logs.
type MedicationRepository interface {
	Create(ctx context.Context, m *models.Medication) error
	GetByID(ctx context.Context, id string) (*models.Medication, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Medication, error)
	Update(ctx context.Context, id string, fn func(m *models.Medication) error) (*models.Medication, error)
}

// Medications implements MedicationRepository with gorm.
type Medications struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) *Medications {
	return &Medications{db: db}
}

func (r *Medications) Create(ctx context.Context, m *models.Medication) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Medications) GetByID(ctx context.Context, id string) (*models.Medication, error) {
	var m models.Medication
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrMedicationNotFound)
	}
	return &m, nil
}

func (r *Medications) ListByPatient(ctx context.Context, patientID string) ([]models.Medication, error) {
	var list []models.Medication
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("start_date desc").Find(&list).Error
	return list, err
}

// Update applies fn to the row-locked medication so concurrent toggles of the
// same log serialize.
func (r *Medications) Update(ctx context.Context, id string, fn func(m *models.Medication) error) (*models.Medication, error) {
	var out models.Medication
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&out, "id = ?", id).Error; err != nil {
			return notFound(err, ErrMedicationNotFound)
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PrescriptionRepository issues prescriptions atomically with their
// medications and the appointment completion.
type PrescriptionRepository interface {
	Issue(ctx context.Context, appointmentID string, build func(a *models.Appointment) (*models.Prescription, []models.Medication, error)) (*models.Prescription, *models.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Prescription, error)
}

// Prescriptions implements PrescriptionRepository with gorm.
type Prescriptions struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *Prescriptions {
	return &Prescriptions{db: db}
}

// Issue locks the appointment, lets build mutate it and describe the
// prescription and medications, then writes all of it in one transaction.
func (r *Prescriptions) Issue(ctx context.Context, appointmentID string, build func(a *models.Appointment) (*models.Prescription, []models.Medication, error)) (*models.Prescription, *models.Appointment, error) {
	var (
		appt models.Appointment
		p    *models.Prescription
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&appt, "id = ?", appointmentID).Error; err != nil {
			return notFound(err, ErrAppointmentNotFound)
		}

		var existing int64
		if err := tx.Model(&models.Prescription{}).Where("appointment_id = ?", appointmentID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrPrescriptionExists
		}

		var meds []models.Medication
		var err error
		p, meds, err = build(&appt)
		if err != nil {
			return err
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}
		for i := range meds {
			meds[i].PrescriptionID = &p.ID
		}
		if len(meds) > 0 {
			if err := tx.Create(&meds).Error; err != nil {
				return err
			}
		}
		return tx.Save(&appt).Error
	})
	if isDuplicate(err) {
		return nil, nil, ErrPrescriptionExists
	}
	if err != nil {
		return nil, nil, err
	}
	return p, &appt, nil
}

func (r *Prescriptions) ListByPatient(ctx context.Context, patientID string) ([]models.Prescription, error) {
	var list []models.Prescription
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("created_at desc").Find(&list).Error
	return list, err
}

func (r *Prescriptions) ListByDoctor(ctx context.Context, doctorID string) ([]models.Prescription, error) {
	var list []models.Prescription
	err := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID).Order("created_at desc").Find(&list).Error
	return list, err
}
