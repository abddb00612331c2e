// Package repository persists the domain models through gorm.
package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("a user with this email already exists")
	ErrTokenNotFound        = errors.New("refresh token not found, expired, or revoked")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrSlotTaken            = errors.New("the requested slot is already booked")
	ErrMedicationNotFound   = errors.New("medication not found")
	ErrPrescriptionExists   = errors.New("a prescription was already issued for this appointment")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrReportNotFound       = errors.New("report not found")
)

// forUpdate locks the selected rows until the transaction ends. Dialects
// without row locks drop the clause.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// isDuplicate recognizes unique-constraint violations whether or not the
// dialect translates them into gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
