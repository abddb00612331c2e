package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
)

// Demo account credentials created when demo mode is enabled.
const (
	DemoDoctorEmail  = "demo.doctor@companion.local"
	DemoPatientEmail = "demo.patient@companion.local"
	DemoPassword     = "demo-password"
)

// SeedDemo creates the demo doctor and patient unless they already exist.
func SeedDemo(ctx context.Context, users repository.UserRepository, log *zap.Logger) error {
	accounts := []struct {
		first, last, email, specialty string
		role                          models.Role
	}{
		{"Dana", "Demo", DemoDoctorEmail, "General Practice", models.RoleDoctor},
		{"Pat", "Demo", DemoPatientEmail, "", models.RolePatient},
	}

	for _, a := range accounts {
		_, err := users.GetByEmail(ctx, a.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("looking up %s: %w", a.email, err)
		}
		u, err := createUser(ctx, users, log, a.first, a.last, a.email, DemoPassword, a.role, a.specialty)
		if err != nil && !errors.Is(err, repository.ErrEmailTaken) {
			return fmt.Errorf("seeding %s: %w", a.email, err)
		}
		if u != nil && a.role == models.RoleDoctor {
			av := models.DefaultAvailability()
			u.Availability = &av
			if err := users.Save(ctx, u); err != nil {
				return fmt.Errorf("seeding availability: %w", err)
			}
		}
	}
	log.Info("demo accounts ready", zap.String("doctor", DemoDoctorEmail), zap.String("patient", DemoPatientEmail))
	return nil
}
