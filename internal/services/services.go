// Package services holds the use cases behind the HTTP handlers: caller
// authorization, orchestration across repositories, and the error taxonomy
// the handlers translate into status codes.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
)

// Caller is the authenticated identity a request acts as.
type Caller struct {
	ID   string
	Role models.Role
}

// Is reports whether the caller holds the role.
func (c Caller) Is(role models.Role) bool {
	return c.Role == role
}

func (c Caller) require(roles ...models.Role) error {
	if c.ID == "" {
		return ErrUnauthenticated
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// requireCareLink lets a doctor through only when they have an appointment
// with the patient.
func requireCareLink(ctx context.Context, appts repository.AppointmentRepository, doctorID, patientID string) error {
	linked, err := appts.SharesAppointment(ctx, doctorID, patientID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrForbidden
	}
	return nil
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }

// sideEffect runs fn on a context that survives request cancellation and
// logs instead of returning its error. Used only for work that happens after
// the primary write committed.
func sideEffect(ctx context.Context, log *zap.Logger, what string, fn func(ctx context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.Warn("side effect failed", zap.String("effect", what), zap.Error(err))
	}
}
