package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"healthcare-companion-server/internal/middleware"
	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/repository"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// callerFrom reads the identity AuthMiddleware stored on the context.
func callerFrom(c *gin.Context) services.Caller {
	id, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	return services.Caller{ID: id, Role: role}
}

// respondServiceError translates service, repository and model errors into
// the JSON envelope. Anything unrecognised is logged and reported as a 500.
func respondServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		utils.ValidationFailed(c, validErr.Fields)
		return
	}

	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Unauthorized(c, "User not authenticated")

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		utils.Unauthorized(c, err.Error())

	case errors.Is(err, services.ErrForbidden):
		utils.Forbidden(c, "You do not have permission to perform this action")

	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAppointmentNotFound),
		errors.Is(err, repository.ErrMedicationNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrReportNotFound),
		errors.Is(err, models.ErrNoRescheduleRequest):
		utils.NotFound(c, rootMessage(err))

	case errors.Is(err, repository.ErrSlotTaken),
		errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, repository.ErrPrescriptionExists),
		errors.Is(err, models.ErrReschedulePending),
		errors.Is(err, models.ErrInvalidRescheduleState),
		errors.Is(err, models.ErrInvalidStatusTransition),
		errors.Is(err, models.ErrAppointmentNotActive):
		utils.Conflict(c, rootMessage(err))

	case errors.Is(err, models.ErrInvalidAvailability),
		errors.Is(err, models.ErrInvalidTimeOfDay),
		errors.Is(err, models.ErrInvalidDoseStatus):
		utils.BadRequest(c, err.Error())

	default:
		middleware.Logger(c).Error("unhandled service error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		utils.InternalServerError(c, "Internal server error")
	}
}

// rootMessage strips wrapping context so clients see the sentinel text only.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
