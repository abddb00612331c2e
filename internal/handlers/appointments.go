package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// AppointmentHandler handles appointment related requests, including the
// prescription that closes an appointment.
type AppointmentHandler struct {
	Appointments  *services.AppointmentService
	Prescriptions *services.PrescriptionService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService, prescriptions *services.PrescriptionService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments, Prescriptions: prescriptions}
}

// CreateAppointment books an appointment for the calling patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req services.BookAppointmentInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.Book(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointmentsForUser lists the caller's appointments in display order.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	list, err := h.Appointments.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", list)
}

// GetAppointmentByID returns one appointment the caller takes part in.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appt, err := h.Appointments.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// UpdateStatusRequest represents the request body for a status change.
type UpdateStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=cancelled completed"`
}

// UpdateAppointmentStatus cancels or completes an appointment.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.UpdateStatus(c.Request.Context(), callerFrom(c), c.Param("id"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt)
}

// RequestReschedule opens a reschedule request on the patient's appointment.
func (h *AppointmentHandler) RequestReschedule(c *gin.Context) {
	var req services.RescheduleInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.RequestReschedule(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Reschedule requested successfully", appt)
}

// ResolveReschedule approves, denies or counter-suggests a pending request.
func (h *AppointmentHandler) ResolveReschedule(c *gin.Context) {
	var req services.ResolveRescheduleInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.ResolveReschedule(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Reschedule request resolved successfully", appt)
}

// AcceptSuggestion accepts the doctor's suggested time.
func (h *AppointmentHandler) AcceptSuggestion(c *gin.Context) {
	appt, err := h.Appointments.AcceptSuggestion(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Suggested time accepted", appt)
}

// UpdatePriorityRequest represents the request body for a priority change.
type UpdatePriorityRequest struct {
	Priority models.Priority `json:"priority" binding:"required,oneof=high medium low"`
}

// UpdatePriority sets the doctor-assigned priority.
func (h *AppointmentHandler) UpdatePriority(c *gin.Context) {
	var req UpdatePriorityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.UpdatePriority(c.Request.Context(), callerFrom(c), c.Param("id"), req.Priority)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Appointment priority updated successfully", appt)
}

// UpdateOrderRequest represents a batch of manual display positions.
type UpdateOrderRequest struct {
	Updates []services.OrderUpdate `json:"updates" binding:"required,min=1,max=500,dive"`
}

// UpdateOrder applies a reorder batch and reports the outcome per entry.
func (h *AppointmentHandler) UpdateOrder(c *gin.Context) {
	var req UpdateOrderRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	results, err := h.Appointments.UpdateOrder(c.Request.Context(), callerFrom(c), req.Updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Appointment order updated", results)
}

// IssuePrescription writes a prescription and completes the appointment.
func (h *AppointmentHandler) IssuePrescription(c *gin.Context) {
	var req services.IssuePrescriptionInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	p, err := h.Prescriptions.Issue(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "Prescription issued successfully", p)
}

// GetPrescriptions lists the prescriptions the caller wrote or received.
func (h *AppointmentHandler) GetPrescriptions(c *gin.Context) {
	list, err := h.Prescriptions.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Prescriptions fetched successfully", list)
}
