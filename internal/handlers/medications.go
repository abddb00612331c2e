package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// MedicationHandler handles medication and adherence requests.
type MedicationHandler struct {
	Medications *services.MedicationService
}

// NewMedicationHandler creates a new MedicationHandler.
func NewMedicationHandler(medications *services.MedicationService) *MedicationHandler {
	return &MedicationHandler{Medications: medications}
}

// CreateMedication adds a medication for the calling patient.
func (h *MedicationHandler) CreateMedication(c *gin.Context) {
	var req services.CreateMedicationInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	m, err := h.Medications.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "Medication created successfully", m)
}

// GetMedications lists the caller's medications; doctors pass ?patientId=.
func (h *MedicationHandler) GetMedications(c *gin.Context) {
	list, err := h.Medications.List(c.Request.Context(), callerFrom(c), c.Query("patientId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Medications fetched successfully", list)
}

// ToggleTaken records, overwrites or clears a dose.
func (h *MedicationHandler) ToggleTaken(c *gin.Context) {
	var req services.ToggleTakenInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	res, err := h.Medications.ToggleTaken(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Medication log updated", res)
}

// DeactivateMedication stops one of the caller's medications.
func (h *MedicationHandler) DeactivateMedication(c *gin.Context) {
	m, err := h.Medications.Deactivate(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Medication deactivated", m)
}

// GetStats returns the caller's streak and 30-day adherence.
func (h *MedicationHandler) GetStats(c *gin.Context) {
	stats, err := h.Medications.Stats(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Medication stats fetched successfully", stats)
}
