package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/models"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// UserHandler handles user management, the doctor and patient directories,
// and doctor availability.
type UserHandler struct {
	Users    *services.UserService
	Schedule *services.ScheduleService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *services.UserService, schedule *services.ScheduleService) *UserHandler {
	return &UserHandler{Users: users, Schedule: schedule}
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req services.CreateUserInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", services.Sanitize(users))
}

// GetUserByID handles fetching one user (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUser handles editing a user (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req services.UpdateUserInput
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.Users.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}

// GetDoctors lists every doctor so patients can pick one to book.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Users.Doctors(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", services.Sanitize(doctors))
}

// GetDoctorPatients lists every patient for doctors and admins.
func (h *UserHandler) GetDoctorPatients(c *gin.Context) {
	patients, err := h.Users.Patients(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", services.Sanitize(patients))
}

// GetMyAvailability returns the calling doctor's working hours.
func (h *UserHandler) GetMyAvailability(c *gin.Context) {
	caller := callerFrom(c)
	if !caller.Is(models.RoleDoctor) {
		utils.Forbidden(c, "Only doctors have availability")
		return
	}
	h.respondAvailability(c, caller.ID)
}

// GetDoctorAvailability returns a doctor's working hours.
func (h *UserHandler) GetDoctorAvailability(c *gin.Context) {
	h.respondAvailability(c, c.Param("id"))
}

func (h *UserHandler) respondAvailability(c *gin.Context, doctorID string) {
	av, err := h.Schedule.GetAvailability(c.Request.Context(), doctorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Availability fetched successfully", av)
}

// UpdateMyAvailability replaces the calling doctor's working hours.
func (h *UserHandler) UpdateMyAvailability(c *gin.Context) {
	var req models.DoctorAvailability
	if !utils.BindAndValidate(c, &req) {
		return
	}

	av, err := h.Schedule.UpdateAvailability(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Availability updated successfully", av)
}

// GetDoctorSlots lists a doctor's bookable slots for ?date=YYYY-MM-DD.
func (h *UserHandler) GetDoctorSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		utils.BadRequest(c, "Query parameter 'date' (YYYY-MM-DD) is required")
		return
	}

	slots, err := h.Schedule.Slots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Slots fetched successfully", slots)
}
