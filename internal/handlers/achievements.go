package handlers

import (
	"github.com/gin-gonic/gin"

	"healthcare-companion-server/internal/achievements"
	"healthcare-companion-server/internal/services"
	"healthcare-companion-server/internal/utils"
)

// AchievementHandler serves the achievement read model and client-reported
// progress.
type AchievementHandler struct {
	Achievements *services.AchievementService
}

// NewAchievementHandler creates a new AchievementHandler.
func NewAchievementHandler(svc *services.AchievementService) *AchievementHandler {
	return &AchievementHandler{Achievements: svc}
}

// GetAchievements returns the caller's catalog with unlock state and score.
func (h *AchievementHandler) GetAchievements(c *gin.Context) {
	summary, err := h.Achievements.Summary(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Achievements fetched successfully", summary)
}

// UpdateProgressRequest sets or increments one progress counter.
type UpdateProgressRequest struct {
	Key       string   `json:"key" binding:"required"`
	Value     *float64 `json:"value,omitempty" binding:"omitempty,min=0"`
	Increment *float64 `json:"increment,omitempty"`
}

// UpdateProgress applies a progress update and reports newly unlocked titles.
func (h *AchievementHandler) UpdateProgress(c *gin.Context) {
	var req UpdateProgressRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	update := achievements.Update{Value: req.Value, Increment: req.Increment}
	res, err := h.Achievements.UpdateProgress(c.Request.Context(), callerFrom(c), req.Key, update)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.Success(c, "Progress updated", res)
}
