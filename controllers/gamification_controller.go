package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ai-native-85/tinytummy/services"
)

type GamificationController struct {
	Svc *services.GamificationService
}

func NewGamificationController(svc *services.GamificationService) *GamificationController {
	return &GamificationController{Svc: svc}
}

func (h *GamificationController) GetSummary(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "childId")
	if !ok {
		return
	}

	summary, err := h.Svc.Summary(c.Request.Context(), userID, childID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *GamificationController) ListBadges(c *gin.Context) {
	badges, err := h.Svc.ListBadges(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, badges)
}
