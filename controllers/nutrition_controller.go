package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai-native-85/tinytummy/services"
	"github.com/ai-native-85/tinytummy/utils"
)

// NutritionController serves the aggregation endpoints. The same handlers
// are mounted under both /nutrition and /meals so the two surfaces return
// byte-identical aggregates for identical arguments.
type NutritionController struct {
	Svc *services.NutritionService
}

func NewNutritionController(svc *services.NutritionService) *NutritionController {
	return &NutritionController{Svc: svc}
}

func (h *NutritionController) GetDailyTotals(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "childId")
	if !ok {
		return
	}

	date, err := utils.ParseDate(c.DefaultQuery("date", utils.CalendarDate(time.Now()).Format(utils.DateLayout)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	totals, err := h.Svc.DailyTotals(c.Request.Context(), userID, childID, date)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *NutritionController) GetTrend(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "childId")
	if !ok {
		return
	}

	end := utils.CalendarDate(time.Now())
	start := end.AddDate(0, 0, -29)
	if v := c.Query("from"); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		start = d
	}
	if v := c.Query("to"); v != "" {
		d, err := utils.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		end = d
	}

	series, err := h.Svc.Trend(c.Request.Context(), userID, childID, start, end)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *NutritionController) GetTargets(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "childId")
	if !ok {
		return
	}

	targets, err := h.Svc.Targets(c.Request.Context(), userID, childID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, targets)
}
