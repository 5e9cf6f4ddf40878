package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/services"
	"github.com/ai-native-85/tinytummy/utils"
)

type MealController struct {
	Meals  *services.MealService
	Rek    *services.RekognitionService
	Logger *zap.Logger
}

func NewMealController(meals *services.MealService, rek *services.RekognitionService, logger *zap.Logger) *MealController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealController{Meals: meals, Rek: rek, Logger: logger}
}

type LogMealInput struct {
	ChildID     uuid.UUID `json:"child_id" binding:"required"`
	MealType    string    `json:"meal_type" binding:"required"`
	InputMethod string    `json:"input_method" binding:"required"`
	MealTime    time.Time `json:"meal_time" binding:"required"`
	RawInput    string    `json:"raw_input"`
	ImageData   string    `json:"image_data,omitempty"` // data URI, image modality only
}

func (h *MealController) LogMeal(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input LogMealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := services.MealCreateRequest{
		ChildID:     input.ChildID,
		MealType:    input.MealType,
		InputMethod: input.InputMethod,
		MealTime:    input.MealTime,
		RawInput:    input.RawInput,
	}

	// For image meals, detected photo labels seed the raw input handed to
	// the analysis model; failures degrade to whatever text was provided.
	if strings.EqualFold(input.InputMethod, models.InputMethodImage) && input.ImageData != "" {
		req.RawInput, req.ImageURL = h.resolveImage(c, input, req.RawInput)
	}

	meal, err := h.Meals.LogMeal(c.Request.Context(), userID, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, meal)
}

func (h *MealController) resolveImage(c *gin.Context, input LogMealInput, rawInput string) (string, string) {
	contentType, imageData, err := utils.DecodeDataURI(input.ImageData)
	if err != nil {
		h.Logger.Warn("invalid meal image payload", zap.Error(err))
		return rawInput, ""
	}

	imageURL, err := utils.UploadMealImage(c.Request.Context(), imageData, contentType, input.ChildID.String())
	if err != nil {
		h.Logger.Warn("meal image upload failed", zap.Error(err))
	}

	if h.Rek != nil {
		if labels, err := h.Rek.DetectFoodLabels(c.Request.Context(), imageData); err != nil {
			h.Logger.Warn("image label detection failed", zap.Error(err))
		} else if len(labels) > 0 {
			hint := "Photo shows: " + strings.Join(labels, ", ")
			if strings.TrimSpace(rawInput) == "" {
				rawInput = hint
			} else {
				rawInput += ". " + hint
			}
		}
	}
	return rawInput, imageURL
}

func (h *MealController) GetMeal(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	mealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	meal, err := h.Meals.GetMeal(c.Request.Context(), userID, mealID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

func (h *MealController) ListMeals(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "childId")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	meals, err := h.Meals.ListMeals(c.Request.Context(), userID, childID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, meals)
}

func (h *MealController) UpdateMeal(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	mealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var patch services.MealPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meal, err := h.Meals.UpdateMeal(c.Request.Context(), userID, mealID, patch)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

func (h *MealController) DeleteMeal(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	mealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.Meals.DeleteMeal(c.Request.Context(), userID, mealID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}
